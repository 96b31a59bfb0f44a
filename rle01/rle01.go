package rle01

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/noxer/bytewriter"

	satsave "github.com/sgc-tools/satsave"
)

// Magic begins every RLE01-compressed partition. The related "DEF01" and
// "DEF02" schemes found on some carts are not supported.
const Magic = "RLE01"

// HeaderSize is the size of the compression header: magic, key byte, and
// big-endian compressed size.
const HeaderSize = len(Magic) + 1 + 4

// Header describes a compressed partition.
type Header struct {
	// Key is the escape byte chosen by the compressor.
	Key byte
	// CompressedSize is the total compressed size in bytes, header included.
	CompressedSize uint32
}

// ParseHeader validates and decodes the compression header at the start of
// src. src must be the full region the compressed partition may occupy; the
// size field is checked against it so the body can be sliced safely.
func ParseHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, satsave.ErrCorruptCompressionHeader.WithMessage(
			fmt.Sprintf("region is %d bytes, header needs %d", len(src), HeaderSize))
	}
	if !bytes.Equal(src[:len(Magic)], []byte(Magic)) {
		return Header{}, satsave.ErrUnsupportedCompression.WithMessage(
			fmt.Sprintf("magic is %q, want %q", src[:len(Magic)], Magic))
	}

	header := Header{
		Key:            src[len(Magic)],
		CompressedSize: binary.BigEndian.Uint32(src[len(Magic)+1:]),
	}
	if header.CompressedSize >= uint32(len(src)) || header.CompressedSize < uint32(HeaderSize) {
		return Header{}, satsave.ErrCorruptCompressionHeader.WithMessage(
			fmt.Sprintf("compressed size %d out of range [%d, %d)",
				header.CompressedSize, HeaderSize, len(src)))
	}
	return header, nil
}

// Decompress reads RLE01 body tokens (no header) from the input and writes
// the decoded bytes to the output until the input is exhausted. The return
// value is the number of bytes written, only valid if no error occurred.
// Sizing a buffer before decompressing for real is just a matter of passing
// io.Discard.
func Decompress(key byte, input io.Reader, output io.Writer) (int64, error) {
	source := bufio.NewReader(input)
	totalBytesWritten := int64(0)

	for {
		currentByte, err := source.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return totalBytesWritten, nil
			}
			return totalBytesWritten, fmt.Errorf("error reading input: %w", err)
		}

		var currentOutput []byte
		if currentByte != key {
			currentOutput = []byte{currentByte}
		} else {
			count, err := source.ReadByte()
			if err != nil {
				return totalBytesWritten, truncatedToken(err, "repeat count")
			}

			if count == 0 {
				// The key byte escaping itself.
				currentOutput = []byte{key}
			} else {
				value, err := source.ReadByte()
				if err != nil {
					return totalBytesWritten, truncatedToken(err, "run value")
				}
				currentOutput = bytes.Repeat([]byte{value}, int(count))
			}
		}

		n, err := output.Write(currentOutput)
		totalBytesWritten += int64(n)
		if err != nil {
			return totalBytesWritten, fmt.Errorf("failed to write to output: %w", err)
		}
	}
}

func truncatedToken(err error, missing string) error {
	if errors.Is(err, io.EOF) {
		return satsave.ErrCorrupted.WithMessage(
			fmt.Sprintf("input ends mid-token, missing %s", missing))
	}
	return fmt.Errorf("error reading input: %w", err)
}

// DecompressedSize returns the number of bytes the body tokens in src expand
// to, without writing them anywhere.
func DecompressedSize(key byte, src []byte) (int64, error) {
	return Decompress(key, bytes.NewReader(src), io.Discard)
}

// DecompressPartition decodes a full compressed partition (header included)
// from src into dst, returning the decompressed size. dst caps the output:
// if the partition expands past it the error is ErrPartitionTooLarge and dst
// contents are unspecified.
func DecompressPartition(dst, src []byte) (int64, error) {
	header, err := ParseHeader(src)
	if err != nil {
		return 0, err
	}
	body := src[HeaderSize:header.CompressedSize]

	writer := bytewriter.New(dst)
	n, err := Decompress(header.Key, bytes.NewReader(body), writer)
	if err != nil {
		// The only failure mode of a fixed-capacity writer is running out
		// of room, at which point it has written exactly to capacity.
		if n >= int64(len(dst)) {
			return n, satsave.ErrPartitionTooLarge.WithMessage(
				fmt.Sprintf("partition expands past the %d-byte limit", len(dst)))
		}
		return n, err
	}
	return n, nil
}

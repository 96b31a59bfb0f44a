package rle01

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	satsave "github.com/sgc-tools/satsave"
)

func compressedRegion(key byte, body []byte, regionSize int) []byte {
	region := make([]byte, regionSize)
	copy(region, Magic)
	region[len(Magic)] = key
	binary.BigEndian.PutUint32(region[len(Magic)+1:], uint32(HeaderSize+len(body)))
	copy(region[HeaderSize:], body)
	return region
}

func TestDecompressTokenForms(t *testing.T) {
	// An escaped key, a three-byte run, and a literal.
	body := []byte{0xFF, 0x00, 0xFF, 0x03, 0x41, 0x42}
	want := []byte{0xFF, 0x41, 0x41, 0x41, 0x42}

	output := make([]byte, len(want))
	n, err := Decompress(0xFF, bytes.NewReader(body), bytewriter.New(output))
	require.NoError(t, err)
	assert.EqualValues(t, len(want), n)
	assert.Equal(t, want, output)
}

func TestDecompressLiteralOnly(t *testing.T) {
	body := []byte("plain bytes with no key")

	var output bytes.Buffer
	n, err := Decompress(0xFF, bytes.NewReader(body), &output)
	require.NoError(t, err)
	assert.EqualValues(t, len(body), n)
	assert.Equal(t, body, output.Bytes())
}

func TestDecompressMaxRun(t *testing.T) {
	body := []byte{0x42, 0xFF, 0x1A}

	var output bytes.Buffer
	n, err := Decompress(0x42, bytes.NewReader(body), &output)
	require.NoError(t, err)
	assert.EqualValues(t, 255, n)
	assert.Equal(t, bytes.Repeat([]byte{0x1A}, 255), output.Bytes())
}

func TestDecompressTruncatedToken(t *testing.T) {
	// Key with no repeat count.
	_, err := Decompress(0xFF, bytes.NewReader([]byte{0x01, 0xFF}), io.Discard)
	assert.ErrorIs(t, err, satsave.ErrCorrupted)

	// Key and count but no run value.
	_, err = Decompress(0xFF, bytes.NewReader([]byte{0xFF, 0x05}), io.Discard)
	assert.ErrorIs(t, err, satsave.ErrCorrupted)
}

func TestDecompressedSize(t *testing.T) {
	body := []byte{0xFF, 0x00, 0xFF, 0x03, 0x41, 0x42}
	n, err := DecompressedSize(0xFF, body)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestParseHeader(t *testing.T) {
	region := compressedRegion(0xE0, []byte{1, 2, 3}, 64)

	header, err := ParseHeader(region)
	require.NoError(t, err)
	assert.Equal(t, byte(0xE0), header.Key)
	assert.EqualValues(t, HeaderSize+3, header.CompressedSize)
}

func TestParseHeaderErrors(t *testing.T) {
	// Region shorter than the header itself.
	_, err := ParseHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, satsave.ErrCorruptCompressionHeader)

	// Wrong magic: other cart compression schemes are rejected, not decoded.
	region := compressedRegion(0xE0, nil, 64)
	copy(region, "DEF01")
	_, err = ParseHeader(region)
	assert.ErrorIs(t, err, satsave.ErrUnsupportedCompression)

	// Compressed size claims more bytes than the region holds.
	region = compressedRegion(0xE0, nil, 64)
	binary.BigEndian.PutUint32(region[len(Magic)+1:], 64)
	_, err = ParseHeader(region)
	assert.ErrorIs(t, err, satsave.ErrCorruptCompressionHeader)

	// Compressed size smaller than the header.
	region = compressedRegion(0xE0, nil, 64)
	binary.BigEndian.PutUint32(region[len(Magic)+1:], uint32(HeaderSize-1))
	_, err = ParseHeader(region)
	assert.ErrorIs(t, err, satsave.ErrCorruptCompressionHeader)
}

func TestDecompressPartition(t *testing.T) {
	body := []byte{0xFF, 0x00, 0xFF, 0x03, 0x41, 0x42}
	region := compressedRegion(0xFF, body, 256)

	dst := make([]byte, 16)
	n, err := DecompressPartition(dst, region)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Equal(t, []byte{0xFF, 0x41, 0x41, 0x41, 0x42}, dst[:n])
}

// Stale bytes past the compressed size must not be decoded: the size field,
// not the region, bounds the body.
func TestDecompressPartitionHonorsCompressedSize(t *testing.T) {
	region := compressedRegion(0xFF, []byte{0x41, 0x42}, 256)
	region[HeaderSize+2] = 0x43 // junk past the declared end

	dst := make([]byte, 16)
	n, err := DecompressPartition(dst, region)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDecompressPartitionTooLarge(t *testing.T) {
	// One run token expanding to 200 bytes against a 64-byte destination.
	region := compressedRegion(0xFF, []byte{0xFF, 200, 0x55}, 256)

	dst := make([]byte, 64)
	_, err := DecompressPartition(dst, region)
	assert.ErrorIs(t, err, satsave.ErrPartitionTooLarge)
}

// A stream that fills the destination exactly and then keeps going must be
// classified as too large, not as a plain write error.
func TestDecompressPartitionPartialFitTooLarge(t *testing.T) {
	region := compressedRegion(0xFF, []byte("twelve bytes"), 256)

	dst := make([]byte, 8)
	n, err := DecompressPartition(dst, region)
	assert.ErrorIs(t, err, satsave.ErrPartitionTooLarge)
	assert.EqualValues(t, len(dst), n)
}

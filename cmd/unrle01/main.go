// Command unrle01 expands an RLE01-compressed Action Replay save partition
// into its raw bytes. The input is the compressed region as dumped from the
// cart, header included.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/noxer/bytewriter"

	"github.com/sgc-tools/satsave/rle01"
)

// Largest partition an Action Replay cart can hold once decompressed.
const maxPartitionSize = 0x80000

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(
			os.Stderr,
			"Expand an RLE01-compressed save partition.\nUsage: %s input-file output-file\n",
			os.Args[0])
		os.Exit(1)
	}

	sourceFilePath := os.Args[1]
	outputFilePath := os.Args[2]

	compressed, err := os.ReadFile(sourceFilePath)
	if err != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to read file: `%v`: %s\n", sourceFilePath, err)
		os.Exit(1)
	}

	header, err := rle01.ParseHeader(compressed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad compression header: %s\n", err)
		os.Exit(2)
	}

	// The size field bounds the body; bytes past it are stale cart contents,
	// not data.
	body := compressed[rle01.HeaderSize:header.CompressedSize]

	output := make([]byte, maxPartitionSize)
	nWritten, err := rle01.Decompress(header.Key, bytes.NewReader(body), bytewriter.New(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error expanding file: %s\n", err)
		os.Exit(2)
	}

	if err = os.WriteFile(outputFilePath, output[:nWritten], 0o644); err != nil {
		fmt.Fprintf(
			os.Stderr, "Failed to write file: `%v`: %s\n", outputFilePath, err)
		os.Exit(1)
	}

	fmt.Printf("Expanded partition to %d bytes.\n", nWritten)
}

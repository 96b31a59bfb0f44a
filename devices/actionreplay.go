package devices

import (
	"bytes"
	"fmt"

	"github.com/sgc-tools/satsave/rle01"
	"github.com/sgc-tools/satsave/sat"

	satsave "github.com/sgc-tools/satsave"
)

const actionReplaySlug = "action-replay"

const (
	// actionReplayMagic identifies an Action Replay cart image.
	actionReplayMagic = "ACTION REPLAY"
	// actionReplayMagicOffset is where the magic lives in the image.
	actionReplayMagicOffset = 0x50
	// actionReplaySavesOffset is where the compressed partition begins.
	actionReplaySavesOffset = 0x20000
	// actionReplayCompressedMax bounds the compressed partition region.
	actionReplayCompressedMax = 0x60000
	// actionReplayUncompressedMax bounds the decompressed partition.
	actionReplayUncompressedMax = 0x80000
)

// openActionReplay interprets image as an Action Replay cart dump. The save
// partition is stored RLE01-compressed at a fixed offset; it is decompressed
// once here and all save operations run against the decompressed copy.
// Re-compressing a modified partition is not supported, so the device is
// read-only.
func openActionReplay(image []byte) (Device, error) {
	magicEnd := actionReplayMagicOffset + len(actionReplayMagic)
	if len(image) < magicEnd ||
		!bytes.Equal(image[actionReplayMagicOffset:magicEnd], []byte(actionReplayMagic)) {
		return nil, satsave.ErrDeviceNotPresent.WithMessage(
			"Action Replay magic bytes missing")
	}
	if len(image) <= actionReplaySavesOffset {
		return nil, satsave.ErrInvalidDevice.WithMessage(
			fmt.Sprintf("image ends at %#x, save partition starts at %#x",
				len(image), actionReplaySavesOffset))
	}

	region := image[actionReplaySavesOffset:]
	if len(region) > actionReplayCompressedMax {
		region = region[:actionReplayCompressedMax]
	}

	geometry, err := GeometryBySlug(actionReplaySlug)
	if err != nil {
		return nil, err
	}

	partition := make([]byte, actionReplayUncompressedMax)
	n, err := rle01.DecompressPartition(partition, region)
	if err != nil {
		return nil, err
	}

	// The decompressed size is rarely block-aligned; round up into the
	// zero-filled tail. Zero tags are continuation blocks no directory walk
	// will ever reach.
	size := roundUp(uint(n), geometry.BlockSize)
	return newSATDevice(geometry.Name, sat.Partition{
		Data:      partition[:size],
		BlockSize: geometry.BlockSize,
		Stripe:    geometry.Stripe,
	}, false)
}

func roundUp(n, multiple uint) uint {
	return (n + multiple - 1) / multiple * multiple
}

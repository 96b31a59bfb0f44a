package devices

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgc-tools/satsave/rle01"
	"github.com/sgc-tools/satsave/sat"

	satsave "github.com/sgc-tools/satsave"
)

func freshInternalImage(t *testing.T) []byte {
	t.Helper()

	geometry, err := GeometryBySlug(internalSlug)
	require.NoError(t, err)

	image := make([]byte, geometry.ImageSize)
	p := sat.Partition{Data: image, BlockSize: geometry.BlockSize, Stripe: geometry.Stripe}
	require.NoError(t, sat.NewEngine().Format(p))
	return image
}

func sampleMetadata(name string) satsave.SaveMetadata {
	return satsave.SaveMetadata{
		Name:     name,
		Comment:  "DEVICETEST",
		Language: satsave.LanguageJapanese,
	}
}

func sampleData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + 5)
	}
	return data
}

func TestGeometryRegistry(t *testing.T) {
	internal, err := GeometryBySlug("internal")
	require.NoError(t, err)
	assert.EqualValues(t, 65536, internal.ImageSize)
	assert.EqualValues(t, 128, internal.BlockSize)
	assert.EqualValues(t, 1, internal.Stripe)
	assert.EqualValues(t, 32768, internal.LogicalSize())

	_, err = GeometryBySlug("zip-drive")
	assert.Error(t, err)

	// Cartridges are recognized by image size; the Action Replay row shares
	// a size with the 4 Mbit cart but must never match here.
	cart, ok := GeometryForImageSize(524288)
	require.True(t, ok)
	assert.Equal(t, "cartridge-4mbit", cart.Slug)

	_, ok = GeometryForImageSize(12345)
	assert.False(t, ok)
}

func TestOpenInternal(t *testing.T) {
	device, err := Open(Internal, freshInternalImage(t))
	require.NoError(t, err)
	assert.Equal(t, "Internal Memory", device.Name())
	assert.True(t, device.IsWriteable())
	assert.NoError(t, device.CheckFormatted())

	// Wrong dump size.
	_, err = Open(Internal, make([]byte, 1024))
	assert.ErrorIs(t, err, satsave.ErrInvalidDevice)
}

func TestOpenCartridge(t *testing.T) {
	image := make([]byte, 1048576) // 8 Mbit
	device, err := Open(Cartridge, image)
	require.NoError(t, err)
	assert.Equal(t, "Backup Cartridge (8 Mbit)", device.Name())
	assert.True(t, device.IsWriteable())

	// Unformatted until formatted.
	assert.ErrorIs(t, device.CheckFormatted(), satsave.ErrNotFormatted)
	require.NoError(t, device.Format())
	assert.NoError(t, device.CheckFormatted())

	_, err = Open(Cartridge, make([]byte, 99999))
	assert.ErrorIs(t, err, satsave.ErrDeviceNotPresent)
}

func TestInternalDeviceRoundTrip(t *testing.T) {
	device, err := Open(Internal, freshInternalImage(t))
	require.NoError(t, err)

	data := sampleData(300)
	require.NoError(t, device.Write("TESTSAVE", sampleMetadata("TESTSAVE"), data, 0))

	meta, err := device.Query("TESTSAVE")
	require.NoError(t, err)
	assert.Equal(t, "TESTSAVE"+satsave.FileExtension, meta.Filename)
	assert.EqualValues(t, len(data), meta.DataSize)

	buf := make([]byte, len(data))
	n, err := device.Read("TESTSAVE", buf)
	require.NoError(t, err)
	assert.EqualValues(t, len(data), n)
	assert.Equal(t, data, buf)

	count, err := device.List(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, device.Delete("TESTSAVE"))
	_, err = device.Query("TESTSAVE")
	assert.ErrorIs(t, err, satsave.ErrNotFound)
}

func TestInternalStat(t *testing.T) {
	device, err := Open(Internal, freshInternalImage(t))
	require.NoError(t, err)

	stat, err := device.Stat()
	require.NoError(t, err)
	// 32 KiB logical minus the two reserved 64-byte blocks.
	assert.EqualValues(t, 32640, stat.TotalBytes)
	assert.EqualValues(t, 510, stat.TotalBlocks)
	assert.EqualValues(t, 64, stat.BlockSize)
	assert.Equal(t, stat.TotalBlocks, stat.FreeBlocks)
	assert.Equal(t, stat.FreeBlocks, stat.MaxSaves)

	// One 300-byte save costs 6 blocks.
	require.NoError(t, device.Write("COSTLY", sampleMetadata("COSTLY"), sampleData(300), 0))
	stat, err = device.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 504, stat.FreeBlocks)
	assert.EqualValues(t, 504*64, stat.FreeBytes)
}

func TestReadRequiresFormattedMedium(t *testing.T) {
	geometry, err := GeometryBySlug(internalSlug)
	require.NoError(t, err)

	device, err := Open(Internal, make([]byte, geometry.ImageSize))
	require.NoError(t, err)

	_, err = device.Read("ANY", make([]byte, 16))
	assert.ErrorIs(t, err, satsave.ErrNotFormatted)

	err = device.Write("ANY", sampleMetadata("ANY"), sampleData(10), 0)
	assert.ErrorIs(t, err, satsave.ErrNotFormatted)
}

// actionReplayImage builds a cart dump holding the given partition bytes.
// Every byte is stored as a literal or escaped key, which is valid if
// unimpressive RLE01.
func actionReplayImage(t *testing.T, partition []byte) []byte {
	t.Helper()

	const key = 0xE9
	body := make([]byte, 0, len(partition)*2)
	for _, b := range partition {
		if b == key {
			body = append(body, key, 0x00)
		} else {
			body = append(body, b)
		}
	}
	require.LessOrEqual(t, rle01.HeaderSize+len(body), actionReplayCompressedMax)

	image := make([]byte, actionReplaySavesOffset+actionReplayCompressedMax)
	copy(image[actionReplayMagicOffset:], actionReplayMagic)

	region := image[actionReplaySavesOffset:]
	copy(region, rle01.Magic)
	region[len(rle01.Magic)] = key
	binary.BigEndian.PutUint32(region[len(rle01.Magic)+1:],
		uint32(rle01.HeaderSize+len(body)))
	copy(region[rle01.HeaderSize:], body)
	return image
}

func TestOpenActionReplay(t *testing.T) {
	// A small formatted dense partition with one save on it.
	partition := make([]byte, 64*64)
	p := sat.Partition{Data: partition, BlockSize: 64, Stripe: 0}
	engine := sat.NewEngine()
	require.NoError(t, engine.Format(p))
	data := sampleData(200)
	require.NoError(t, engine.Write(p, "ARSAVE", sampleMetadata("ARSAVE"), data, 0))

	device, err := Open(ActionReplay, actionReplayImage(t, partition))
	require.NoError(t, err)
	assert.Equal(t, "Action Replay (Read-Only)", device.Name())
	assert.False(t, device.IsWriteable())
	assert.NoError(t, device.CheckFormatted())

	count, err := device.List(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	buf := make([]byte, len(data))
	n, err := device.Read("ARSAVE", buf)
	require.NoError(t, err)
	assert.EqualValues(t, len(data), n)
	assert.Equal(t, data, buf)
}

func TestActionReplayIsReadOnly(t *testing.T) {
	partition := make([]byte, 64*16)
	p := sat.Partition{Data: partition, BlockSize: 64, Stripe: 0}
	require.NoError(t, sat.NewEngine().Format(p))

	device, err := Open(ActionReplay, actionReplayImage(t, partition))
	require.NoError(t, err)

	err = device.Write("NOPE", sampleMetadata("NOPE"), sampleData(10), 0)
	assert.ErrorIs(t, err, satsave.ErrNotSupported)
	assert.ErrorIs(t, device.Delete("NOPE"), satsave.ErrNotSupported)
	assert.ErrorIs(t, device.Format(), satsave.ErrNotSupported)
}

func TestOpenActionReplayRejectsBadImages(t *testing.T) {
	_, err := Open(ActionReplay, make([]byte, 0x1000))
	assert.ErrorIs(t, err, satsave.ErrDeviceNotPresent)

	// Magic present but no partition region.
	image := make([]byte, 0x100)
	copy(image[actionReplayMagicOffset:], actionReplayMagic)
	_, err = Open(ActionReplay, image)
	assert.ErrorIs(t, err, satsave.ErrInvalidDevice)

	// Garbage where the compression header should be.
	image = make([]byte, actionReplaySavesOffset+0x1000)
	copy(image[actionReplayMagicOffset:], actionReplayMagic)
	copy(image[actionReplaySavesOffset:], "DEF02")
	_, err = Open(ActionReplay, image)
	assert.ErrorIs(t, err, satsave.ErrUnsupportedCompression)
}

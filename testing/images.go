// Package testing holds helpers for building backup-medium images in tests.
package testing

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/sgc-tools/satsave/devices"
	"github.com/sgc-tools/satsave/sat"

	satsave "github.com/sgc-tools/satsave"
)

// RandomImage returns size bytes of random data. Useful as a stand-in for an
// unformatted or garbage medium. It either returns a valid slice or fails
// the test.
func RandomImage(t *testing.T, size uint) []byte {
	image := make([]byte, size)
	_, err := rand.Read(image)
	require.NoErrorf(t, err, "failed to fill a %d-byte image with random bytes", size)
	return image
}

// FormattedImage returns a freshly formatted image for one of the predefined
// geometries, ready to be opened as a device or wrapped in a partition.
func FormattedImage(t *testing.T, slug string) []byte {
	geometry, err := devices.GeometryBySlug(slug)
	require.NoError(t, err)

	image := make([]byte, geometry.ImageSize)
	partition := sat.Partition{
		Data:      image,
		BlockSize: geometry.BlockSize,
		Stripe:    geometry.Stripe,
	}
	require.NoError(t, sat.NewEngine().Format(partition))
	return image
}

// WriteSave stores a save with throwaway metadata on an image previously
// produced by FormattedImage.
func WriteSave(t *testing.T, image []byte, slug, name string, data []byte) {
	geometry, err := devices.GeometryBySlug(slug)
	require.NoError(t, err)

	partition := sat.Partition{
		Data:      image,
		BlockSize: geometry.BlockSize,
		Stripe:    geometry.Stripe,
	}
	meta := satsave.SaveMetadata{
		Name:     name,
		Comment:  "FIXTURE",
		Language: satsave.LanguageEnglish,
	}
	require.NoError(t, sat.NewEngine().Write(partition, name, meta, data, 0))
}

// ImageStream wraps an image in a fixed-size read/write stream. Writes past
// the end of the image trigger an error rather than growing it, matching how
// a real medium behaves.
func ImageStream(image []byte) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(image)
}

package devices

import (
	_ "embed"
	"fmt"

	"github.com/gocarina/gocsv"
)

// Geometry describes the physical layout of a backup medium: how big its
// image is, how bytes are striped across it, and how large its allocation
// blocks are. Media are recognized by image size, so every row needs a
// distinct ImageSize.
type Geometry struct {
	// Slug is the stable lookup key.
	Slug string `csv:"slug"`
	// Name is the human-readable device name.
	Name string `csv:"name"`
	// ImageSize is the physical image size in bytes.
	ImageSize uint `csv:"image_size"`
	// BlockSize is the physical block size in bytes.
	BlockSize uint `csv:"block_size"`
	// Stripe is the striping exponent: 0 for dense media, 1 for media that
	// store one payload byte per 16-bit word.
	Stripe uint8 `csv:"stripe"`
}

// LogicalSize gives the number of addressable payload bytes on the medium.
func (g *Geometry) LogicalSize() uint {
	return g.ImageSize >> g.Stripe
}

//go:embed geometries.csv
var geometriesRawCSV string

var geometries map[string]Geometry

// GeometryBySlug returns the predefined geometry with the given slug.
func GeometryBySlug(slug string) (Geometry, error) {
	geometry, ok := geometries[slug]
	if ok {
		return geometry, nil
	}
	return Geometry{}, fmt.Errorf("no predefined geometry exists with slug %q", slug)
}

// GeometryForImageSize returns the cartridge geometry matching an image's
// size, used to recognize which cartridge a raw dump came from.
func GeometryForImageSize(size uint) (Geometry, bool) {
	for _, geometry := range geometries {
		if geometry.Slug != internalSlug && geometry.Slug != actionReplaySlug &&
			geometry.ImageSize == size {
			return geometry, true
		}
	}
	return Geometry{}, false
}

func init() {
	var rows []Geometry
	if err := gocsv.UnmarshalString(geometriesRawCSV, &rows); err != nil {
		panic(fmt.Errorf("failed to decode geometry table: %w", err))
	}

	geometries = make(map[string]Geometry, len(rows))
	for i, row := range rows {
		if _, exists := geometries[row.Slug]; exists {
			panic(fmt.Errorf("duplicate geometry %q on row %d", row.Slug, i+1))
		}
		geometries[row.Slug] = row
	}
}

package dem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// PixelToGeo/GeoToPixel must round-trip for any invertible transform,
// per §4.4's forward/inverse affine pair.
func TestGeoTransform_PixelToGeoRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := GeoTransform{
			OriginX:     rapid.Float64Range(-1e6, 1e6).Draw(t, "originX"),
			OriginY:     rapid.Float64Range(-1e6, 1e6).Draw(t, "originY"),
			PixelWidth:  rapid.Float64Range(0.01, 100).Draw(t, "pixelWidth"),
			PixelHeight: rapid.Float64Range(-100, -0.01).Draw(t, "pixelHeight"),
			RotationX:   0,
			RotationY:   0,
		}
		col := rapid.Float64Range(0, 1000).Draw(t, "col")
		row := rapid.Float64Range(0, 1000).Draw(t, "row")

		x, y := g.PixelToGeo(col, row)
		gotCol, gotRow, ok := g.GeoToPixel(x, y)

		assert.True(t, ok)
		assert.InDelta(t, col, gotCol, 1e-6)
		assert.InDelta(t, row, gotRow, 1e-6)
	})
}

func TestGeoTransform_DegenerateIsNotInvertible(t *testing.T) {
	g := GeoTransform{PixelWidth: 0, PixelHeight: 0, RotationX: 0, RotationY: 0}
	assert.False(t, g.Invertible())
	_, _, ok := g.GeoToPixel(1, 1)
	assert.False(t, ok)
}

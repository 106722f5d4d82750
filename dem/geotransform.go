package dem

// GeoTransform is the affine map between raster pixel (col, row) and
// geographic/projected (x, y) coordinates (§3). It mirrors the
// teacher's small named-coefficient struct with a constructor
// (geo.go's GeoCoefficients/NewCoefWgs84), here holding the six reals
// of a standard world-file-style geotransform instead of WGS84 degree
// scale factors.
type GeoTransform struct {
	OriginX     float64
	OriginY     float64
	PixelWidth  float64
	PixelHeight float64
	RotationX   float64
	RotationY   float64
}

// Determinant returns pixel_width·pixel_height − rotation_x·rotation_y.
func (g GeoTransform) Determinant() float64 {
	return g.PixelWidth*g.PixelHeight - g.RotationX*g.RotationY
}

// Invertible reports whether |det| exceeds the 1e-10 threshold of §3.
func (g GeoTransform) Invertible() bool {
	d := g.Determinant()
	return d > 1e-10 || d < -1e-10
}

// PixelToGeo maps a pixel coordinate to geographic/projected (x, y).
func (g GeoTransform) PixelToGeo(col, row float64) (x, y float64) {
	x = g.OriginX + col*g.PixelWidth + row*g.RotationX
	y = g.OriginY + col*g.RotationY + row*g.PixelHeight
	return x, y
}

// GeoToPixel maps a geographic/projected (x, y) back to pixel (col,
// row) via the inverse affine transform of §4.4.
func (g GeoTransform) GeoToPixel(x, y float64) (col, row float64, ok bool) {
	det := g.Determinant()
	if !g.Invertible() {
		return 0, 0, false
	}
	dx, dy := x-g.OriginX, y-g.OriginY
	col = (g.PixelHeight*dx - g.RotationX*dy) / det
	row = (g.PixelWidth*dy - g.RotationY*dx) / det
	return col, row, true
}

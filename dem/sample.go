package dem

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultNodata = -9999.0

// Dem is an immutable, loaded digital elevation model (§3). Once
// built by Open it is safe to share by read-only reference across
// callers/goroutines, per spec.md §5.
type Dem struct {
	Width, Height int
	Transform     GeoTransform
	NodataValue   float64
	Raster        []float32
	Projection    Projection
	ProjNotes     []string
}

// Options carries the optional georeferencing sidecars of §4.3/§6.
type Options struct {
	Filename string
	World    string // contents of a .tfw/.wld sidecar, if any
	PRJ      string // contents of a .prj (WKT) sidecar, if any

	// NodataOverride replaces whatever nodata value (or lack of one)
	// the GeoTIFF tags carry, per the session config's nodata_override.
	NodataOverride    float64
	HasNodataOverride bool
}

// Open parses a GeoTIFF blob and resolves its geotransform and
// projection following the priority chain in §4.3.
func Open(tiffBytes []byte, opts Options) (*Dem, error) {
	tf, err := decodeTIFF(tiffBytes)
	if err != nil {
		return nil, err
	}

	transform, source, err := resolveGeoTransform(tf, opts)
	if err != nil {
		return nil, err
	}

	if !transform.Invertible() {
		return nil, ErrDegenerateXform
	}

	proj, notes, err := BuildProjection(opts.PRJ, transform.OriginX, transform.OriginY)
	if err != nil {
		return nil, err
	}

	nodata := defaultNodata
	if tf.hasNoData {
		nodata = tf.nodata
	}
	if opts.HasNodataOverride {
		nodata = opts.NodataOverride
	}

	d := &Dem{
		Width:       int(tf.width),
		Height:      int(tf.height),
		Transform:   transform,
		NodataValue: nodata,
		Raster:      tf.raster,
		Projection:  proj,
		ProjNotes:   notes,
	}

	warnSuspiciousBounds(d, source, opts)

	return d, nil
}

// resolveGeoTransform implements the §4.3 priority chain: world file,
// then GeoTIFF tags, then filename heuristic, then the generic
// fallback.
func resolveGeoTransform(tf *tiffFile, opts Options) (GeoTransform, string, error) {
	if opts.World != "" {
		gt, err := parseWorldFile(opts.World)
		if err != nil {
			return GeoTransform{}, "", err
		}
		return gt, "world-file", nil
	}
	if tf.haveXform {
		return tf.transform, "geotiff-tags", nil
	}
	if opts.Filename != "" {
		return filenameFallbackTransform(opts.Filename, tf.width, tf.height), "filename-heuristic", nil
	}
	return genericFallbackTransform(tf.width, tf.height), "generic-fallback", nil
}

func warnSuspiciousBounds(d *Dem, source string, opts Options) {
	minX, minY, maxX, maxY := d.Bounds()
	if math.Abs(d.Transform.OriginX) < 10 && math.Abs(d.Transform.OriginY) < 10 &&
		math.Abs(maxX) < 10 && math.Abs(maxY) < 10 {
		logrus.WithFields(logrus.Fields{
			"origin": []float64{d.Transform.OriginX, d.Transform.OriginY},
			"corner": []float64{maxX, maxY},
			"source": source,
		}).Warn("dem: geotransform bounds look suspiciously small")
	}
	if opts.World != "" && opts.PRJ == "" {
		logrus.Warn("dem: world file supplied without a projection file")
	}
	_ = minX
	_ = minY
}

// Bounds returns [min_x, min_y, max_x, max_y] in the DEM's native CRS
// (§6).
func (d *Dem) Bounds() (minX, minY, maxX, maxY float64) {
	corners := [4][2]float64{
		{0, 0}, {float64(d.Width), 0}, {0, float64(d.Height)}, {float64(d.Width), float64(d.Height)},
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x, y := d.Transform.PixelToGeo(c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return minX, minY, maxX, maxY
}

// Lookup samples the DEM at one WGS84 (lat, lon) using nearest-
// neighbor resampling (§4.4). spec.md §9 notes nearest-neighbor is an
// intentional, confirmed choice over interpolation. The geotransform's
// origin is the upper-left corner of pixel (0,0), so the containing
// pixel index is the truncation of col/row, not its rounding.
func (d *Dem) Lookup(lat, lon float64) float64 {
	x, y := lon, lat
	if !d.Projection.IsGeographic() {
		nx, ny, ok := d.Projection.ToNative(lon, lat)
		if !ok {
			return math.NaN()
		}
		x, y = nx, ny
	}

	col, row, ok := d.Transform.GeoToPixel(x, y)
	if !ok {
		return math.NaN()
	}
	if col < 0 || row < 0 || col >= float64(d.Width) || row >= float64(d.Height) {
		return math.NaN()
	}

	ic, ir := int(math.Floor(col)), int(math.Floor(row))
	if ic < 0 || ic >= d.Width || ir < 0 || ir >= d.Height {
		return math.NaN()
	}

	v := float64(d.Raster[ir*d.Width+ic])
	if math.Abs(v-d.NodataValue) < 0.01 {
		return math.NaN()
	}
	return v
}

// BatchLookup samples the DEM at every (lat, lon) pair (§4.4/§6). The
// output is preallocated once and filled in a single pass, matching
// spec.md §5's "O(N) output, may preallocate and reuse" guidance.
func (d *Dem) BatchLookup(lats, lons []float64) ([]float64, error) {
	if len(lats) != len(lons) {
		return nil, ErrLengthMismatch
	}
	out := make([]float64, len(lats))
	for i := range lats {
		out[i] = d.Lookup(lats[i], lons[i])
	}
	return out, nil
}

// DatumNote summarizes any approximation applied during projection
// setup, joined for display (e.g. in the CLI's dem-info subcommand).
func (d *Dem) DatumNote() string {
	return strings.Join(d.ProjNotes, "; ")
}

package dem

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/wroge/wgs84"
)

// Projection transforms WGS84 geographic coordinates (degrees) into a
// DEM's native coordinate reference system (meters for a projected
// CRS, passthrough for a geographic one). It covers the forward
// direction only (ToNative); no inverse transform is provided.
// github.com/wroge/wgs84 is the one dependency in this
// module sourced from outside the retrieval pack — no example repo
// vendors a proj4-capable library, and spec.md §1 Non-goals assumes one
// is available rather than hand-rolled.
type Projection struct {
	crs wgs84.CRS
}

// Geographic is the identity projection: DEM coordinates are already
// WGS84 degrees, so ToNative returns (lon, lat) unchanged.
var Geographic = Projection{crs: nil}

func (p Projection) IsGeographic() bool { return p.crs == nil }

// ToNative transforms WGS84 (lon, lat) degrees to the DEM's native
// (x, y), in projected meters.
func (p Projection) ToNative(lonDeg, latDeg float64) (x, y float64, ok bool) {
	if p.IsGeographic() {
		return lonDeg, latDeg, true
	}
	x, y, _ = wgs84.LonLat().To(p.crs)(lonDeg, latDeg, 0)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, 0, false
	}
	return x, y, true
}

// datum names recognized by §4.3's substring detection. NAD83/NAD27
// are approximated by WGS84 per spec.md §1 Non-goals (≈2m in CONUS).
func detectDatum(wkt string) string {
	switch {
	case strings.Contains(wkt, "NAD83") || strings.Contains(wkt, "North_American_Datum_1983"):
		return "NAD83"
	case strings.Contains(wkt, "NAD27") || strings.Contains(wkt, "North_American_1927"):
		return "NAD27"
	default:
		return "WGS84"
	}
}

var wktParamRe = regexp.MustCompile(`(?i)PARAMETER\["([a-z_0-9]+)"\s*,\s*([-+0-9.eE]+)\s*\]`)

func parseWKTParameters(wkt string) map[string]float64 {
	params := make(map[string]float64)
	for _, m := range wktParamRe.FindAllStringSubmatch(wkt, -1) {
		name := strings.ToLower(m[1])
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			params[name] = v
		}
	}
	return params
}

var utmZoneRe = regexp.MustCompile(`(?i)UTM Zone\s*(\d{1,2})\s*([NS])?`)

// BuildProjection implements the §4.3 projection-setup priority chain
// given an (optional) WKT string and the geotransform's origin, used
// for the origin-magnitude heuristics when no WKT is supplied.
func BuildProjection(wkt string, originX, originY float64) (Projection, []string, error) {
	var notes []string

	if wkt != "" {
		datum := detectDatum(wkt)
		if datum != "WGS84" {
			notes = append(notes, fmt.Sprintf(
				"%s approximated as WGS84 (≈2m error within CONUS)", datum))
		}

		if strings.Contains(wkt, "Transverse_Mercator") {
			params := parseWKTParameters(wkt)
			lon0, ok := params["central_meridian"]
			if !ok {
				return Geographic, notes, fmt.Errorf("dem: Transverse_Mercator WKT missing central_meridian")
			}
			falseEasting := params["false_easting"]
			falseNorthing := params["false_northing"]
			scale := params["scale_factor"]
			if scale == 0 {
				scale = 1
			}
			lat0 := params["latitude_of_origin"]

			if math.Abs(falseEasting-500000) < 1 && math.Abs(scale-0.9996) < 1e-4 {
				zone := int(math.Floor((lon0+180)/6)) + 1
				notes = append(notes, fmt.Sprintf("Transverse_Mercator block recognized as UTM zone %d", zone))
				north := originY >= 0
				return Projection{crs: wgs84.UTM(zone, north)}, notes, nil
			}

			crs := wgs84.TransverseMercator(lon0, lat0, scale, falseEasting, falseNorthing)
			return Projection{crs: crs}, notes, nil
		}

		if m := utmZoneRe.FindStringSubmatch(wkt); m != nil {
			zone, _ := strconv.Atoi(m[1])
			if zone >= 1 && zone <= 60 {
				north := !(len(m) > 2 && strings.EqualFold(m[2], "S"))
				return Projection{crs: wgs84.UTM(zone, north)}, notes, nil
			}
		}

		// Geographic: no transformation.
		return Geographic, notes, nil
	}

	// No .prj supplied: heuristics on the transform origin (§4.3).
	absX, absY := math.Abs(originX), math.Abs(originY)
	if absX <= 1000 && absY <= 1000 {
		return Geographic, notes, nil
	}

	switch {
	case originX >= 2e6 && originX <= 8e6 && originY >= 1e6 && originY <= 6e6:
		notes = append(notes, "origin magnitude matches ETRS89/LAEA Europe (EPSG:3035)")
		return Projection{crs: wgs84.LambertAzimuthalEqualArea(10, 52, 4321000, 3210000)}, notes, nil
	case originX >= 1e5 && originX <= 9e5 && originY >= 0 && originY <= 1e7:
		zone := int(math.Floor((originX/1e5)/1)) // coarse fallback; see note
		if zone < 1 {
			zone = 1
		}
		if zone > 60 {
			zone = 60
		}
		north := originY < 1e7/2
		notes = append(notes, fmt.Sprintf("origin magnitude matches a UTM easting/northing pair (zone %d assumed)", zone))
		return Projection{crs: wgs84.UTM(zone, north)}, notes, nil
	default:
		return Geographic, notes, nil
	}
}

// Package veengine implements the Virtual Elevation engine (C6,
// spec.md §4.6): a pure, synchronous numerical pipeline computing
// per-sample acceleration, rider heading, effective wind, apparent
// air velocity, virtual slope/elevation, virtual distances, and
// goodness-of-fit metrics against ground-truth elevation within a
// trim window. There is no optimization loop here (spec.md §1
// Non-goals) — Evaluate is a single point evaluation at a caller-
// supplied (CdA, Crr).
package veengine

import "math"

// Inputs carries the per-sample arrays of §4.6. All slices must share
// the same length N. Missing scalar fields use NaN so that "finite"
// checks (math.IsNaN) double as presence checks, the convention
// spec.md §3 calls out for VE input arrays.
type Inputs struct {
	Timestamps []float64 // unix seconds
	Power      []float64 // W
	Velocity   []float64 // m/s, ground speed
	Lat        []float64 // degrees, NaN if missing
	Lon        []float64 // degrees, NaN if missing
	Altitude   []float64 // m, ground truth; nil/empty if unavailable
	Distance   []float64 // m, cumulative
	AirSpeed   []float64 // m/s, NaN if not recorded
	WindSpeed  []float64 // m/s, NaN if not recorded
}

// Parameters carries the scalar evaluation parameters of §4.6.
type Parameters struct {
	SystemMass          float64 // kg
	Rho                 float64 // kg/m^3
	Eta                 float64 // drivetrain efficiency, (0, 1]
	CdA                 float64 // m^2
	Crr                 float64
	WindSpeed           float64 // m/s, meteorological
	HasWindSpeed        bool
	WindDirection       float64 // degrees, meteorological convention
	HasWindDirection    bool
	Velodrome           bool
	TrimStart           int
	TrimEnd             int
	AirSpeedCalibration float64
}

// Result is the N-length derived series plus scalar fit metrics of
// §3.
type Result struct {
	VirtualElevation []float64
	VirtualSlope     []float64
	Acceleration     []float64
	EffectiveWind    []float64
	ApparentVelocity []float64

	R2                    float64
	RMSE                  float64
	VeElevationDiff       float64
	ActualElevationDiff   float64
	VirtualDistanceAir    float64
	VirtualDistanceGround float64
	VdDifferencePercent   float64
}

const (
	gravity = 9.807 // m/s^2, §4.6
	dt      = 1.0   // s, fixed sample period
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func safe(v float64) float64 {
	if finite(v) {
		return v
	}
	return 0
}

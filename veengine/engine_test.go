package veengine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func flatRoadInputs(n int) Inputs {
	in := Inputs{
		Timestamps: make([]float64, n),
		Power:      make([]float64, n),
		Velocity:   make([]float64, n),
		Lat:        make([]float64, n),
		Lon:        make([]float64, n),
		Distance:   make([]float64, n),
		AirSpeed:   make([]float64, n),
		WindSpeed:  make([]float64, n),
		Altitude:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		in.Timestamps[i] = float64(i)
		in.Power[i] = 200
		in.Velocity[i] = 8
		in.Lat[i] = math.NaN()
		in.Lon[i] = math.NaN()
		in.Distance[i] = float64(i) * 8
		in.AirSpeed[i] = math.NaN()
		in.WindSpeed[i] = math.NaN()
		in.Altitude[i] = 0
	}
	return in
}

func baseParams() Parameters {
	return Parameters{
		SystemMass: 85,
		Rho:        1.225,
		Eta:        0.97,
	}
}

func TestEvaluate_EmptyInputsError(t *testing.T) {
	_, err := Evaluate(Inputs{}, baseParams(), 0.3, 0.004, 0, -1)
	require.ErrorIs(t, err, ErrEmptyInputs)
}

func TestEvaluate_LengthMismatchError(t *testing.T) {
	in := flatRoadInputs(10)
	in.Power = in.Power[:5]
	_, err := Evaluate(in, baseParams(), 0.3, 0.004, 0, -1)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

// A headwind should lower (make more negative) the virtual slope
// relative to no wind, at equal CdA/Crr/power, since drag opposes
// motion harder.
func TestEffectiveWind_Headwind_IncreasesDrag(t *testing.T) {
	in := flatRoadInputs(20)
	params := baseParams()
	params.HasWindSpeed = true
	params.WindSpeed = 5
	params.HasWindDirection = false // pure headwind fallback, no heading needed

	result, err := Evaluate(in, params, 0.3, 0.004, 0, -1)
	require.NoError(t, err)

	baseline, err := Evaluate(in, baseParams(), 0.3, 0.004, 0, -1)
	require.NoError(t, err)

	assert.Less(t, result.VirtualSlope[10], baseline.VirtualSlope[10],
		"a headwind should make the required virtual slope more negative (more drag to overcome)")
}

// Drag scales with v_apparent^2, so the extra drag a headwind w adds
// over no wind at ground speed 8 m/s is proportional to (8+w)^2 - 8^2:
// doubling w from 2 to 4 m/s scales it by 80/36, not by 2.
func TestEffectiveWind_DragScalesWithSquare(t *testing.T) {
	in := flatRoadInputs(20)

	weak := baseParams()
	weak.HasWindSpeed = true
	weak.WindSpeed = 2

	strong := baseParams()
	strong.HasWindSpeed = true
	strong.WindSpeed = 4

	rWeak, err := Evaluate(in, weak, 0.3, 0.004, 0, -1)
	require.NoError(t, err)
	rStrong, err := Evaluate(in, strong, 0.3, 0.004, 0, -1)
	require.NoError(t, err)

	noWind, err := Evaluate(in, baseParams(), 0.3, 0.004, 0, -1)
	require.NoError(t, err)

	dragWeak := noWind.VirtualSlope[10] - rWeak.VirtualSlope[10]
	dragStrong := noWind.VirtualSlope[10] - rStrong.VirtualSlope[10]

	assert.InDelta(t, ((8.0+4)*(8+4)-8*8)/((8.0+2)*(8+2)-8*8), dragStrong/dragWeak, 0.05)
}

// Velodrome mode forces the "actual" comparison series to all zero,
// so fit metrics should reflect a flat reference regardless of the
// (unused) ground-truth altitude array.
func TestFitMetrics_VelodromeForcesActualZero(t *testing.T) {
	in := flatRoadInputs(30)
	for i := range in.Altitude {
		in.Altitude[i] = float64(i) * 2 // would otherwise look like a steady climb
	}
	params := baseParams()
	params.Velodrome = true

	result, err := Evaluate(in, params, 0.0, 0.002, 0, -1)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.ActualElevationDiff)
}

// The trim window should not change virtual elevation/slope outside
// it: those are whole-series derived arrays, independent of the
// fit-metric window.
func TestTrimWindow_DoesNotAlterDerivedSeries(t *testing.T) {
	in := flatRoadInputs(40)
	for i := range in.Altitude {
		in.Altitude[i] = float64(i) * 0.1
	}

	full, err := Evaluate(in, baseParams(), 0.3, 0.004, 0, -1)
	require.NoError(t, err)
	trimmed, err := Evaluate(in, baseParams(), 0.3, 0.004, 10, 30)
	require.NoError(t, err)

	assert.Equal(t, full.VirtualSlope, trimmed.VirtualSlope)
	assert.Equal(t, full.VirtualElevation, trimmed.VirtualElevation)
}

// Virtual distance over air speed should equal ground distance when
// air speed exactly tracks ground speed with no wind (calibration 1).
func TestVirtualDistance_MatchesGroundWhenAirSpeedEqualsGround(t *testing.T) {
	in := flatRoadInputs(25)
	for i := range in.AirSpeed {
		in.AirSpeed[i] = in.Velocity[i]
	}
	params := baseParams()
	params.AirSpeedCalibration = 1

	result, err := Evaluate(in, params, 0.3, 0.004, 0, -1)
	require.NoError(t, err)

	assert.InDelta(t, result.VirtualDistanceGround, result.VirtualDistanceAir, 1e-6)
	assert.InDelta(t, 0, result.VdDifferencePercent, 1e-6)
}

func TestComputeAcceleration_ZeroOnFlatSpeed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 50).Draw(t, "n")
		v := rapid.Float64Range(0.1, 20).Draw(t, "v")
		speeds := make([]float64, n)
		for i := range speeds {
			speeds[i] = v
		}
		accel := computeAcceleration(speeds)
		for _, a := range accel {
			assert.InDelta(t, 0, a, 1e-9)
		}
	})
}

func TestComputeHeading_LastDuplicatesPenultimate(t *testing.T) {
	lat := []float64{0, 0.001, 0.002, 0.003}
	lon := []float64{0, 0.001, 0.002, 0.003}
	heading := computeHeading(lat, lon)
	require.Len(t, heading, 4)
	assert.Equal(t, heading[2], heading[3])
}

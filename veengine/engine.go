package veengine

import (
	"math"

	"github.com/samber/lo"
)

// Evaluate runs the full VE pipeline of §4.6 for one (cda, crr) point,
// following the fixed-order per-field derivation the teacher's
// decode/ping.go uses for decode_ping_hdr: each derived series is
// computed once, in the documented order, writing into preallocated
// output slices (§5's "preallocate and reuse" guidance).
func Evaluate(in Inputs, params Parameters, cda, crr float64, trimStart, trimEnd int) (Result, error) {
	n := len(in.Timestamps)
	if n == 0 {
		return Result{}, ErrEmptyInputs
	}
	if len(in.Power) != n || len(in.Velocity) != n || len(in.Lat) != n || len(in.Lon) != n ||
		len(in.Distance) != n || len(in.AirSpeed) != n || len(in.WindSpeed) != n {
		return Result{}, ErrLengthMismatch
	}
	if len(in.Altitude) != 0 && len(in.Altitude) != n {
		return Result{}, ErrLengthMismatch
	}

	params.CdA = cda
	params.Crr = crr

	start, end := clampTrim(trimStart, trimEnd, n)

	accel := computeAcceleration(in.Velocity)
	heading := computeHeading(in.Lat, in.Lon)
	effectiveWind := computeEffectiveWind(heading, params)
	apparentVelocity := computeApparentVelocity(in, effectiveWind, params)
	slope := computeVirtualSlope(in, accel, apparentVelocity, params)
	elevation := computeVirtualElevation(in.Velocity, slope)

	vdAir, vdGround, vdPercent := computeVirtualDistances(in, start, end, params)

	r2, rmse, veDiff, actualDiff := computeFitMetrics(in.Altitude, elevation, start, end, params.Velodrome)

	return Result{
		VirtualElevation:      elevation,
		VirtualSlope:          slope,
		Acceleration:          accel,
		EffectiveWind:         effectiveWind,
		ApparentVelocity:      apparentVelocity,
		R2:                    r2,
		RMSE:                  rmse,
		VeElevationDiff:       veDiff,
		ActualElevationDiff:   actualDiff,
		VirtualDistanceAir:    vdAir,
		VirtualDistanceGround: vdGround,
		VdDifferencePercent:   vdPercent,
	}, nil
}

// clampTrim clamps a caller-supplied [start, end] window into valid
// bounds. Any negative end (the CLI's default is -1) means "through the
// last sample"; it is not counted back from the end.
func clampTrim(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if start > n-1 {
		start = n - 1
	}
	if end < 0 {
		end = n - 1
	}
	if end > n-1 {
		end = n - 1
	}
	if start > end {
		start, end = end, start
	}
	return start, end
}

// computeAcceleration implements §4.6's per-sample acceleration:
// a[i] = (v[i]^2 - v[i-1]^2) / (2*v[i]*dt) for v[i] > 0, else 0.
func computeAcceleration(v []float64) []float64 {
	n := len(v)
	a := make([]float64, n)
	for i := 1; i < n; i++ {
		if v[i] > 0 {
			a[i] = (v[i]*v[i] - v[i-1]*v[i-1]) / (2 * v[i] * dt)
		}
		a[i] = safe(a[i])
	}
	return a
}

// computeHeading derives the forward azimuth between consecutive GPS
// fixes (§4.6), smoothed with a 3-point moving average in (cos, sin)
// space over the interior samples. The last heading duplicates the
// penultimate, as spec.md §4.6 states explicitly.
func computeHeading(lat, lon []float64) []float64 {
	n := len(lat)
	heading := make([]float64, n)
	if n == 0 {
		return heading
	}
	if n == 1 {
		return heading
	}

	for i := 0; i < n-1; i++ {
		if finite(lat[i]) && finite(lon[i]) && finite(lat[i+1]) && finite(lon[i+1]) {
			heading[i] = bearingDegrees(lat[i], lon[i], lat[i+1], lon[i+1])
		}
	}
	heading[n-1] = heading[n-2]

	smoothed := smoothHeading(heading)
	smoothed[n-1] = smoothed[n-2]
	return smoothed
}

func bearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	theta := math.Atan2(y, x) * 180 / math.Pi
	theta = math.Mod(theta, 360)
	if theta < 0 {
		theta += 360
	}
	if !finite(theta) {
		return 0
	}
	return theta
}

// smoothHeading applies a 3-point moving average in (cos, sin) space
// over the interior indices [1, n-2], leaving the endpoints untouched.
func smoothHeading(heading []float64) []float64 {
	n := len(heading)
	if n < 3 {
		return heading
	}

	cosv := lo.Map(heading, func(h float64, _ int) float64 { return math.Cos(h * math.Pi / 180) })
	sinv := lo.Map(heading, func(h float64, _ int) float64 { return math.Sin(h * math.Pi / 180) })

	smoothed := make([]float64, n)
	copy(smoothed, heading)
	for i := 1; i < n-1; i++ {
		c := (cosv[i-1] + cosv[i] + cosv[i+1]) / 3
		s := (sinv[i-1] + sinv[i] + sinv[i+1]) / 3
		deg := math.Atan2(s, c) * 180 / math.Pi
		deg = math.Mod(deg, 360)
		if deg < 0 {
			deg += 360
		}
		smoothed[i] = safe(deg)
	}
	return smoothed
}

// computeEffectiveWind implements the headwind/tailwind projection of
// §4.6: positive is headwind, negative tailwind.
func computeEffectiveWind(heading []float64, params Parameters) []float64 {
	n := len(heading)
	ew := make([]float64, n)
	if !params.HasWindSpeed {
		return ew
	}
	if !params.HasWindDirection {
		for i := range ew {
			ew[i] = params.WindSpeed
		}
		return ew
	}

	anyHeading := false
	for _, h := range heading {
		if h != 0 {
			anyHeading = true
			break
		}
	}
	if !anyHeading {
		for i := range ew {
			ew[i] = params.WindSpeed
		}
		return ew
	}

	for i, h := range heading {
		diff := math.Mod(math.Abs(params.WindDirection-h), 360)
		if diff > 180 {
			diff = 360 - diff
		}
		ew[i] = safe(params.WindSpeed * math.Cos(diff*math.Pi/180))
	}
	return ew
}

// computeApparentVelocity implements the §4.6 priority chain: air
// speed sensor, then a wind-speed stream added to ground speed, then
// the scalar effective-wind projection added to ground speed.
func computeApparentVelocity(in Inputs, effectiveWind []float64, params Parameters) []float64 {
	n := len(in.Velocity)
	va := make([]float64, n)

	hasAirSpeed := lo.SomeBy(in.AirSpeed, func(v float64) bool { return finite(v) && v != 0 })
	if hasAirSpeed {
		for i, v := range in.AirSpeed {
			va[i] = safe(v) * params.AirSpeedCalibration
		}
		return va
	}

	hasWindStream := lo.SomeBy(in.WindSpeed, func(v float64) bool { return finite(v) })
	if hasWindStream {
		for i := range va {
			w := 0.0
			if finite(in.WindSpeed[i]) {
				w = in.WindSpeed[i]
			}
			va[i] = in.Velocity[i] + w
		}
		return va
	}

	for i := range va {
		va[i] = in.Velocity[i] + effectiveWind[i]
	}
	return va
}

// computeVirtualSlope implements §4.6's virtual slope equation.
func computeVirtualSlope(in Inputs, accel, va []float64, params Parameters) []float64 {
	n := len(in.Velocity)
	slope := make([]float64, n)
	m, g := params.SystemMass, gravity

	for i := 0; i < n; i++ {
		v := in.Velocity[i]
		if v < 0.001 {
			v = 0.001
		}
		s := (in.Power[i]*params.Eta)/(v*m*g) -
			(params.CdA*params.Rho*va[i]*va[i])/(2*m*g) -
			params.Crr -
			accel[i]/g
		slope[i] = safe(s)
	}
	return slope
}

// computeVirtualElevation integrates the per-sample rise
// v*dt*sin(atan(slope)) into a cumulative elevation profile (§4.6).
func computeVirtualElevation(v, slope []float64) []float64 {
	n := len(v)
	elevation := make([]float64, n)
	cumulative := 0.0
	for i := 0; i < n; i++ {
		rise := v[i] * dt * math.Sin(math.Atan(slope[i]))
		cumulative += safe(rise)
		elevation[i] = cumulative
	}
	return elevation
}

// computeVirtualDistances implements §4.6's VD_air/VD_ground/VD%,
// which require an air-speed stream within the trim region.
func computeVirtualDistances(in Inputs, start, end int, params Parameters) (vdAir, vdGround, vdPercent float64) {
	hasAirSpeed := lo.SomeBy(in.AirSpeed, func(v float64) bool { return finite(v) && v != 0 })
	if !hasAirSpeed {
		return 0, 0, 0
	}

	for i := start + 1; i <= end && i < len(in.Timestamps); i++ {
		step := in.Timestamps[i] - in.Timestamps[i-1]
		if step <= 0 || step >= 10 {
			continue
		}
		if finite(in.AirSpeed[i]) {
			vdAir += in.AirSpeed[i] * params.AirSpeedCalibration * step
		}
		vdGround += in.Velocity[i] * step
	}

	if vdGround != 0 {
		vdPercent = 100 * (vdAir - vdGround) / vdGround
	}
	return vdAir, vdGround, vdPercent
}

// computeFitMetrics implements §4.6's goodness-of-fit calculation
// against ground-truth altitude within the closed trim range
// [start, end].
func computeFitMetrics(altitude, ve []float64, start, end int, velodrome bool) (r2, rmse, veDiff, actualDiff float64) {
	empty := len(altitude) == 0
	allNaN := true
	allZero := true
	for _, a := range altitude {
		if finite(a) {
			allNaN = false
		}
		if a != 0 {
			allZero = false
		}
	}

	if empty || allNaN || allZero {
		return 0, 0, ve[end] - ve[start], 0
	}

	n := end - start + 1
	if n < 3 || end-start < 2 {
		return 0, 0, ve[end] - ve[start], 0
	}

	actual := make([]float64, len(altitude))
	copy(actual, altitude)
	if velodrome {
		for i := range actual {
			actual[i] = 0
		}
	}

	offset := actual[start] - ve[start]
	veCal := make([]float64, len(ve))
	for i := start; i <= end; i++ {
		veCal[i] = ve[i] + offset
	}

	window := func(s []float64) []float64 { return s[start : end+1] }

	meanVE := lo.Sum(window(veCal)) / float64(n)
	meanAct := lo.Sum(window(actual)) / float64(n)

	var num, denVE, denAct, sqErr float64
	for i := start; i <= end; i++ {
		veDev := veCal[i] - meanVE
		actDev := actual[i] - meanAct
		num += veDev * actDev
		denVE += veDev * veDev
		denAct += actDev * actDev
		diff := veCal[i] - actual[i]
		sqErr += diff * diff
	}

	if denVE > 0 && denAct > 0 {
		corr := num / math.Sqrt(denVE*denAct)
		r2 = corr * corr
	}
	rmse = math.Sqrt(sqErr / float64(n))
	veDiff = veCal[end] - veCal[start]
	actualDiff = actual[end] - actual[start]

	return r2, rmse, veDiff, actualDiff
}

package session

import (
	"math"
	"os"

	"github.com/dhanek/virtual-elevation-analyzer-web/atmos"
	"github.com/dhanek/virtual-elevation-analyzer-web/dem"
	"github.com/dhanek/virtual-elevation-analyzer-web/fit"
	"github.com/dhanek/virtual-elevation-analyzer-web/veengine"
)

// Weather carries the ambient conditions used to derive air density
// for a single ride (§4.5/§6), mirroring the teacher's flat
// parameter-bag style (decode's Record types) rather than an options
// struct with functional setters.
type Weather struct {
	TemperatureC    float64
	PressureHPa     float64
	RelHumidityPct  float64
	HasHumidity     bool
	DewPointC       float64
}

// Environment is the DEM + weather context an Analysis needs beyond
// the FIT stream itself.
type Environment struct {
	DEM     *dem.Dem // nil if no elevation model was supplied
	Weather Weather

	// RhoOverride, when non-nil, bypasses weather-derived density
	// entirely (a caller-supplied --rho flag).
	RhoOverride *float64
}

// Analysis is the outcome of running the full pipeline over one FIT
// file: parsed ride data, derived air density, and the VE result for
// the caller-supplied CdA/Crr, following OpenGSF/Info/ProcInfo's
// "open, derive, process" sequence in the teacher's file.go.
type Analysis struct {
	Parsed ParseSummary
	RhoKgM3 float64
	VE      veengine.Result
}

// ParseSummary reduces fit.ParseResult down to what the CLI reports.
type ParseSummary struct {
	RecordCount     int
	LapCount        int
	DurationSeconds int64
	TotalDistanceM  float64
	RecoveredErrors int
}

// RunAnalysis decodes a FIT file, resolves air density, derives DEM
// ground-truth altitude where available, and evaluates the VE engine
// at one (cda, crr) point.
func RunAnalysis(path string, env Environment, cfg Config, cda, crr float64, trimStart, trimEnd int) (Analysis, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Analysis{}, err
	}
	if err := fit.ValidateFIT(blob); err != nil {
		return Analysis{}, err
	}

	parsed, err := fit.ParseFile(blob)
	if err != nil {
		return Analysis{}, err
	}

	var rho float64
	if env.RhoOverride != nil {
		rho = *env.RhoOverride
	} else {
		rho, err = resolveDensity(env.Weather)
		if err != nil {
			return Analysis{}, err
		}
	}

	inputs := toInputs(parsed.Records, env.DEM)
	params := veengine.Parameters{
		SystemMass:          cfg.SystemMass,
		Rho:                 rho,
		Eta:                 cfg.Eta,
		AirSpeedCalibration: cfg.AirSpeedCalibration,
	}

	result, err := veengine.Evaluate(inputs, params, cda, crr, trimStart, trimEnd)
	if err != nil {
		return Analysis{}, err
	}

	return Analysis{
		Parsed: ParseSummary{
			RecordCount:     parsed.Statistics.RecordCount,
			LapCount:        parsed.Statistics.LapCount,
			DurationSeconds: parsed.Statistics.DurationSeconds,
			TotalDistanceM:  parsed.Statistics.TotalDistanceM,
			RecoveredErrors: parsed.RecoveredErrors,
		},
		RhoKgM3: rho,
		VE:      result,
	}, nil
}

func resolveDensity(w Weather) (float64, error) {
	if w.PressureHPa == 0 {
		return 1.225, nil // ISA sea-level default, no weather supplied
	}
	if w.HasHumidity {
		return atmos.AirDensityFromHumidity(w.TemperatureC, w.PressureHPa, w.RelHumidityPct)
	}
	return atmos.AirDensity(w.TemperatureC, w.PressureHPa, w.DewPointC)
}

func toInputs(records []fit.Record, d *dem.Dem) veengine.Inputs {
	n := len(records)
	in := veengine.Inputs{
		Timestamps: make([]float64, n),
		Power:      make([]float64, n),
		Velocity:   make([]float64, n),
		Lat:        make([]float64, n),
		Lon:        make([]float64, n),
		Distance:   make([]float64, n),
		AirSpeed:   make([]float64, n),
		WindSpeed:  make([]float64, n),
	}

	hasAnyAltitude := false
	altitude := make([]float64, n)

	for i, r := range records {
		in.Timestamps[i] = float64(r.Timestamp)
		in.Power[i] = float64(r.Power)
		in.Velocity[i] = r.Speed
		in.Distance[i] = r.Distance

		if r.HasPosition {
			in.Lat[i] = r.PositionLat
			in.Lon[i] = r.PositionLong
		} else {
			in.Lat[i] = math.NaN()
			in.Lon[i] = math.NaN()
		}

		if r.HasAirSpeed {
			in.AirSpeed[i] = r.AirSpeed
		} else {
			in.AirSpeed[i] = math.NaN()
		}
		if r.HasWindSpeed {
			in.WindSpeed[i] = r.WindSpeed
		} else {
			in.WindSpeed[i] = math.NaN()
		}

		// §2: when a DEM is supplied it replaces the altitude vector
		// outright, so a DEM lookup takes priority over the record's
		// own recorded altitude whenever a position fix is available.
		switch {
		case d != nil && r.HasPosition:
			v := d.Lookup(r.PositionLat, r.PositionLong)
			altitude[i] = v
			if !math.IsNaN(v) {
				hasAnyAltitude = true
			}
		case r.HasAltitude:
			altitude[i] = r.Altitude
			hasAnyAltitude = true
		default:
			altitude[i] = math.NaN()
		}
	}

	if hasAnyAltitude {
		in.Altitude = altitude
	}

	return in
}

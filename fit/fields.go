package fit

// Global message numbers recognized by this decoder (§4.2). Only
// "record" and "lap" are materialized; "file_id" and "session" are
// still framed correctly (so the byte cursor stays in sync) but their
// field values are discarded.
const (
	globalFileID  = 0
	globalSession = 18
	globalLap     = 19
	globalRecord  = 20
)

// Field numbers for the "record" global message, matching the public
// Garmin FIT Profile so that a real .fit file's definitions line up
// without any private renumbering.
const (
	recFieldPositionLat    = 0
	recFieldPositionLong   = 1
	recFieldAltitude       = 2
	recFieldHeartRate      = 3
	recFieldCadence        = 4
	recFieldDistance       = 5
	recFieldSpeed          = 6
	recFieldPower          = 7
	recFieldGrade          = 9
	recFieldTemperature    = 13
	recFieldGPSAccuracy    = 31
	recFieldCalories       = 33
	recFieldEnhancedSpeed  = 73
	recFieldEnhancedAlt    = 78
	recFieldTimestamp      = 253
)

// Field numbers for the "lap" global message.
const (
	lapFieldStartPositionLat  = 3
	lapFieldStartPositionLong = 4
	lapFieldTotalElapsedTime  = 7
	lapFieldTotalDistance     = 9
	lapFieldAvgHeartRate      = 15
	lapFieldMaxHeartRate      = 16
	lapFieldAvgCadence        = 17
	lapFieldMaxCadence        = 18
	lapFieldAvgPower          = 19
	lapFieldMaxPower          = 20
	lapFieldTotalCalories     = 11
	lapFieldAvgSpeed          = 13
	lapFieldMaxSpeed          = 14
	lapFieldStartTime         = 2
	lapFieldTimestamp         = 253
)

// Developer field numbers this decoder recognizes by convention (§3,
// §4.2). Real FIT files describe developer fields via a
// field_description (206) message; this simplified decoder instead
// resolves them structurally from the developer-field section of a
// definition message, using the field numbers the producing app is
// known to emit for on-bike air/wind speed sensors. air_speed_0_11 and
// wind_speed_0_6 are the names given in spec.md §3 for developer index
// 0; any other developer index carrying the same field numbers is
// treated as the plain air_speed/wind_speed fallback.
const (
	devFieldAirSpeed  = 11
	devFieldWindSpeed = 6
)

// fitEpochOffset converts a FIT timestamp (seconds since
// 1989-12-31T00:00:00Z) to Unix seconds (§4.2).
const fitEpochOffset = 631065600

func fitTimestampToUnix(raw uint32) int64 {
	return int64(raw) + fitEpochOffset
}

// semicircleToDegrees converts a raw semicircle value to degrees (§4.2).
// value is first reinterpreted as a signed 32-bit integer.
func semicircleToDegrees(raw uint32) float64 {
	return float64(int32(raw)) * 180.0 / 2147483648.0
}

func altitudeMeters(raw uint16) float64 {
	return float64(raw)/5.0 - 500.0
}

func speedMetersPerSecond(raw uint16) float64 {
	return float64(raw) / 1000.0
}

func distanceMeters(raw uint32) float64 {
	return float64(raw) / 100.0
}

func durationSeconds(raw uint32) float64 {
	return float64(raw) / 1000.0
}

package fit

// Record is a single time-ordered sample decoded from a FIT "record"
// message (§3). Optional scalar fields that were not present on the
// wire are left at their zero value; where zero is itself a valid
// recorded value (position, altitude, power, air_speed, wind_speed) a
// companion Has* flag tells presence apart.
type Record struct {
	Timestamp      int64 // unix seconds
	Distance       float64
	PositionLat    float64 // degrees, WGS84
	PositionLong   float64
	HasPosition    bool
	Altitude       float64
	HasAltitude    bool
	Speed          float64
	Power          uint32
	HasPower       bool
	HeartRate      uint8
	Cadence        uint8
	Grade          float64
	Temperature    int8
	GPSAccuracy    uint8
	Calories       uint16
	BatterySOC     float64
	AirSpeed       float64
	HasAirSpeed    bool
	WindSpeed      float64
	HasWindSpeed   bool
}

// Lap mirrors the FIT "lap" message fields used by this system (§3).
type Lap struct {
	StartTime         int64
	EndTime           int64
	TotalElapsedTime  float64
	TotalDistance     float64
	AvgSpeed          float64
	MaxSpeed          float64
	AvgPower          uint32
	MaxPower          uint32
	StartPositionLat  float64
	StartPositionLong float64
	HasStartPosition  bool
	AvgHeartRate      uint8
	MaxHeartRate      uint8
	TotalCalories     uint16
	AvgCadence        uint8
	MaxCadence        uint8
}

// Statistics summarizes a parsed FIT stream, per the library API in
// spec.md §6.
type Statistics struct {
	FileSize        int
	RecordCount     int
	LapCount        int
	HasPowerData    bool
	HasGPSData      bool
	DurationSeconds int64
	TotalDistanceM  float64
	AvgPower        float64
	MaxPower        uint32
	AvgSpeedMS      float64
	MaxSpeedMS      float64
}

// ParseResult is the return value of ParseFile.
type ParseResult struct {
	Records    []Record
	Laps       []Lap
	Statistics Statistics

	// RecoveredErrors counts desync events (§7c) that were handled by
	// single-byte-advance resynchronization rather than aborting.
	RecoveredErrors int
}

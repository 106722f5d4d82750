package fit

import (
	"encoding/binary"
	"sort"
	"strconv"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// fieldDef describes one field of a local message type's definition,
// the per-stream schema-on-the-wire mapping described in spec.md §4.2
// and §9 ("Schema-on-the-wire"). It is the FIT analogue of the
// teacher's RecordHdr bit-decoded header: a small fixed-width
// descriptor read directly off the wire.
type fieldDef struct {
	Num      uint8
	Size     uint8
	BaseType uint8
}

// devFieldDef describes one developer field slot (§3).
type devFieldDef struct {
	Num      uint8
	Size     uint8
	DevIndex uint8
}

// messageDefinition is the decoded form of a FIT definition message,
// keyed in the parser by local message type. A new definition for the
// same local type replaces the prior one, exactly as spec.md §4.2
// requires.
type messageDefinition struct {
	GlobalMessageNumber uint16
	Fields              []fieldDef
	DevFields           []devFieldDef
}

// parser holds the mutable local-type -> definition table for one
// ParseFile call. Its lifetime is exactly one parse, matching spec.md
// §9's "mutable mapping whose lifetime equals one parse call" note —
// there is no process-wide registry.
type parser struct {
	definitions       map[uint8]*messageDefinition
	lastTimestamp     int64
	haveTimestamp     bool
	recoveredErrors   int
}

// ParseFile decodes a FIT byte blob into records and laps (§4.2, §6).
// CRC validation is skipped by design (§1 Non-goals); the trailing 2
// bytes of the file are simply not read as message data.
func ParseFile(blob []byte) (ParseResult, error) {
	if err := ValidateFIT(blob); err != nil {
		return ParseResult{}, err
	}

	headerSize := int(blob[0])
	end := len(blob) - 2 // trailing file CRC, ignored

	p := &parser{definitions: make(map[uint8]*messageDefinition)}

	var records []Record
	var laps []Lap

	pos := headerSize
	for pos < end {
		headerByte := blob[pos]
		pos++

		switch {
		case headerByte&0x80 != 0:
			// Compressed-timestamp data header: treat as a data message
			// for the local type in bits 5-6, with a 5-bit time offset.
			localType := (headerByte >> 5) & 0x03
			offset := int64(headerByte & 0x1F)

			def, ok := p.definitions[localType]
			if !ok {
				p.recordDesync(pos, "compressed-timestamp header references undefined local type")
				continue
			}

			ts := p.applyCompressedOffset(offset)

			rec, lap, newPos, err := p.decodeDataMessage(blob, pos, def, &ts)
			if err != nil {
				p.recordDesync(pos, err.Error())
				continue
			}
			pos = newPos
			if rec != nil {
				records = append(records, *rec)
			}
			if lap != nil {
				laps = append(laps, *lap)
			}

		case headerByte&0x40 != 0:
			// Definition message.
			localType := headerByte & 0x0F
			devFlag := headerByte&0x20 != 0

			def, newPos, err := decodeDefinition(blob, pos, devFlag)
			if err != nil {
				p.recordDesync(pos, err.Error())
				continue
			}
			p.definitions[localType] = def
			pos = newPos

		default:
			// Plain data message.
			localType := headerByte & 0x0F

			def, ok := p.definitions[localType]
			if !ok {
				p.recordDesync(pos, "data message references undefined local type")
				continue
			}

			rec, lap, newPos, err := p.decodeDataMessage(blob, pos, def, nil)
			if err != nil {
				p.recordDesync(pos, err.Error())
				continue
			}
			pos = newPos
			if rec != nil {
				records = append(records, *rec)
			}
			if lap != nil {
				laps = append(laps, *lap)
			}
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	stats := computeStatistics(len(blob), records, laps)

	return ParseResult{
		Records:         records,
		Laps:            laps,
		Statistics:      stats,
		RecoveredErrors: p.recoveredErrors,
	}, nil
}

// recordDesync counts and logs a single recovered desync event (§7c).
// The caller has already advanced the cursor by the one header byte it
// consumed; the stream resumes from there on the next loop iteration.
func (p *parser) recordDesync(pos int, reason string) {
	p.recoveredErrors++
	logrus.WithFields(logrus.Fields{
		"byte_offset": pos,
		"reason":      reason,
	}).Debug("fit: recovered from desync with a single-byte advance")
}

// applyCompressedOffset reconstructs an absolute unix timestamp from a
// 5-bit offset relative to the last full timestamp seen, handling the
// 32-second rollover.
func (p *parser) applyCompressedOffset(offset int64) int64 {
	if !p.haveTimestamp {
		return offset
	}
	base := p.lastTimestamp - (p.lastTimestamp % 32)
	ts := base + offset
	if ts < p.lastTimestamp {
		ts += 32
	}
	return ts
}

// decodeDefinition decodes one definition message starting at pos
// (just past the header byte), per §4.2: one reserved byte, one
// architecture byte, global_message_number (u16), field_count (u8),
// then field_count field descriptors. When devFlag is set, a trailing
// developer-field section is also present.
func decodeDefinition(blob []byte, pos int, devFlag bool) (*messageDefinition, int, error) {
	if pos+5 > len(blob) {
		return nil, pos, ErrBufferOverrun
	}
	pos++ // reserved
	pos++ // architecture (little-endian assumed regardless of value)

	globalMsgNum := binary.LittleEndian.Uint16(blob[pos : pos+2])
	pos += 2

	fieldCount := int(blob[pos])
	pos++

	if fieldCount > maxFieldCount {
		return nil, pos, ErrFieldCountRange
	}

	def := &messageDefinition{GlobalMessageNumber: globalMsgNum}

	var skippedNums []uint8
	for i := 0; i < fieldCount; i++ {
		if pos+3 > len(blob) {
			return nil, pos, ErrBufferOverrun
		}
		num, size, baseType := blob[pos], blob[pos+1], blob[pos+2]
		pos += 3

		if size > maxFieldSize || (baseType&0x0F) > 15 {
			skippedNums = append(skippedNums, num)
			continue
		}
		def.Fields = append(def.Fields, fieldDef{Num: num, Size: size, BaseType: baseType})
	}
	if len(skippedNums) > 0 {
		names := lo.Map(skippedNums, func(n uint8, _ int) string { return "field_" + strconv.Itoa(int(n)) })
		logrus.WithField("skipped_fields", names).Debug("fit: dropped oversized/invalid field definitions")
	}

	if devFlag {
		if pos+1 > len(blob) {
			return nil, pos, ErrBufferOverrun
		}
		devCount := int(blob[pos])
		pos++
		for i := 0; i < devCount; i++ {
			if pos+3 > len(blob) {
				return nil, pos, ErrBufferOverrun
			}
			num, size, devIdx := blob[pos], blob[pos+1], blob[pos+2]
			pos += 3
			def.DevFields = append(def.DevFields, devFieldDef{Num: num, Size: size, DevIndex: devIdx})
		}
	}

	return def, pos, nil
}

// decodeDataMessage reads one data message's field values and folds
// them into a Record or Lap depending on the definition's global
// message number. overrideTimestamp is non-nil for compressed-timestamp
// headers, where no timestamp field is present on the wire.
func (p *parser) decodeDataMessage(blob []byte, pos int, def *messageDefinition, overrideTimestamp *int64) (*Record, *Lap, int, error) {
	values := make(map[uint8]fieldValue, len(def.Fields))

	for _, f := range def.Fields {
		if pos+int(f.Size) > len(blob) {
			return nil, nil, pos, ErrBufferOverrun
		}
		raw := blob[pos : pos+int(f.Size)]
		pos += int(f.Size)

		fv, ok := decodeScalar(raw, f.BaseType)
		if ok {
			values[f.Num] = fv
		}
	}

	devValues := make(map[uint8]fieldValue, len(def.DevFields))
	devFromIndex0 := make(map[uint8]bool, len(def.DevFields))
	for _, df := range def.DevFields {
		if pos+int(df.Size) > len(blob) {
			return nil, nil, pos, ErrBufferOverrun
		}
		raw := blob[pos : pos+int(df.Size)]
		pos += int(df.Size)

		// A developer-index-0 value keeps precedence over the same field
		// number from any other developer index (the plain fallback).
		if devFromIndex0[df.Num] && df.DevIndex != 0 {
			continue
		}

		// Developer fields carry no base-type byte in this simplified
		// decoder; resolve their width generically as an unsigned
		// little-endian integer of the declared size.
		fv := fieldValue{raw: leUint(raw), valid: true}
		devValues[df.Num] = fv
		devFromIndex0[df.Num] = df.DevIndex == 0
	}

	switch def.GlobalMessageNumber {
	case globalRecord:
		rec := materializeRecord(values, devValues)
		if overrideTimestamp != nil {
			rec.Timestamp = *overrideTimestamp
		}
		p.lastTimestamp = rec.Timestamp
		p.haveTimestamp = true
		return &rec, nil, pos, nil
	case globalLap:
		lap, ok := materializeLap(values)
		if !ok {
			return nil, nil, pos, nil
		}
		return nil, &lap, pos, nil
	default:
		// file_id, session, and any unrecognized global message: framed
		// correctly (byte cursor stays in sync) but not materialized.
		return nil, nil, pos, nil
	}
}

// fieldValue is a decoded scalar field, tagged with whether it was the
// type's "invalid"/"no value" sentinel (§4.2).
type fieldValue struct {
	raw   uint64
	valid bool
}

func (fv fieldValue) u8() uint8   { return uint8(fv.raw) }
func (fv fieldValue) i8() int8    { return int8(uint8(fv.raw)) }
func (fv fieldValue) u16() uint16 { return uint16(fv.raw) }
func (fv fieldValue) u32() uint32 { return uint32(fv.raw) }

// decodeScalar decodes one field's raw bytes according to its base
// type's low nibble (§4.2), returning ok=false for sentinel ("no
// value") or unrecognized/string/oversized fields.
func decodeScalar(raw []byte, baseType uint8) (fieldValue, bool) {
	kind := baseType & 0x0F
	var width int
	switch kind {
	case 0, 1, 2:
		width = 1
	case 3, 4:
		width = 2
	case 5, 6:
		width = 4
	default:
		// string (7) or unrecognized: skip.
		return fieldValue{}, false
	}
	if len(raw) != width {
		// Array field or size mismatch; this decoder only materializes
		// scalar fields, but the bytes have already been consumed so
		// the stream stays in sync.
		return fieldValue{}, false
	}

	value := leUint(raw)
	if isInvalidSentinel(value, kind) {
		return fieldValue{}, false
	}
	return fieldValue{raw: value, valid: true}, true
}

func leUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(b[i])
	}
	return v
}

func isInvalidSentinel(raw uint64, kind uint8) bool {
	switch kind {
	case 0, 2:
		return raw == 0xFF
	case 1:
		return raw == 0x7F
	case 3:
		return raw == 0x7FFF
	case 4:
		return raw == 0xFFFF
	case 5:
		return raw == 0x7FFFFFFF
	case 6:
		return raw == 0xFFFFFFFF
	}
	return false
}

func materializeRecord(v map[uint8]fieldValue, dv map[uint8]fieldValue) Record {
	var rec Record

	if fv, ok := v[recFieldTimestamp]; ok {
		rec.Timestamp = fitTimestampToUnix(fv.u32())
	}
	lat, hasLat := v[recFieldPositionLat]
	lon, hasLon := v[recFieldPositionLong]
	if hasLat && hasLon {
		rec.PositionLat = semicircleToDegrees(lat.u32())
		rec.PositionLong = semicircleToDegrees(lon.u32())
		rec.HasPosition = true
	}
	if fv, ok := v[recFieldEnhancedAlt]; ok {
		rec.Altitude = altitudeMeters(fv.u16())
		rec.HasAltitude = true
	} else if fv, ok := v[recFieldAltitude]; ok {
		rec.Altitude = altitudeMeters(fv.u16())
		rec.HasAltitude = true
	}
	if fv, ok := v[recFieldEnhancedSpeed]; ok {
		rec.Speed = speedMetersPerSecond(fv.u16())
	} else if fv, ok := v[recFieldSpeed]; ok {
		rec.Speed = speedMetersPerSecond(fv.u16())
	}
	if fv, ok := v[recFieldDistance]; ok {
		rec.Distance = distanceMeters(fv.u32())
	}
	if fv, ok := v[recFieldPower]; ok {
		rec.Power = uint32(fv.u16())
		rec.HasPower = true
	}
	if fv, ok := v[recFieldHeartRate]; ok {
		rec.HeartRate = fv.u8()
	}
	if fv, ok := v[recFieldCadence]; ok {
		rec.Cadence = fv.u8()
	}
	if fv, ok := v[recFieldGrade]; ok {
		rec.Grade = float64(int16(fv.u16())) / 100.0
	}
	if fv, ok := v[recFieldTemperature]; ok {
		rec.Temperature = fv.i8()
	}
	if fv, ok := v[recFieldGPSAccuracy]; ok {
		rec.GPSAccuracy = fv.u8()
	}
	if fv, ok := v[recFieldCalories]; ok {
		rec.Calories = fv.u16()
	}

	if fv, ok := dv[devFieldAirSpeed]; ok && fv.valid {
		rec.AirSpeed = float64(fv.raw) / 1000.0
		rec.HasAirSpeed = true
	}
	if fv, ok := dv[devFieldWindSpeed]; ok && fv.valid {
		rec.WindSpeed = float64(fv.raw) / 1000.0
		rec.HasWindSpeed = true
	}

	return rec
}

func materializeLap(v map[uint8]fieldValue) (Lap, bool) {
	var lap Lap

	var timestamp int64
	var haveTimestamp bool
	if fv, ok := v[lapFieldTimestamp]; ok {
		timestamp = fitTimestampToUnix(fv.u32())
		haveTimestamp = true
	}

	var haveStart bool
	if fv, ok := v[lapFieldStartTime]; ok {
		lap.StartTime = fitTimestampToUnix(fv.u32())
		haveStart = true
	}

	var elapsed float64
	var haveElapsed bool
	if fv, ok := v[lapFieldTotalElapsedTime]; ok {
		elapsed = durationSeconds(fv.u32())
		lap.TotalElapsedTime = elapsed
		haveElapsed = true
	}

	switch {
	case haveStart:
		lap.EndTime = lap.StartTime + int64(elapsed)
	case haveTimestamp && haveElapsed:
		// §9 Open Question: start_time and total_elapsed_time both
		// missing means "drop the lap"; here only start_time is
		// missing, so derive it from the message timestamp (§3).
		lap.StartTime = timestamp - int64(elapsed)
		lap.EndTime = timestamp
	default:
		// Neither start_time nor (timestamp + elapsed) available:
		// the lap is dropped per the resolved Open Question.
		return Lap{}, false
	}
	if lap.StartTime > lap.EndTime {
		lap.StartTime, lap.EndTime = lap.EndTime, lap.StartTime
	}

	if fv, ok := v[lapFieldStartPositionLat]; ok {
		lap.StartPositionLat = semicircleToDegrees(fv.u32())
		lap.HasStartPosition = true
	}
	if fv, ok := v[lapFieldStartPositionLong]; ok {
		lap.StartPositionLong = semicircleToDegrees(fv.u32())
	}
	if fv, ok := v[lapFieldTotalDistance]; ok {
		lap.TotalDistance = distanceMeters(fv.u32())
	}
	if fv, ok := v[lapFieldAvgSpeed]; ok {
		lap.AvgSpeed = speedMetersPerSecond(fv.u16())
	}
	if fv, ok := v[lapFieldMaxSpeed]; ok {
		lap.MaxSpeed = speedMetersPerSecond(fv.u16())
	}
	if fv, ok := v[lapFieldAvgPower]; ok {
		lap.AvgPower = uint32(fv.u16())
	}
	if fv, ok := v[lapFieldMaxPower]; ok {
		lap.MaxPower = uint32(fv.u16())
	}
	if fv, ok := v[lapFieldAvgHeartRate]; ok {
		lap.AvgHeartRate = fv.u8()
	}
	if fv, ok := v[lapFieldMaxHeartRate]; ok {
		lap.MaxHeartRate = fv.u8()
	}
	if fv, ok := v[lapFieldTotalCalories]; ok {
		lap.TotalCalories = fv.u16()
	}
	if fv, ok := v[lapFieldAvgCadence]; ok {
		lap.AvgCadence = fv.u8()
	}
	if fv, ok := v[lapFieldMaxCadence]; ok {
		lap.MaxCadence = fv.u8()
	}

	return lap, true
}

// computeStatistics derives the summary fields of the library API
// (§6) from the decoded record/lap slices.
func computeStatistics(fileSize int, records []Record, laps []Lap) Statistics {
	stats := Statistics{
		FileSize:    fileSize,
		RecordCount: len(records),
		LapCount:    len(laps),
	}
	if len(records) == 0 {
		return stats
	}

	positivePower := lo.Filter(records, func(r Record, _ int) bool { return r.HasPower && r.Power > 0 })
	stats.HasPowerData = len(positivePower) > 0
	stats.HasGPSData = lo.SomeBy(records, func(r Record) bool { return r.HasPosition && r.PositionLat != 0 })

	stats.DurationSeconds = records[len(records)-1].Timestamp - records[0].Timestamp
	stats.TotalDistanceM = records[len(records)-1].Distance - records[0].Distance

	if len(positivePower) > 0 {
		sum := lo.SumBy(positivePower, func(r Record) float64 { return float64(r.Power) })
		stats.AvgPower = sum / float64(len(positivePower))
	}
	for _, r := range records {
		if r.Power > stats.MaxPower {
			stats.MaxPower = r.Power
		}
		if r.Speed > stats.MaxSpeedMS {
			stats.MaxSpeedMS = r.Speed
		}
	}
	stats.AvgSpeedMS = lo.SumBy(records, func(r Record) float64 { return r.Speed }) / float64(len(records))

	return stats
}

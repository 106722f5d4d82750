package fit

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFITHeader writes a minimal valid 12-byte FIT header.
func buildFITHeader() []byte {
	h := make([]byte, 12)
	h[0] = 12 // header size
	h[1] = 10 // protocol version
	binary.LittleEndian.PutUint16(h[2:4], 100)
	binary.LittleEndian.PutUint32(h[4:8], 0)
	copy(h[8:12], ".FIT")
	return h
}

// buildRecordDefinition writes a definition message (local type 0,
// global message "record") with timestamp, position, speed, power.
func buildRecordDefinition() []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x40) // definition header, local type 0
	buf.WriteByte(0)    // reserved
	buf.WriteByte(0)    // architecture (LE)
	binary.Write(&buf, binary.LittleEndian, uint16(globalRecord))
	buf.WriteByte(4) // field count

	writeField := func(num, size, baseType uint8) {
		buf.WriteByte(num)
		buf.WriteByte(size)
		buf.WriteByte(baseType)
	}
	writeField(recFieldTimestamp, 4, 0x86) // uint32
	writeField(recFieldPositionLat, 4, 0x85)
	writeField(recFieldPositionLong, 4, 0x85)
	writeField(recFieldSpeed, 2, 0x84) // uint16
	return buf.Bytes()
}

func buildRecordData(timestamp uint32, lat, lon int32, speedMS float64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0x00) // plain data header, local type 0
	binary.Write(&buf, binary.LittleEndian, timestamp)
	binary.Write(&buf, binary.LittleEndian, lat)
	binary.Write(&buf, binary.LittleEndian, lon)
	binary.Write(&buf, binary.LittleEndian, uint16(speedMS*1000))
	return buf.Bytes()
}

func buildSyntheticFIT(records int) []byte {
	var buf bytes.Buffer
	buf.Write(buildFITHeader())
	buf.Write(buildRecordDefinition())
	for i := 0; i < records; i++ {
		buf.Write(buildRecordData(uint32(1000+i), int32(i*1000), int32(i*1000), 8.0))
	}
	buf.Write([]byte{0, 0}) // trailing file CRC, ignored
	return buf.Bytes()
}

func TestValidateFIT_AcceptsWellFormedHeader(t *testing.T) {
	blob := buildSyntheticFIT(1)
	require.NoError(t, ValidateFIT(blob))
}

func TestValidateFIT_RejectsShortBlob(t *testing.T) {
	require.ErrorIs(t, ValidateFIT([]byte{1, 2, 3}), ErrTooSmall)
}

func TestValidateFIT_RejectsBadSignature(t *testing.T) {
	blob := buildFITHeader()
	blob[8] = 'X'
	require.ErrorIs(t, ValidateFIT(blob), ErrBadSignature)
}

func TestParseFile_DecodesDefinitionAndDataMessages(t *testing.T) {
	blob := buildSyntheticFIT(3)

	result, err := ParseFile(blob)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	assert.Equal(t, int64(1000+fitEpochOffset), result.Records[0].Timestamp)
	assert.True(t, result.Records[0].HasPosition)
	assert.InDelta(t, 8.0, result.Records[0].Speed, 1e-6)
	assert.Equal(t, 0, result.RecoveredErrors)
}

func TestSemicircleToDegrees_QuarterTurnIsNinetyDegrees(t *testing.T) {
	deg := semicircleToDegrees(2147483648 / 2) // 90 degrees
	assert.InDelta(t, 90.0, deg, 1e-6)
}

func TestParseFile_RecoversFromUndefinedLocalType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildFITHeader())
	buf.Write(buildRecordDefinition())
	buf.Write(buildRecordData(1000, 0, 0, 5))
	buf.WriteByte(0x01) // data message for an undefined local type 1; no payload follows
	buf.Write([]byte{0, 0})

	result, err := ParseFile(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecoveredErrors)
	assert.Len(t, result.Records, 1)
}

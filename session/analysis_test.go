package session

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFlatRideFIT assembles a synthetic FIT blob with timestamp,
// power, speed and altitude fields on every record, following the same
// hand-built wire-format approach as fit/decode_test.go.
func buildFlatRideFIT(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer

	header := make([]byte, 12)
	header[0] = 12
	header[1] = 10
	binary.LittleEndian.PutUint16(header[2:4], 100)
	copy(header[8:12], ".FIT")
	buf.Write(header)

	buf.WriteByte(0x40) // definition, local type 0
	buf.WriteByte(0)    // reserved
	buf.WriteByte(0)    // architecture
	binary.Write(&buf, binary.LittleEndian, uint16(20))
	buf.WriteByte(4) // field count
	writeField := func(num, size, baseType uint8) {
		buf.WriteByte(num)
		buf.WriteByte(size)
		buf.WriteByte(baseType)
	}
	writeField(253, 4, 0x86) // timestamp, uint32
	writeField(7, 2, 0x84)   // power, uint16
	writeField(6, 2, 0x84)   // speed, uint16
	writeField(2, 2, 0x84)   // altitude, uint16

	for i := 0; i < n; i++ {
		buf.WriteByte(0x00)
		binary.Write(&buf, binary.LittleEndian, uint32(1000+i))
		binary.Write(&buf, binary.LittleEndian, uint16(200))                 // 200 W
		binary.Write(&buf, binary.LittleEndian, uint16(8*1000))              // 8 m/s
		binary.Write(&buf, binary.LittleEndian, uint16((100+500)*5))         // 100 m
	}
	buf.Write([]byte{0, 0})
	return buf.Bytes()
}

func writeTempFIT(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ride.fit")
	require.NoError(t, os.WriteFile(path, buildFlatRideFIT(t, n), 0o644))
	return path
}

func TestRunAnalysis_DecodesAndEvaluates(t *testing.T) {
	path := writeTempFIT(t, 30)

	a, err := RunAnalysis(path, Environment{}, DefaultConfig(), 0.3, 0.004, 0, -1)
	require.NoError(t, err)

	assert.Equal(t, 30, a.Parsed.RecordCount)
	assert.Equal(t, 1.225, a.RhoKgM3, "no weather supplied falls back to ISA sea level")
	assert.Equal(t, 0, a.Parsed.RecoveredErrors)
	assert.Len(t, a.VE.VirtualElevation, 30)
}

func TestRunAnalysis_RhoOverrideBypassesWeather(t *testing.T) {
	path := writeTempFIT(t, 10)
	rho := 1.1
	env := Environment{RhoOverride: &rho, Weather: Weather{PressureHPa: 1013.25, TemperatureC: 15}}

	a, err := RunAnalysis(path, env, DefaultConfig(), 0.3, 0.004, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 1.1, a.RhoKgM3)
}

func TestRunAnalysis_WeatherDerivesDensity(t *testing.T) {
	path := writeTempFIT(t, 10)
	env := Environment{Weather: Weather{PressureHPa: 1013.25, TemperatureC: 15, RelHumidityPct: 50, HasHumidity: true}}

	a, err := RunAnalysis(path, env, DefaultConfig(), 0.3, 0.004, 0, -1)
	require.NoError(t, err)
	assert.InDelta(t, 1.225, a.RhoKgM3, 0.02)
}

func TestRunAnalysis_MissingFileErrors(t *testing.T) {
	_, err := RunAnalysis(filepath.Join(t.TempDir(), "missing.fit"), Environment{}, DefaultConfig(), 0.3, 0.004, 0, -1)
	require.Error(t, err)
}

func TestRunAnalysis_VirtualElevationIsFiniteWithoutDEM(t *testing.T) {
	path := writeTempFIT(t, 5)
	a, err := RunAnalysis(path, Environment{}, DefaultConfig(), 0.3, 0.004, 0, -1)
	require.NoError(t, err)
	for _, v := range a.VE.VirtualElevation {
		assert.False(t, math.IsNaN(v))
	}
}

package measurement

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Index\tVg\tId\tTime\tVd\n"

func TestParseVoltage(t *testing.T) {
	tests := []struct {
		token string
		want  float64
	}{
		{"1V", 1},
		{"0.3V", 0.3},
		{"-1.2 V", -1.2},
		{"+.5v", 0.5},
		{"300mV", 0.3},
		{"100MV", 0.1},
		{"  25 mv ", 0.025},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseVoltage(tt.token)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-15)
		})
	}
}

func TestParseVoltage_RoundTripMillivolts(t *testing.T) {
	for _, x := range []float64{0, 1, 12.5, 99.75, 250, 1100} {
		got, err := ParseVoltage(fmt.Sprintf("%gmV", x))
		require.NoError(t, err)
		assert.InDelta(t, x/1000, got, 1e-15)
	}
}

func TestParseCurrent(t *testing.T) {
	tests := []struct {
		token string
		want  float64
	}{
		{"2A", 2},
		{"3mA", 3e-3},
		{"1uA", 1e-6},
		{"1.5µA", 1.5e-6},
		{"4.2UA", 4.2e-6},
		{"7nA", 7e-9},
		{"10pA", 10e-12},
		{"-5 pa", -5e-12},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseCurrent(tt.token)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseCurrent_RoundTripPerUnit(t *testing.T) {
	scales := map[string]float64{"pA": 1e-12, "nA": 1e-9, "uA": 1e-6, "µA": 1e-6, "mA": 1e-3, "A": 1}
	for unit, scale := range scales {
		for _, x := range []float64{1, 3.5, 250, 999.9} {
			got, err := ParseCurrent(fmt.Sprintf("%g%s", x, unit))
			require.NoError(t, err)
			assert.InEpsilon(t, x*scale, got, 1e-12, "%g%s", x, unit)
		}
	}
}

func TestParseUnits_Rejects(t *testing.T) {
	for _, token := range []string{"", "V", "1", "1 kV", "1uV", "abc"} {
		_, err := ParseVoltage(token)
		assert.Error(t, err, token)
	}
	for _, token := range []string{"", "A", "1", "1fA", "1kA", "1V"} {
		_, err := ParseCurrent(token)
		assert.Error(t, err, token)
	}
}

func TestParse_GroupsInterleavedBiases(t *testing.T) {
	input := header +
		"1\t0.6V\t3uA\t0\t0.1V\n" +
		"2\t0.6V\t9uA\t1\t1.1V\n" +
		"3\t0V\t0pA\t2\t0.1V\n" +
		"4\t0V\t1pA\t3\t1.1V\n" +
		"5\t0.3V\t10nA\t4\t0.1V\n" +
		"6\t0.3V\t40nA\t5\t1.1V\n"

	blocks, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.Equal(t, 0.1, blocks[0].DrainBias())
	assert.Equal(t, 1.1, blocks[1].DrainBias())

	assert.Equal(t, []float64{0, 0.3, 0.6}, blocks[0].GateVoltages())
	assert.InDeltaSlice(t, []float64{0, 10e-9, 3e-6}, blocks[0].DrainCurrents(), 1e-18)
	assert.Equal(t, []float64{0, 0.3, 0.6}, blocks[1].GateVoltages())
	assert.InDeltaSlice(t, []float64{1e-12, 40e-9, 9e-6}, blocks[1].DrainCurrents(), 1e-18)
}

func TestParse_BlocksSortedByBias(t *testing.T) {
	input := header +
		"1\t0V\t1nA\t0\t1.2V\n" +
		"2\t0V\t1nA\t0\t-0.5V\n" +
		"3\t0V\t1nA\t0\t100mV\n"

	blocks, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, -0.5, blocks[0].DrainBias())
	assert.InDelta(t, 0.1, blocks[1].DrainBias(), 1e-15)
	assert.Equal(t, 1.2, blocks[2].DrainBias())
}

func TestParse_SkipsGarbledLines(t *testing.T) {
	input := header +
		"1\t0V\t0pA\t0\t0.1V\n" +
		"2\t0.3V\t10pA\n" + // too few fields
		"3\t0.6V\t1uA\t2\t0.1V\n" +
		"4\t0.9V\t5 furlongs\t3\t0.1V\n" + // bad current unit
		"\n" +
		"5\t1.2V\t8uA\t4\t0.1V\n"

	blocks, stats, err := ParseWithStats(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 3, blocks[0].NumPoints())
	assert.Equal(t, Stats{Lines: 5, Accepted: 3, Skipped: 2}, stats)
}

func TestParse_SkipsOverlongLine(t *testing.T) {
	input := header +
		"1\t0V\t0pA\t0\t0.1V\n" +
		strings.Repeat("x", 2*maxLineLength) + "\n" +
		"2\t0.6V\t1uA\t1\t0.1V"

	blocks, stats, err := ParseWithStats(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 2, blocks[0].NumPoints())
	assert.Equal(t, Stats{Lines: 3, Accepted: 2, Skipped: 1}, stats)
}

func TestParse_OneShortLineYieldsOneFewerSample(t *testing.T) {
	input := header +
		"1\t0V\t0pA\t0\t0.1V\n" +
		"2\t0.3V\t10pA\t1\n" +
		"3\t0.6V\t1uA\t2\t0.1V\n" +
		"4\t0.9V\t5uA\t3\t0.1V\n"

	blocks, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 3, blocks[0].NumPoints())
}

func TestParse_WhitespaceFallback(t *testing.T) {
	input := "Index Vg Id Time Vd\n" +
		"1  0V   0pA  0  0.1V\n" +
		"2  0.3V 10pA 1  0.1V\n"

	blocks, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 2, blocks[0].NumPoints())
}

func TestParse_BadHeader(t *testing.T) {
	for _, input := range []string{
		"Index\tVgate\tCurrent\tTime\tVdrain\n1\t0V\t0pA\t0\t0.1V\n",
		"index\tvg\tid\ttime\tvd\n",
		"",
	} {
		_, err := Parse(strings.NewReader(input))
		var fe *FormatError
		assert.True(t, errors.As(err, &fe), "input %q", input)
	}
}

func TestParseFile_Unreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	_, err := ParseFile(path)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, path, fe.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseFile_EndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.txt")
	content := header +
		"1\t0V\t0pA\t0\t0.1V\n" +
		"2\t0.3V\t10pA\t1\t0.1V\n" +
		"3\t0.6V\t1uA\t2\t0.1V\n" +
		"4\t0.9V\t5uA\t3\t0.1V\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	blocks, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 0.1, blocks[0].DrainBias())
	assert.Equal(t, []float64{0, 0.3, 0.6, 0.9}, blocks[0].GateVoltages())
}

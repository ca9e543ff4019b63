package batch

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/pkg/models"
)

const header = "Index\tVg\tId\tTime\tVd\n"

// sweepFile renders a square-law sweep at each drain bias. PMOS sweeps are
// mirrored about 1.2 V with negative current.
func sweepFile(pmos bool, biases ...float64) string {
	var b strings.Builder
	b.WriteString(header)
	n := 0
	for _, vd := range biases {
		for i := 0; i <= 24; i++ {
			vg := float64(i) * 0.05
			id := 1e-12
			if vg > 0.4 {
				id = 1e-4 * (vg - 0.4) * (vg - 0.4)
			}
			if pmos {
				vg = 1.2 - vg
				id = -id
			}
			n++
			b.WriteString(strings.Join([]string{
				itoa(n), ftoa(vg) + "V", ftoa(id*1e9) + "nA", itoa(n), ftoa(vd) + "V",
			}, "\t"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestRunner_Run(t *testing.T) {
	root := writeTree(t, map[string]string{
		"chip1/295K/nmos/1.txt": sweepFile(false, 0, 0.1, 1.1),
		"chip1/295K/pmos/1.txt": sweepFile(true, 0, 0.1, 1.1),
		"chip1/77K/nmos/2.txt":  "garbage\n",
		"chip2/77K/nmos/3.txt":  header + "1\t0V\t1pA\t0\t0V\n",
	})
	paths, err := Discover(root, true)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	runner := NewRunner(Config{
		Methods: []extraction.Method{extraction.Traditional, extraction.Sqrt},
		Options: extraction.DefaultOptions(),
		Workers: 2,
	})
	records, err := runner.Run(context.Background(), paths)
	require.NoError(t, err)

	byFile := map[string][]models.Record{}
	for _, rec := range records {
		rel, _ := filepath.Rel(root, rec.FilePath)
		byFile[filepath.ToSlash(rel)] = append(byFile[filepath.ToSlash(rel)], rec)
	}

	nmos := byFile["chip1/295K/nmos/1.txt"]
	require.Len(t, nmos, 2)
	assert.Equal(t, "traditional", nmos[0].Method)
	assert.InDelta(t, 0.1, nmos[0].DrainBias, 1e-12)
	assert.Equal(t, "sqrt", nmos[1].Method)
	assert.InDelta(t, 1.1, nmos[1].DrainBias, 1e-12)
	for _, rec := range nmos {
		assert.True(t, rec.OK(), rec.Notes)
		assert.Greater(t, rec.VthVolts, 0.0)
		assert.Equal(t, "295K", rec.Temperature)
		assert.Equal(t, "chip1", rec.Chip)
		assert.Equal(t, 1, rec.DeviceIndex)
		assert.Equal(t, 25, rec.NumPoints)
	}

	pmos := byFile["chip1/295K/pmos/1.txt"]
	require.Len(t, pmos, 2)
	assert.InDelta(t, 1.1, pmos[0].DrainBias, 1e-12)
	// zero bias is excluded, so the sqrt target of 0 V lands on 0.1 V
	assert.InDelta(t, 0.1, pmos[1].DrainBias, 1e-12)
	for _, rec := range pmos {
		assert.Equal(t, "pmos", rec.Device)
		assert.Less(t, rec.VthVolts, 0.0)
	}

	garbled := byFile["chip1/77K/nmos/2.txt"]
	require.Len(t, garbled, 1)
	assert.True(t, strings.HasPrefix(garbled[0].Notes, models.NoteParseError+": "))
	assert.True(t, math.IsNaN(garbled[0].VthVolts))
	assert.Equal(t, -1, garbled[0].Index)

	zeroOnly := byFile["chip2/77K/nmos/3.txt"]
	require.Len(t, zeroOnly, 1)
	assert.Equal(t, models.NoteNoValidBlocks, zeroOnly[0].Notes)
	assert.True(t, zeroOnly[0].Failed())
}

func TestRunner_PreservesPathOrder(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files["295K/nmos/"+name+"/1.txt"] = sweepFile(false, 0.1)
	}
	root := writeTree(t, files)
	paths, err := Discover(root, false)
	require.NoError(t, err)

	records, err := NewRunner(Config{Options: extraction.DefaultOptions(), Workers: 3}).Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, records, len(paths))
	for i, rec := range records {
		assert.Equal(t, paths[i], rec.FilePath)
	}
}

func TestRunner_AllVd(t *testing.T) {
	root := writeTree(t, map[string]string{"nmos/1.txt": sweepFile(false, 0, 0.1, 0.6, 1.1)})
	paths, err := Discover(root, false)
	require.NoError(t, err)

	runner := NewRunner(Config{AllVd: true, Options: extraction.DefaultOptions()})
	records, err := runner.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, want := range []float64{0.1, 0.6, 1.1} {
		assert.InDelta(t, want, records[i].DrainBias, 1e-12)
	}

	runner = NewRunner(Config{AllVd: true, IncludeZero: true, Options: extraction.DefaultOptions()})
	records, err = runner.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestRunner_TargetOverrideAndHybrid(t *testing.T) {
	root := writeTree(t, map[string]string{"nmos/1.txt": sweepFile(false, 0.1, 0.6, 1.1)})
	paths, err := Discover(root, false)
	require.NoError(t, err)

	target := 0.7
	runner := NewRunner(Config{
		Methods:  []extraction.Method{extraction.Hybrid},
		TargetVd: &target,
		Options:  extraction.DefaultOptions(),
	})
	records, err := runner.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 0.6, records[0].DrainBias, 1e-12)
	assert.Equal(t, "hybrid", records[0].Method)
	assert.Equal(t, "sqrt", records[0].Used)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(Config{}).Run(ctx, []string{"a.txt"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVdsEffectsAndHybrid(t *testing.T) {
	root := writeTree(t, map[string]string{"300K/nmos/2.txt": sweepFile(false, 0, 0.1, 1.1)})
	paths, err := Discover(root, true)
	require.NoError(t, err)
	runner := NewRunner(Config{Options: extraction.DefaultOptions()})

	effects, err := runner.VdsEffects(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	for _, e := range effects {
		assert.InDelta(t, e.VthSqrt-e.VthTraditional, e.Diff, 1e-15)
		assert.InDelta(t, e.Diff/math.Abs(e.VthTraditional)*100, e.DiffPercent, 1e-9)
		assert.Equal(t, 2, e.DeviceIndex)
	}

	rows, err := runner.HybridComparisons(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "traditional", rows[0].Used)
	assert.InDelta(t, 0.1, rows[0].DrainBias, 1e-12)
	assert.Equal(t, 0.0, rows[0].HybridVsTrad)
}

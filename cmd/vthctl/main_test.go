package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/vthlab/internal/report"
)

func sweep(biases ...float64) string {
	var b strings.Builder
	b.WriteString("Index\tVg\tId\tTime\tVd\n")
	n := 0
	for _, vd := range biases {
		for i := 0; i <= 24; i++ {
			vg := float64(i) * 0.05
			id := 1e-12
			if vg > 0.4 {
				id = 1e-4 * (vg - 0.4) * (vg - 0.4)
			}
			n++
			fmt.Fprintf(&b, "%d\t%.6fV\t%.6fnA\t%d\t%.6fV\n", n, vg, id*1e9, n, vd)
		}
	}
	return b.String()
}

func measurementTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"chip1/295K/nmos/1.txt": sweep(0, 0.1, 1.1),
		"chip2/295K/nmos/1.txt": sweep(0, 0.1, 1.1),
		"chip1/77K/nmos/1.txt":  sweep(0, 0.1, 1.1),
		"chip1/77K/nmos/2.txt":  "not a measurement\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// execute runs vthctl with an isolated config file and record store
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.toml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestExtract_WritesCSV(t *testing.T) {
	root := measurementTree(t)
	dir := t.TempDir()

	out, err := execute(t, dir, "extract", root, "--out", "-", "--method", "traditional,sqrt")
	require.NoError(t, err)

	records, err := report.ReadRecords(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, records, 7)

	var parseErrors int
	for _, r := range records {
		if strings.HasPrefix(r.Notes, "parse_error") {
			parseErrors++
			continue
		}
		assert.True(t, r.OK(), r.Notes)
		assert.Greater(t, r.VthVolts, 0.3)
	}
	assert.Equal(t, 1, parseErrors)
}

func TestExtract_SaveThenSummarize(t *testing.T) {
	root := measurementTree(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "records.db")

	_, err := execute(t, dir, "extract", root, "--save", "--db", db, "--out", filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "out.csv"))

	out, err := execute(t, dir, "summary", "--db", db, "--out", "-")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	// header, 295K nmos1 over two chips, 77K nmos1
	require.Len(t, rows, 3)
	assert.Contains(t, strings.Join(rows[1], ","), "295K")
}

func TestSummary_FromInputCSV(t *testing.T) {
	root := measurementTree(t)
	dir := t.TempDir()
	results := filepath.Join(dir, "results.csv")

	_, err := execute(t, dir, "extract", root, "--out", results)
	require.NoError(t, err)

	out, err := execute(t, dir, "dvdt", "--input", results, "--out", "-")
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	// one series at 0.1 V, differentiated at both temperatures
	assert.Len(t, rows, 3)
}

func TestExtract_RejectsUnknownMethod(t *testing.T) {
	root := measurementTree(t)
	_, err := execute(t, t.TempDir(), "extract", root, "--method", "magic")
	assert.Error(t, err)
}

func TestExtract_ConfigFileSetsDefaults(t *testing.T) {
	root := measurementTree(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[extraction]
methods = ["sqrt"]
all-vd = true
`), 0o644))

	out, err := execute(t, dir, "extract", root, "--out", "-")
	require.NoError(t, err)
	records, err := report.ReadRecords(strings.NewReader(out))
	require.NoError(t, err)
	for _, r := range records {
		if r.OK() {
			assert.Equal(t, "sqrt", r.Method)
		}
	}
	// three good files with two non-zero blocks each, plus one parse error
	assert.Len(t, records, 7)

	// an explicit flag beats the file
	out, err = execute(t, dir, "extract", root, "--out", "-", "--method", "traditional", "--all-vd=false")
	require.NoError(t, err)
	records, err = report.ReadRecords(strings.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, "traditional", records[0].Method)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(out))
	assert.FileExists(t, filepath.Join(dir, "config.toml"))

	_, err = execute(t, dir, "config", "init")
	assert.Error(t, err)
}

func TestVdsEffect(t *testing.T) {
	root := measurementTree(t)
	out, err := execute(t, t.TempDir(), "vds-effect", root)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	// header plus two non-zero blocks for each of three good files
	assert.Len(t, rows, 7)
}

func TestInspect(t *testing.T) {
	root := measurementTree(t)
	plots := filepath.Join(t.TempDir(), "plots")

	out, err := execute(t, t.TempDir(), "inspect", filepath.Join(root, "chip1", "295K", "nmos", "1.txt"),
		"--method", "traditional,hybrid", "--plot-dir", plots)
	require.NoError(t, err)
	assert.Contains(t, out, "75 accepted")
	assert.Contains(t, out, "hybrid→sqrt")

	entries, err := os.ReadDir(plots)
	require.NoError(t, err)
	// two non-zero blocks, two methods each
	assert.Len(t, entries, 4)
}

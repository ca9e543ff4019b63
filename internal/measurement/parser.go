// Package measurement parses instrument I-V sweep files into sweep blocks.
package measurement

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/RMahshie/vthlab/pkg/models"
)

// Column positions within a data line (Index, Vg, Id, Time, Vd).
const (
	colVg     = 1
	colId     = 2
	colVd     = 4
	minFields = 5

	// maxLineLength bounds a single data line; longer lines are skipped.
	maxLineLength = 1024 * 1024
)

var requiredColumns = []string{"Vg", "Id", "Vd"}

// FormatError is returned when a file cannot be used at all: the header is
// missing required columns or the file could not be read.
type FormatError struct {
	Path   string
	Header string
	Err    error
}

func (e *FormatError) Error() string {
	name := e.Path
	if name == "" {
		name = "<input>"
	}
	if e.Err != nil {
		return fmt.Sprintf("read %s: %v", name, e.Err)
	}
	return fmt.Sprintf("unexpected header in %s: %q", name, e.Header)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Stats counts how many data lines were accepted or skipped
type Stats struct {
	Lines    int
	Accepted int
	Skipped  int
}

// ParseFile reads and parses the measurement file at path
func ParseFile(path string) ([]models.SweepBlock, error) {
	blocks, _, err := ParseFileWithStats(path)
	return blocks, err
}

// ParseFileWithStats is ParseFile that also reports line counts
func ParseFileWithStats(path string) ([]models.SweepBlock, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, &FormatError{Path: path, Err: err}
	}
	defer f.Close()

	blocks, stats, err := parse(f)
	var fe *FormatError
	if errors.As(err, &fe) {
		fe.Path = path
	}
	return blocks, stats, err
}

// Parse reads a measurement table from r. Garbled data lines are skipped.
func Parse(r io.Reader) ([]models.SweepBlock, error) {
	blocks, _, err := parse(r)
	return blocks, err
}

// ParseWithStats is Parse that also reports line counts
func ParseWithStats(r io.Reader) ([]models.SweepBlock, Stats, error) {
	return parse(r)
}

func parse(r io.Reader) ([]models.SweepBlock, Stats, error) {
	var stats Stats
	br := bufio.NewReaderSize(r, 64*1024)

	first, _, err := readLine(br)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, stats, &FormatError{Err: err}
	}
	if errors.Is(err, io.EOF) && first == "" {
		return nil, stats, &FormatError{Err: errors.New("missing header line")}
	}
	header := strings.TrimPrefix(first, "\ufeff")
	for _, col := range requiredColumns {
		if !strings.Contains(header, col) {
			return nil, stats, &FormatError{Header: header}
		}
	}

	buckets := make(map[float64][]models.Sample)
	for !errors.Is(err, io.EOF) {
		var (
			raw     string
			tooLong bool
		)
		raw, tooLong, err = readLine(br)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, stats, &FormatError{Err: err}
		}

		line := strings.TrimSpace(raw)
		if line == "" && !tooLong {
			continue
		}
		stats.Lines++

		if tooLong {
			stats.Skipped++
			continue
		}
		vd, sample, ok := parseLine(line)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Accepted++
		buckets[vd] = append(buckets[vd], sample)
	}

	return groupBlocks(buckets), stats, nil
}

// readLine returns the next line without its terminator. A line longer than
// maxLineLength is consumed to its end and reported as tooLong with no text.
// err is io.EOF on the final line.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, rerr := br.ReadLine()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && (len(buf) > 0 || tooLong) {
				break
			}
			return "", tooLong, rerr
		}
		if !tooLong {
			if len(buf)+len(chunk) > maxLineLength {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
	return string(buf), tooLong, nil
}

// parseLine extracts (Vd, sample) from one data line
func parseLine(line string) (float64, models.Sample, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < minFields {
		parts = strings.Fields(line)
		if len(parts) < minFields {
			return 0, models.Sample{}, false
		}
	}

	vg, err := ParseVoltage(parts[colVg])
	if err != nil {
		return 0, models.Sample{}, false
	}
	id, err := ParseCurrent(parts[colId])
	if err != nil {
		return 0, models.Sample{}, false
	}
	vd, err := ParseVoltage(parts[colVd])
	if err != nil {
		return 0, models.Sample{}, false
	}
	return vd, models.Sample{Vg: vg, Id: id}, true
}

// groupBlocks sorts each bucket by gate voltage and the blocks by drain bias.
// Buckets are keyed on the exact converted drain bias.
func groupBlocks(buckets map[float64][]models.Sample) []models.SweepBlock {
	biases := make([]float64, 0, len(buckets))
	for vd := range buckets {
		biases = append(biases, vd)
	}
	sort.Float64s(biases)

	blocks := make([]models.SweepBlock, 0, len(biases))
	for _, vd := range biases {
		samples := buckets[vd]
		sort.SliceStable(samples, func(i, j int) bool { return samples[i].Vg < samples[j].Vg })
		blocks = append(blocks, models.NewSweepBlock(vd, samples))
	}
	return blocks
}

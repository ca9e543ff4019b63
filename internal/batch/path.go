package batch

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/RMahshie/vthlab/pkg/models"
)

var (
	indexPattern       = regexp.MustCompile(`^(\d+)\.txt$`)
	temperaturePattern = regexp.MustCompile(`[^/\\]+K`)
	chipPattern        = regexp.MustCompile(`[\\/](chip\d+)[\\/]`)
)

// FileInfo is the metadata a measurement path carries by convention,
// e.g. data/chip3/295K/pmos/2.txt
type FileInfo struct {
	Path        string
	Polarity    models.Polarity
	DeviceIndex int
	Temperature string
	Chip        string
}

// Describe infers every path-derived field at once
func Describe(path string) FileInfo {
	idx, _ := DeviceIndex(path)
	return FileInfo{
		Path:        path,
		Polarity:    InferPolarity(path),
		DeviceIndex: idx,
		Temperature: Temperature(path),
		Chip:        Chip(path),
	}
}

// Record returns an empty record stamped with the file metadata
func (f FileInfo) Record() models.Record {
	return models.Record{
		FilePath:    f.Path,
		Temperature: f.Temperature,
		Device:      f.Polarity.String(),
		DeviceIndex: f.DeviceIndex,
		Chip:        f.Chip,
		Index:       -1,
	}
}

// InferPolarity returns PMOS when a path segment is "pmos" and NMOS otherwise
func InferPolarity(path string) models.Polarity {
	if strings.Contains(segments(path), "/pmos/") {
		return models.PMOS
	}
	return models.NMOS
}

// segments lower-cases path with a leading slash and forward separators so
// directory names can be matched as "/name/" on any platform.
func segments(path string) string {
	return "/" + strings.ToLower(strings.ReplaceAll(path, `\`, "/"))
}

// DeviceIndex parses N from a base name of the form N.txt
func DeviceIndex(path string) (int, bool) {
	m := indexPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Temperature returns the first path token ending in K (e.g. "295K"), or ""
func Temperature(path string) string {
	return temperaturePattern.FindString(path)
}

// Chip returns the chipN directory a path passes through, or ""
func Chip(path string) string {
	m := chipPattern.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

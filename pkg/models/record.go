package models

import (
	"math"
	"strconv"
	"strings"
)

// Note tags carried by a Record when extraction did not succeed.
// Downstream tooling matches on these prefixes.
const (
	NoteParseError    = "parse_error"
	NoteComputeError  = "compute_error"
	NoteNoValidBlocks = "no_valid_blocks"
)

// Record is one (file, drain bias, method) extraction outcome.
// VthVolts and GmMax are NaN when no value was produced; Index is -1 on failure.
type Record struct {
	FilePath    string
	Temperature string
	Device      string
	DeviceIndex int // 0 when the file name carries no index
	Chip        string
	Method      string
	Used        string // algorithm that ran; differs from Method only for hybrid
	DrainBias   float64
	VthVolts    float64
	GmMax       float64
	Index       int
	NumPoints   int
	Notes       string
}

// FailedRecord returns a record with NaN values and the given note
func FailedRecord(note string) Record {
	return Record{
		DrainBias: math.NaN(),
		VthVolts:  math.NaN(),
		GmMax:     math.NaN(),
		Index:     -1,
		Notes:     note,
	}
}

// OK reports whether the record carries a threshold voltage
func (r Record) OK() bool {
	return r.Notes == "" && !math.IsNaN(r.VthVolts)
}

// Failed reports whether the record carries a failure tag
func (r Record) Failed() bool {
	return strings.HasPrefix(r.Notes, NoteParseError) ||
		strings.HasPrefix(r.Notes, NoteComputeError) ||
		r.Notes == NoteNoValidBlocks
}

// DeviceLabel returns the device name plus index, e.g. "nmos2"
func (r Record) DeviceLabel() string {
	if r.DeviceIndex <= 0 {
		return r.Device
	}
	return r.Device + strconv.Itoa(r.DeviceIndex)
}

// ParseKelvin converts a temperature token such as "77K" to a number
func ParseKelvin(token string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(token), "K"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// RecordResponse is the JSON view of a Record. NaN values are encoded as null.
type RecordResponse struct {
	FilePath    string   `json:"file_path" doc:"Measurement file path or S3 key"`
	Temperature string   `json:"temperature,omitempty" doc:"Temperature token such as 295K"`
	Device      string   `json:"device" enum:"nmos,pmos" doc:"Device polarity"`
	DeviceIndex int      `json:"device_index,omitempty" doc:"Device index from the file name"`
	Chip        string   `json:"chip,omitempty" doc:"Chip identifier from the path"`
	Method      string   `json:"method,omitempty" doc:"Requested algorithm"`
	Used        string   `json:"used,omitempty" doc:"Algorithm that produced the value"`
	DrainBias   *float64 `json:"vd_volts,omitempty" doc:"Drain bias of the selected block in volts"`
	VthVolts    *float64 `json:"vth_volts" doc:"Signed threshold voltage, null on failure"`
	GmMax       *float64 `json:"gm_max" doc:"Transconductance at the selected index, null on failure"`
	Index       int      `json:"index" doc:"Selected sample index, -1 on failure"`
	NumPoints   int      `json:"num_points" doc:"Samples in the selected block"`
	Notes       string   `json:"notes" doc:"Empty on success, otherwise a failure tag"`
}

// ToResponse converts the record into its JSON view
func (r Record) ToResponse() RecordResponse {
	return RecordResponse{
		FilePath:    r.FilePath,
		Temperature: r.Temperature,
		Device:      r.Device,
		DeviceIndex: r.DeviceIndex,
		Chip:        r.Chip,
		Method:      r.Method,
		Used:        r.Used,
		DrainBias:   finite(r.DrainBias),
		VthVolts:    finite(r.VthVolts),
		GmMax:       finite(r.GmMax),
		Index:       r.Index,
		NumPoints:   r.NumPoints,
		Notes:       r.Notes,
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

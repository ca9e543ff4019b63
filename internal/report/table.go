package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/RMahshie/vthlab/internal/aggregate"
	"github.com/RMahshie/vthlab/pkg/models"
)

const (
	columnGap           = 2
	minColumnWidth      = 6
	terminalWidthBackup = 120
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Table is a plain grid of cells rendered with aligned columns
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render writes the table, fitting it to maxWidth by shrinking the widest
// column. Color highlights status cells and failure notes.
func (t Table) Render(w io.Writer, maxWidth int, color bool) error {
	widths := t.columnWidths()
	fit(widths, maxWidth)

	var b strings.Builder
	b.WriteString(t.line(t.Headers, widths, func(string) lipgloss.Style { return headerStyle }, color))
	for _, row := range t.Rows {
		b.WriteString(t.line(row, widths, cellStyle, color))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (t Table) columnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}
	return widths
}

// fit narrows the widest column until the row fits or nothing can shrink
func fit(widths []int, maxWidth int) {
	if maxWidth <= 0 {
		return
	}
	for {
		total := columnGap * (len(widths) - 1)
		widest := 0
		for i, width := range widths {
			total += width
			if width > widths[widest] {
				widest = i
			}
		}
		if total <= maxWidth || widths[widest] <= minColumnWidth {
			return
		}
		widths[widest] -= min(total-maxWidth, widths[widest]-minColumnWidth)
	}
}

func (t Table) line(cells []string, widths []int, style func(string) lipgloss.Style, color bool) string {
	parts := make([]string, len(widths))
	for i, width := range widths {
		raw := ""
		if i < len(cells) {
			raw = cells[i]
		}
		cell := runewidth.FillRight(runewidth.Truncate(raw, width, "…"), width)
		if color {
			cell = style(raw).Render(cell)
		}
		parts[i] = cell
	}
	return strings.TrimRight(strings.Join(parts, strings.Repeat(" ", columnGap)), " ") + "\n"
}

func cellStyle(raw string) lipgloss.Style {
	switch {
	case raw == aggregate.StatusPass:
		return passStyle
	case raw == aggregate.StatusFail:
		return failStyle
	case raw == aggregate.StatusMissing,
		strings.HasPrefix(raw, models.NoteParseError),
		strings.HasPrefix(raw, models.NoteComputeError),
		raw == models.NoteNoValidBlocks:
		return mutedStyle
	default:
		return lipgloss.NewStyle()
	}
}

// Print renders t to w at the terminal's width, with color only on a TTY
func Print(w io.Writer, t Table) error {
	return t.Render(w, TerminalWidth(), ShouldUseColor(w))
}

// TerminalWidth returns the width of stdout, or a fallback when it is not
// a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether w is a terminal and NO_COLOR is unset
func ShouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// RecordsTable lays out extraction records
func RecordsTable(records []models.Record) Table {
	t := Table{Headers: []string{"file", "T", "device", "method", "Vd (V)", "Vth (V)", "gm_max (A/V)", "idx", "notes"}}
	for _, r := range records {
		method := r.Method
		if r.Used != "" && r.Used != r.Method {
			method = fmt.Sprintf("%s→%s", r.Method, r.Used)
		}
		t.Rows = append(t.Rows, []string{
			r.FilePath, r.Temperature, r.DeviceLabel(), method,
			num(r.DrainBias), num(r.VthVolts), num(r.GmMax), strconv.Itoa(r.Index), r.Notes,
		})
	}
	return t
}

// SummaryTable lays out per-device statistics
func SummaryTable(summaries []aggregate.Summary) Table {
	t := Table{Headers: []string{"T", "device", "method", "n", "mean (V)", "std (V)", "min (V)", "max (V)"}}
	for _, s := range summaries {
		t.Rows = append(t.Rows, []string{
			s.Temperature, s.DeviceLabel(), s.Method, strconv.Itoa(s.Count),
			num(s.Mean), num(s.Std), num(s.Min), num(s.Max),
		})
	}
	return t
}

// ComparisonTable lays out a reference comparison
func ComparisonTable(rows []aggregate.Comparison) Table {
	t := Table{Headers: []string{"T (K)", "device", "method", "avg (V)", "ref avg (V)", "Δavg (V)", "Δstd (V)", "status"}}
	for _, c := range rows {
		t.Rows = append(t.Rows, []string{
			num(c.Temperature), c.DeviceLabel, c.Method, num(c.OursAvg), num(c.RefAvg),
			num(c.DeltaAvg), num(c.DeltaStd), c.Status,
		})
	}
	return t
}

// CoefficientTable lays out dVth/dT points
func CoefficientTable(rows []aggregate.Coefficient) Table {
	t := Table{Headers: []string{"device", "method", "Vd (V)", "T (K)", "Vth (V)", "dVth/dT (V/K)"}}
	for _, c := range rows {
		t.Rows = append(t.Rows, []string{c.Device, c.Method, num(c.DrainBias), num(c.Temperature), num(c.Vth), num(c.DvthDt)})
	}
	return t
}

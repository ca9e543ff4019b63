package models

import (
	"fmt"
	"strings"
)

// Sample represents a single (gate voltage, drain current) reading in SI units
type Sample struct {
	Vg float64 `json:"vg" doc:"Gate voltage in volts"`
	Id float64 `json:"id" doc:"Drain current in amperes"`
}

// SweepBlock represents one gate-voltage sweep held at a constant drain bias.
// Gate voltages are ascending and index-aligned with drain currents.
type SweepBlock struct {
	drainBias     float64
	gateVoltages  []float64
	drainCurrents []float64
}

// NewSweepBlock builds a block from samples already sorted by gate voltage
func NewSweepBlock(drainBias float64, samples []Sample) SweepBlock {
	vg := make([]float64, len(samples))
	id := make([]float64, len(samples))
	for i, s := range samples {
		vg[i] = s.Vg
		id[i] = s.Id
	}
	return SweepBlock{drainBias: drainBias, gateVoltages: vg, drainCurrents: id}
}

// DrainBias returns the constant drain bias of the sweep in volts
func (b SweepBlock) DrainBias() float64 { return b.drainBias }

// GateVoltages returns a copy of the gate voltage axis
func (b SweepBlock) GateVoltages() []float64 {
	return append([]float64(nil), b.gateVoltages...)
}

// DrainCurrents returns a copy of the drain currents
func (b SweepBlock) DrainCurrents() []float64 {
	return append([]float64(nil), b.drainCurrents...)
}

// NumPoints returns the number of samples in the sweep
func (b SweepBlock) NumPoints() int { return len(b.gateVoltages) }

// Polarity is the device type a sweep is interpreted as
type Polarity int

const (
	NMOS Polarity = iota
	PMOS
)

func (p Polarity) String() string {
	switch p {
	case NMOS:
		return "nmos"
	case PMOS:
		return "pmos"
	default:
		return fmt.Sprintf("polarity(%d)", int(p))
	}
}

// ParsePolarity accepts "nmos" or "pmos" in any case
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nmos":
		return NMOS, nil
	case "pmos":
		return PMOS, nil
	default:
		return NMOS, fmt.Errorf("unknown device polarity %q", s)
	}
}

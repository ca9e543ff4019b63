package measurement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	voltageToken = regexp.MustCompile(`(?i)^\s*([+-]?[0-9]*\.?[0-9]+)\s*(mV|V)\s*$`)
	currentToken = regexp.MustCompile(`(?i)^\s*([+-]?[0-9]*\.?[0-9]+)\s*(pA|nA|uA|µA|mA|A)\s*$`)
)

var currentScale = map[string]float64{
	"a":  1,
	"ma": 1e-3,
	"ua": 1e-6,
	"µa": 1e-6,
	"μa": 1e-6, // greek mu, reachable through case folding
	"na": 1e-9,
	"pa": 1e-12,
}

// ParseVoltage converts a token such as "300mV" or "-1.2 V" to volts
func ParseVoltage(token string) (float64, error) {
	m := voltageToken.FindStringSubmatch(token)
	if m == nil {
		return 0, fmt.Errorf("cannot parse voltage token %q", token)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse voltage token %q: %w", token, err)
	}
	switch strings.ToLower(m[2]) {
	case "v":
		return value, nil
	case "mv":
		return value * 1e-3, nil
	}
	return 0, fmt.Errorf("unsupported voltage unit in token %q", token)
}

// ParseCurrent converts a token such as "10pA" or "1.5 uA" to amperes
func ParseCurrent(token string) (float64, error) {
	m := currentToken.FindStringSubmatch(token)
	if m == nil {
		return 0, fmt.Errorf("cannot parse current token %q", token)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse current token %q: %w", token, err)
	}
	scale, ok := currentScale[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("unsupported current unit in token %q", token)
	}
	return value * scale, nil
}

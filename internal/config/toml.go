package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the optional TOML file read by vthctl
type FileConfig struct {
	Extraction ExtractionFile `toml:"extraction"`
	Batch      BatchFile      `toml:"batch"`
}

// ExtractionFile maps extraction settings. Unset keys stay nil.
type ExtractionFile struct {
	Methods           *[]string `toml:"methods"`
	TargetVd          *float64  `toml:"target-vd"`
	AllVd             *bool     `toml:"all-vd"`
	Criterion         *string   `toml:"criterion"`
	ReflectionVoltage *float64  `toml:"reflection-voltage"`
	Window            *int      `toml:"window"`
	HybridThreshold   *float64  `toml:"hybrid-threshold"`
	VdTolerance       *float64  `toml:"vd-tolerance"`
	IncludeZero       *bool     `toml:"include-zero-vd"`
}

// BatchFile maps batch run settings
type BatchFile struct {
	Workers     *int    `toml:"workers"`
	DevicesOnly *bool   `toml:"devices-only"`
	DB          *string `toml:"db"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Apply copies every key set in the file onto cfg
func (f FileConfig) Apply(cfg *Config) {
	e := f.Extraction
	setFloat(&cfg.Extraction.ReflectionVoltage, e.ReflectionVoltage)
	setInt(&cfg.Extraction.Window, e.Window)
	setString(&cfg.Extraction.Criterion, e.Criterion)
	setFloat(&cfg.Extraction.HybridThreshold, e.HybridThreshold)
	setFloat(&cfg.Extraction.VdTolerance, e.VdTolerance)
	setBool(&cfg.Extraction.IncludeZero, e.IncludeZero)
	setInt(&cfg.Batch.Workers, f.Batch.Workers)
	setString(&cfg.Batch.SQLitePath, f.Batch.DB)
}

func setString(target, value *string) {
	if value != nil {
		*target = *value
	}
}

func setInt(target, value *int) {
	if value != nil {
		*target = *value
	}
}

func setFloat(target, value *float64) {
	if value != nil {
		*target = *value
	}
}

func setBool(target, value *bool) {
	if value != nil {
		*target = *value
	}
}

// DefaultTemplate is written by `vthctl config init`
func DefaultTemplate() string {
	return `# vthctl configuration
# Command line flags take precedence over values set here.

[extraction]
# methods = ["traditional", "sqrt"]
# target-vd = 0.1
# all-vd = false
# criterion = "max-gm"
# reflection-voltage = 1.2
# window = 7
# hybrid-threshold = 0.5
# vd-tolerance = 0.01
# include-zero-vd = false

[batch]
# workers = 4
# devices-only = false
# db = "~/.local/share/vthlab/records.db"
`
}

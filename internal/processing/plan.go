package processing

import (
	"github.com/RMahshie/vthlab/internal/batch"
	"github.com/RMahshie/vthlab/internal/extraction"
	"github.com/RMahshie/vthlab/pkg/models"
)

// Defaults are the server-wide extraction settings requests start from
type Defaults struct {
	Options     extraction.Options
	IncludeZero bool
}

// Plan is a resolved extraction request for one measurement file
type Plan struct {
	Info   batch.FileInfo
	Runner *batch.Runner
}

// NewPlan validates request parameters and resolves them against the
// defaults. Device, index, temperature and chip are inferred from fileName
// unless params names the device explicitly.
func NewPlan(fileName string, params models.ExtractionParams, defaults Defaults) (Plan, error) {
	methods, err := extraction.ParseMethods(params.Methods)
	if err != nil {
		return Plan{}, err
	}

	opts := defaults.Options
	if params.Criterion != "" {
		if opts.Criterion, err = extraction.ParseCriterion(params.Criterion); err != nil {
			return Plan{}, err
		}
	}

	info := batch.Describe(fileName)
	if params.Device != "" {
		if info.Polarity, err = models.ParsePolarity(params.Device); err != nil {
			return Plan{}, err
		}
	}

	runner := batch.NewRunner(batch.Config{
		Methods:     methods,
		TargetVd:    params.TargetVd,
		AllVd:       params.AllVd,
		IncludeZero: defaults.IncludeZero,
		Options:     opts,
		Workers:     1,
	})
	return Plan{Info: info, Runner: runner}, nil
}

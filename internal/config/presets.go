package config

import (
	"sort"

	"github.com/san-kum/odelab/internal/dynamo"
)

func withOptions(mut func(*dynamo.Options)) dynamo.Options {
	o := dynamo.DefaultOptions()
	mut(&o)
	return o
}

var Presets = map[string]map[string]*Config{
	"lotka-volterra": {
		"fixture": {
			Model: "lotka-volterra", Method: "euler", StepSize: 0.01, TEnd: 1.0,
			Y0: []float64{10, 10}, Pars: []float64{1.1, 0.4, 0.4, 0.1},
			Options: dynamo.DefaultOptions(),
		},
		"cycles": {
			Model: "lotka-volterra", Method: "dopri5", StepSize: DefaultStepSize, TEnd: 50.0,
			Y0: []float64{10, 10}, Pars: []float64{1.1, 0.4, 0.4, 0.1},
			Options: dynamo.DefaultOptions(),
		},
		"seasons": {
			Model: "lotka-volterra", Method: "kvaerno5", StepSize: DefaultStepSize,
			Y0: []float64{10, 10},
			Protocol: []Segment{
				{TEnd: 10, Pars: []float64{1.1, 0.4, 0.4, 0.1}},
				{TEnd: 20, Pars: []float64{0.6, 0.4, 0.4, 0.1}},
				{TEnd: 30, Pars: []float64{1.1, 0.4, 0.4, 0.1}},
			},
			Options: dynamo.DefaultOptions(),
		},
	},
	"decay": {
		"stiff": {
			Model: "decay", Method: "backward-euler", StepSize: 0.01, TEnd: 1.0,
			Y0: []float64{1}, Pars: []float64{1000},
			Options: withOptions(func(o *dynamo.Options) { o.HInit, o.HMax = 0.01, 0.01 }),
		},
		"unstable": {
			Model: "decay", Method: "euler", StepSize: 0.01, TEnd: 1.0,
			Y0: []float64{1}, Pars: []float64{1000},
			Options: dynamo.DefaultOptions(),
		},
	},
	"vanderpol": {
		"limit-cycle": {
			Model: "vanderpol", Method: "dopri5", StepSize: DefaultStepSize, TEnd: 20.0,
			Y0: []float64{2, 0}, Pars: []float64{1},
			Options: dynamo.DefaultOptions(),
		},
		"stiff": {
			Model: "vanderpol", Method: "kvaerno5", StepSize: DefaultStepSize, TEnd: 10.0,
			Y0: []float64{2, 0}, Pars: []float64{1000},
			Options: dynamo.DefaultOptions(),
		},
	},
	"robertson": {
		"classic": {
			Model: "robertson", Method: "kvaerno5", StepSize: DefaultStepSize, TEnd: 40.0,
			Y0: []float64{1, 0, 0}, Pars: []float64{0.04, 3e7, 1e4},
			Options: withOptions(func(o *dynamo.Options) { o.RTol, o.ATol = 1e-4, 1e-10 }),
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

// ListPresets returns the preset names of a model in sorted order.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

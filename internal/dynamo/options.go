package dynamo

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Options configures an adaptive run. It is passed by value and never
// modified by an integrator.
type Options struct {
	RTol     float64 `yaml:"rtol" json:"rtol" validate:"gt=0"`
	ATol     float64 `yaml:"atol" json:"atol" validate:"gt=0"`
	HMin     float64 `yaml:"h_min" json:"h_min" validate:"gt=0"`
	HMax     float64 `yaml:"h_max" json:"h_max" validate:"gtefield=HMin"`
	HInit    float64 `yaml:"h_init" json:"h_init" validate:"gtefield=HMin,ltefield=HMax"`
	MaxSteps int     `yaml:"max_steps" json:"max_steps" validate:"gt=0"`
	MaxIter  int     `yaml:"max_iter" json:"max_iter" validate:"gt=0"`
}

func DefaultOptions() Options {
	return Options{
		RTol:     1e-6,
		ATol:     1e-8,
		HMin:     1e-8,
		HMax:     1.0,
		HInit:    0.1,
		MaxSteps: 10000,
		MaxIter:  10,
	}
}

// Validate checks ranges and the ordering HMin <= HInit <= HMax.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ValidateStruct runs the shared validator over any tagged struct.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

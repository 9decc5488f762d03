package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/odelab/internal/dynamo"
)

const (
	DefaultModel    = "lotka-volterra"
	DefaultMethod   = "kvaerno5"
	DefaultStepSize = 0.01
	DefaultTEnd     = 10.0
)

// Config describes one run. Empty Y0 or Pars fall back to the model's
// defaults. StepSize is used by fixed-step methods and Options by adaptive ones.
type Config struct {
	Model    string         `yaml:"model" json:"model" validate:"required"`
	Method   string         `yaml:"method" json:"method" validate:"oneof=euler heun rk4 bosh3 dopri5 kvaerno5 kvaerno45 backward-euler"`
	TEnd     float64        `yaml:"t_end" json:"t_end" validate:"gte=0"`
	StepSize float64        `yaml:"step_size" json:"step_size" validate:"gt=0"`
	Y0       []float64      `yaml:"y0,omitempty" json:"y0,omitempty"`
	Pars     []float64      `yaml:"pars,omitempty" json:"pars,omitempty"`
	Options  dynamo.Options `yaml:"options" json:"options"`
	// Protocol splits the run into consecutive segments with their own
	// parameters. When set, TEnd is taken from the last segment.
	Protocol []Segment `yaml:"protocol,omitempty" json:"protocol,omitempty" validate:"dive"`
}

// Segment holds parameters until the absolute time TEnd.
type Segment struct {
	TEnd float64   `yaml:"t_end" json:"t_end" validate:"gt=0"`
	Pars []float64 `yaml:"pars" json:"pars" validate:"required"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:    DefaultModel,
		Method:   DefaultMethod,
		TEnd:     DefaultTEnd,
		StepSize: DefaultStepSize,
		Options:  dynamo.DefaultOptions(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field ranges and that protocol segments are increasing
// in time.
func (c *Config) Validate() error {
	if err := dynamo.ValidateStruct(c); err != nil {
		return err
	}
	prev := 0.0
	for i, seg := range c.Protocol {
		if seg.TEnd <= prev {
			return fmt.Errorf("%w: protocol segment %d ends at %v, not after %v",
				dynamo.ErrInvalidConfig, i, seg.TEnd, prev)
		}
		prev = seg.TEnd
	}
	return nil
}

// Adaptive reports whether Method uses the accept/reject driver.
func (c *Config) Adaptive() bool {
	switch c.Method {
	case "euler", "heun", "rk4":
		return false
	}
	return true
}

// FinalTime is TEnd, or the end of the last protocol segment.
func (c *Config) FinalTime() float64 {
	if n := len(c.Protocol); n > 0 {
		return c.Protocol[n-1].TEnd
	}
	return c.TEnd
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Y0 = append([]float64(nil), c.Y0...)
	out.Pars = append([]float64(nil), c.Pars...)
	if c.Protocol != nil {
		out.Protocol = make([]Segment, len(c.Protocol))
		for i, seg := range c.Protocol {
			out.Protocol[i] = Segment{TEnd: seg.TEnd, Pars: append([]float64(nil), seg.Pars...)}
		}
	}
	return &out
}

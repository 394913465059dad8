package runner

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"

	"github.com/l7mp/dverify/pkg/interval"
)

// Mode selects the time model of a run.
type Mode string

const (
	// ModeDense evaluates each pair of consecutive records as a window of continuous time.
	ModeDense Mode = "dense"
	// ModeDiscrete evaluates one step per record.
	ModeDiscrete Mode = "discrete"
)

// Format selects the verdict encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatNone Format = "none"
)

// ErrInvalidConfig is returned for a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var configValidate = validator.New()

// Config is the run configuration.
type Config struct {
	// Mode is the time model, dense or discrete.
	Mode Mode `json:"mode" validate:"required,oneof=dense discrete"`
	// Capacity is the initial number of transitions per arena buffer.
	Capacity int `json:"capacity" validate:"gte=0"`
	// MaxCapacity is a hard limit on an arena buffer, zero for unbounded.
	MaxCapacity int `json:"maxCapacity" validate:"gte=0"`
	// Format is the verdict output format.
	Format Format `json:"format" validate:"required,oneof=text json none"`
	// ViolationsOnly suppresses satisfied verdicts.
	ViolationsOnly bool `json:"violationsOnly"`
	// LogEvery logs progress every n steps, zero disables progress logging.
	LogEvery int `json:"logEvery" validate:"gte=0"`
	// Workers bounds the number of concurrent jobs in a batch, zero for one per job.
	Workers int `json:"workers" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeDiscrete,
		Capacity: interval.DefaultCapacity,
		Format:   FormatText,
	}
}

// Validate checks the field constraints.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s fails %q (value %v)", ErrInvalidConfig, fe.Field(),
				fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.MaxCapacity > 0 && c.MaxCapacity < c.Capacity {
		return fmt.Errorf("%w: maxCapacity %d is below capacity %d", ErrInvalidConfig,
			c.MaxCapacity, c.Capacity)
	}
	return nil
}

// ParseConfig decodes a YAML or JSON configuration on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads a configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

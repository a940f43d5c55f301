package projection

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidTunables = errors.New("invalid tunables")

// LevelValues holds one number per experience level.
type LevelValues struct {
	Beginner     float64 `yaml:"beginner"`
	Intermediate float64 `yaml:"intermediate"`
	Advanced     float64 `yaml:"advanced"`
}

// For returns the value for level, treating unknown levels as intermediate.
func (v LevelValues) For(level ExperienceLevel) float64 {
	switch ParseExperienceLevel(string(level)) {
	case LevelBeginner:
		return v.Beginner
	case LevelAdvanced:
		return v.Advanced
	case LevelIntermediate:
		return v.Intermediate
	default:
		return v.Intermediate
	}
}

// Tunables are the assumptions and layout constants of the engine. They are configuration, not business
// truths, and can be overridden from a YAML file with [LoadTunables].
type Tunables struct {
	// MonthlyRate is the assumed monthly improvement as a fraction of the current value when history is
	// too sparse to observe a rate.
	MonthlyRate LevelValues `yaml:"monthly_rate"`
	// RateFactor adjusts an observed daily rate to the expected trajectory shape.
	RateFactor LevelValues `yaml:"rate_factor"`

	HeavyWeightThresholdKg float64 `yaml:"heavy_weight_threshold_kg"`
	HeavyWeightMultiplier  float64 `yaml:"heavy_weight_multiplier"`
	LightWeightThresholdKg float64 `yaml:"light_weight_threshold_kg"`
	LightWeightMultiplier  float64 `yaml:"light_weight_multiplier"`

	DisplayLength        int     `yaml:"display_length"`
	SyntheticSpacingDays int     `yaml:"synthetic_spacing_days"`
	SyntheticStep        float64 `yaml:"synthetic_step"`
	SyntheticFloor       float64 `yaml:"synthetic_floor"`
	MaxProjectedPoints   int     `yaml:"max_projected_points"`

	Headroom      float64 `yaml:"headroom"`
	TapTargetSize float64 `yaml:"tap_target_size"`
	MarkerSize    float64 `yaml:"marker_size"`
}

// DefaultTunables returns the stock assumptions.
func DefaultTunables() Tunables {
	return Tunables{
		MonthlyRate:            LevelValues{Beginner: 0.10, Intermediate: 0.05, Advanced: 0.02}, //nolint:mnd // defaults
		RateFactor:             LevelValues{Beginner: 1.2, Intermediate: 1.0, Advanced: 0.8},    //nolint:mnd // defaults
		HeavyWeightThresholdKg: 100,                                                             //nolint:mnd // kg
		HeavyWeightMultiplier:  0.9,                                                             //nolint:mnd // slower
		LightWeightThresholdKg: 60,                                                              //nolint:mnd // kg
		LightWeightMultiplier:  1.1,                                                             //nolint:mnd // faster
		DisplayLength:          5,                                                               //nolint:mnd // points
		SyntheticSpacingDays:   15,                                                              //nolint:mnd // days
		SyntheticStep:          0.05,                                                            //nolint:mnd // 5% per step
		SyntheticFloor:         0.8,                                                             //nolint:mnd // 80% of current
		MaxProjectedPoints:     24,                                                              //nolint:mnd // points
		Headroom:               1.1,                                                             //nolint:mnd // 10%
		TapTargetSize:          30,                                                              //nolint:mnd // logical units
		MarkerSize:             8,                                                               //nolint:mnd // logical units
	}
}

// LoadTunables reads YAML from r on top of [DefaultTunables]. Keys missing from the document keep their
// default value.
func LoadTunables(r io.Reader) (Tunables, error) {
	t := DefaultTunables()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tunables{}, fmt.Errorf("decode tunables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}
	return t, nil
}

// LoadTunablesFile reads tunables from the YAML file at path. An empty path yields [DefaultTunables].
func LoadTunablesFile(path string) (_ Tunables, err error) {
	if path == "" {
		return DefaultTunables(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Tunables{}, fmt.Errorf("open tunables: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return LoadTunables(f)
}

// Validate reports the first tunable that would make the engine produce non-finite output.
func (t Tunables) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"monthly_rate.beginner", t.MonthlyRate.Beginner},
		{"monthly_rate.intermediate", t.MonthlyRate.Intermediate},
		{"monthly_rate.advanced", t.MonthlyRate.Advanced},
		{"rate_factor.beginner", t.RateFactor.Beginner},
		{"rate_factor.intermediate", t.RateFactor.Intermediate},
		{"rate_factor.advanced", t.RateFactor.Advanced},
		{"heavy_weight_multiplier", t.HeavyWeightMultiplier},
		{"light_weight_multiplier", t.LightWeightMultiplier},
		{"headroom", t.Headroom},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return fmt.Errorf("%w: %s must be a positive number, got %v", ErrInvalidTunables, p.name, p.value)
		}
	}
	if t.LightWeightThresholdKg > t.HeavyWeightThresholdKg {
		return fmt.Errorf("%w: light_weight_threshold_kg %v above heavy_weight_threshold_kg %v",
			ErrInvalidTunables, t.LightWeightThresholdKg, t.HeavyWeightThresholdKg)
	}
	if t.DisplayLength < 2 { //nolint:mnd // a line needs two points
		return fmt.Errorf("%w: display_length must be at least 2, got %d", ErrInvalidTunables, t.DisplayLength)
	}
	if t.SyntheticSpacingDays < 1 {
		return fmt.Errorf("%w: synthetic_spacing_days must be at least 1, got %d",
			ErrInvalidTunables, t.SyntheticSpacingDays)
	}
	if t.SyntheticStep < 0 || t.SyntheticFloor < 0 || t.SyntheticFloor > 1 {
		return fmt.Errorf("%w: synthetic_step must be >= 0 and synthetic_floor within [0, 1]", ErrInvalidTunables)
	}
	if t.MaxProjectedPoints < 0 {
		return fmt.Errorf("%w: max_projected_points must not be negative", ErrInvalidTunables)
	}
	if t.TapTargetSize < 0 || t.MarkerSize < 0 {
		return fmt.Errorf("%w: tap_target_size and marker_size must not be negative", ErrInvalidTunables)
	}
	return nil
}

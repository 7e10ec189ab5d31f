package resolution

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Rules are the platform's resolution rules: the thresholds mapping the
// weighted indicator score to a verdict. They are user-visible
// configuration, loaded from a TOML file — never hard-coded.
type Rules struct {
	// WorksThreshold: weighted score at or above this resolves "works".
	WorksThreshold float64 `toml:"works_threshold"`

	// FailsThreshold: weighted score at or below this resolves "fails".
	// Scores between the thresholds resolve "partial".
	FailsThreshold float64 `toml:"fails_threshold"`

	// NeutralBandPct: indicators whose direction-adjusted percent change
	// stays inside ±this band count as neutral.
	NeutralBandPct float64 `toml:"neutral_band_pct"`

	// MinIndicators: the minimum number of usable indicators (baseline
	// plus a later measurement) required to resolve at all.
	MinIndicators int `toml:"min_indicators"`

	// ConfidenceMagnitudeScale: the average absolute percent change that
	// maps to full magnitude confidence.
	ConfidenceMagnitudeScale float64 `toml:"confidence_magnitude_scale"`
}

// DefaultRules returns the rules the platform ships with.
func DefaultRules() Rules {
	return Rules{
		WorksThreshold:           0.05,
		FailsThreshold:           -0.05,
		NeutralBandPct:           0.01,
		MinIndicators:            1,
		ConfidenceMagnitudeScale: 0.25,
	}
}

// LoadRules reads rules from a TOML file, merged over the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if _, err := toml.DecodeFile(path, &rules); err != nil {
		return Rules{}, fmt.Errorf("resolution: load rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate checks the rules for internal consistency.
func (r Rules) Validate() error {
	if r.WorksThreshold <= r.FailsThreshold {
		return errors.New("resolution: works threshold must exceed fails threshold")
	}
	if r.NeutralBandPct < 0 {
		return errors.New("resolution: neutral band must be non-negative")
	}
	if r.MinIndicators < 1 {
		return errors.New("resolution: min indicators must be at least 1")
	}
	if r.ConfidenceMagnitudeScale <= 0 {
		return errors.New("resolution: confidence magnitude scale must be positive")
	}
	return nil
}

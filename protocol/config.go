package protocol

import "time"

// Enrollment and measurement bounds. Values outside these ranges are
// rejected before any state change.
const (
	MinAge           = 18
	MaxAge           = 80
	MaxHealthScore   = 100
	MaxEffectiveness = 100
	MaxSideEffects   = 10
	MinWeek          = 1
	MaxWeek          = 12
)

// TrialConfig provides configuration parameters for the trial core.
type TrialConfig struct {
	// PhaseDuration is the fixed time each phase must last before a
	// transition becomes legal.
	PhaseDuration time.Duration `json:"phase_duration"`

	// DesignatedWeek is the measurement week whose effectiveness handles
	// are batched into the decryption request on entry into Analysis.
	DesignatedWeek int `json:"designated_week"`

	// MinOracleSignatures is the number of distinct registered oracle
	// keys that must appear in a callback's signature set.
	MinOracleSignatures int `json:"min_oracle_signatures"`

	// SignificanceThreshold is the minimum difference between the group
	// averages for the result to count as significant.
	SignificanceThreshold uint64 `json:"significance_threshold"`
}

// DefaultTrialConfig returns the standard twelve-week trial parameters.
func DefaultTrialConfig() *TrialConfig {
	return &TrialConfig{
		PhaseDuration:         30 * 24 * time.Hour,
		DesignatedWeek:        4,
		MinOracleSignatures:   1,
		SignificanceThreshold: 10,
	}
}

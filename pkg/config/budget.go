package config

import "time"

// BudgetConfig controls the Cost Accountant (C10): default scope limits and
// the reservation lifecycle for pre-call budget holds.
type BudgetConfig struct {
	// ReservationTTL bounds how long a pre-call budget reservation may sit
	// unsettled before the accountant releases it back to the scope.
	ReservationTTL time.Duration `yaml:"reservation_ttl"`

	// DefaultAlertThreshold is the fraction of a budget's limit (0-1) at
	// which the accountant emits a warning event.
	DefaultAlertThreshold float64 `yaml:"default_alert_threshold"`

	// DefaultScopeLimitsUSD seeds Budget rows for scopes not explicitly
	// configured, keyed by scope_type (e.g. "ticket", "spec", "global").
	DefaultScopeLimitsUSD map[string]float64 `yaml:"default_scope_limits_usd"`
}

// DefaultBudgetConfig returns the built-in Cost Accountant defaults.
func DefaultBudgetConfig() *BudgetConfig {
	return &BudgetConfig{
		ReservationTTL:        5 * time.Minute,
		DefaultAlertThreshold: 0.8,
		DefaultScopeLimitsUSD: map[string]float64{
			"global": 500.0,
			"spec":   100.0,
			"ticket": 20.0,
		},
	}
}

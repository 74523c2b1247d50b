package rules

import "github.com/gokaycavdar/go-loginguard/pkg/models"

// Rule is a single anomaly check over the current login and the user's
// previous evaluated login.
type Rule interface {
	// Name identifies the rule in logs and metrics, e.g. "impossible_travel".
	Name() string

	// Description is a short human-readable summary of the check.
	Description() string

	// Validate runs the check. last is nil on a user's first login.
	// A zero score means the rule did not fire and reason is empty.
	Validate(input models.LastLoginRecord, last *models.LastLoginRecord) (score int, reason string)
}

// Config holds the scores and thresholds of the default rule set.
type Config struct {
	MaxSpeedKmh       float64
	ImpossibleTravel  int
	NewDevice         int
	NewBrowser        int
	NewCountry        int
	UnusualHour       int
	UnusualHourBefore int
	UnusualHourAfter  int
}

// DefaultConfig mirrors the production scoring table.
func DefaultConfig() Config {
	return Config{
		MaxSpeedKmh:       800,
		ImpossibleTravel:  50,
		NewDevice:         20,
		NewBrowser:        10,
		NewCountry:        30,
		UnusualHour:       15,
		UnusualHourBefore: 5,
		UnusualHourAfter:  23,
	}
}

// Default returns the standard rules in evaluation order. Reasons are
// reported in this order.
func Default(cfg Config) []Rule {
	return []Rule{
		NewVelocityRule(cfg.MaxSpeedKmh, cfg.ImpossibleTravel),
		NewDeviceRule(cfg.NewDevice),
		NewBrowserRule(cfg.NewBrowser),
		NewCountryChangeRule(cfg.NewCountry),
		NewUnusualHourRule(cfg.UnusualHourBefore, cfg.UnusualHourAfter, cfg.UnusualHour),
	}
}

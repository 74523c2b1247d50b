package rules

import (
	"fmt"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// UnusualHourRule flags logins whose hour of day is below Before or above
// After. The hour is read in the timestamp's own location.
//
// With the production values (5, 23) the upper bound can never match on a
// 0-23 clock; it stays configurable so a late-night window can be enabled
// (e.g. After=22) without a code change.
type UnusualHourRule struct {
	Before    int
	After     int
	RiskScore int
}

func NewUnusualHourRule(before, after, score int) *UnusualHourRule {
	return &UnusualHourRule{Before: before, After: after, RiskScore: score}
}

func (u *UnusualHourRule) Name() string {
	return "unusual_hour"
}

func (u *UnusualHourRule) Description() string {
	return fmt.Sprintf("Checks whether the login hour is before %02d:00 or after %02d:59.", u.Before, u.After)
}

// Validate does not need history; it also applies to a first login.
func (u *UnusualHourRule) Validate(input models.LastLoginRecord, _ *models.LastLoginRecord) (int, string) {
	hour := input.Timestamp.Hour()
	if hour < u.Before || hour > u.After {
		return u.RiskScore, "Unusual login time"
	}
	return 0, ""
}

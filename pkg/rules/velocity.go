package rules

import (
	"fmt"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// VelocityRule flags impossible travel: the implied speed between the previous
// and the current login location exceeds MaxSpeedKmh.
type VelocityRule struct {
	MaxSpeedKmh float64
	RiskScore   int
}

func NewVelocityRule(maxSpeed float64, score int) *VelocityRule {
	return &VelocityRule{
		MaxSpeedKmh: maxSpeed,
		RiskScore:   score,
	}
}

func (v *VelocityRule) Name() string {
	return "impossible_travel"
}

func (v *VelocityRule) Description() string {
	return fmt.Sprintf("Checks whether travel between consecutive logins exceeds %.0f km/h.", v.MaxSpeedKmh)
}

func (v *VelocityRule) Validate(input models.LastLoginRecord, last *models.LastLoginRecord) (int, string) {
	if last == nil {
		return 0, ""
	}

	// Unknown locations skip the check.
	distance, ok := Distance(last.Geo, input.Geo)
	if !ok {
		return 0, ""
	}

	hours := input.Timestamp.Sub(last.Timestamp).Hours()
	if hours <= 0 {
		return 0, ""
	}

	if distance/hours > v.MaxSpeedKmh {
		return v.RiskScore, fmt.Sprintf("Impossible travel: %.0f km in %.2f hr", distance, hours)
	}
	return 0, ""
}

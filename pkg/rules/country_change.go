package rules

import (
	"fmt"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// CountryChangeRule fires when the resolved country differs from the one of
// the previous login. A failed lookup on either side skips the check.
type CountryChangeRule struct {
	RiskScore int
}

func NewCountryChangeRule(score int) *CountryChangeRule {
	return &CountryChangeRule{RiskScore: score}
}

func (c *CountryChangeRule) Name() string {
	return "new_country"
}

func (c *CountryChangeRule) Description() string {
	return "Checks whether the login country changed since the previous login."
}

func (c *CountryChangeRule) Validate(input models.LastLoginRecord, last *models.LastLoginRecord) (int, string) {
	if last == nil || input.Geo.Failed() || last.Geo.Failed() {
		return 0, ""
	}
	if input.Geo.Country == "" || last.Geo.Country == "" {
		return 0, ""
	}
	if input.Geo.Country != last.Geo.Country {
		return c.RiskScore, fmt.Sprintf("New country: %s", input.Geo.Country)
	}
	return 0, ""
}

package rules

import "github.com/gokaycavdar/go-loginguard/pkg/models"

type BrowserRule struct {
	RiskScore int
}

func NewBrowserRule(score int) *BrowserRule {
	return &BrowserRule{RiskScore: score}
}

func (b *BrowserRule) Name() string { return "new_browser" }

func (b *BrowserRule) Description() string {
	return "Checks whether the browser changed since the previous login."
}

func (b *BrowserRule) Validate(input models.LastLoginRecord, last *models.LastLoginRecord) (int, string) {
	if last == nil || input.Browser == last.Browser {
		return 0, ""
	}
	return b.RiskScore, "New browser detected"
}

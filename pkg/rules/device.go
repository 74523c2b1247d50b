package rules

import "github.com/gokaycavdar/go-loginguard/pkg/models"

// DeviceRule fires when the device ID differs from the previous login.
type DeviceRule struct {
	RiskScore int
}

func NewDeviceRule(score int) *DeviceRule {
	return &DeviceRule{RiskScore: score}
}

func (d *DeviceRule) Name() string { return "new_device" }

func (d *DeviceRule) Description() string {
	return "Checks whether the login comes from a device not seen on the previous login."
}

func (d *DeviceRule) Validate(input models.LastLoginRecord, last *models.LastLoginRecord) (int, string) {
	if last == nil || input.DeviceID == last.DeviceID {
		return 0, ""
	}
	return d.RiskScore, "New device detected"
}

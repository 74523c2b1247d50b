package ensemble

import (
	"time"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
	"github.com/gokaycavdar/go-loginguard/pkg/rules"
)

// firstLoginDeltaMinutes stands in for "no previous login" in training data.
const firstLoginDeltaMinutes = 99999.0

// BuildFeatures derives the model input for a login the same way the
// training pipeline does. prev is the user's previous evaluated login, nil
// on the first one. failedPrev5 is capped at 5.
func BuildFeatures(current models.LastLoginRecord, prev *models.LastLoginRecord, failedPrev5 int) models.FeatureVector {
	fv := models.FeatureVector{
		HourOfDay:    float64(current.Timestamp.Hour()),
		DayOfWeek:    float64(mondayFirst(current.Timestamp.Weekday())),
		DeltaMinutes: firstLoginDeltaMinutes,
		FailedPrev5:  float64(min(max(failedPrev5, 0), 5)),
	}
	if prev == nil {
		return fv
	}

	fv.DeltaMinutes = current.Timestamp.Sub(prev.Timestamp).Minutes()
	if km, ok := rules.Distance(prev.Geo, current.Geo); ok {
		fv.GeoDistanceKm = km
	}
	if current.DeviceID != prev.DeviceID {
		fv.DeviceChange = 1
	}
	return fv
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

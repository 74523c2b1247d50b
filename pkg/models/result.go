package models

import "time"

// NoAnomalies is the single reason reported when no rule fired.
const NoAnomalies = "No anomalies detected"

// Status is the outcome attached to a RiskAssessment by the guard pipeline.
type Status string

const (
	StatusEvaluated Status = "evaluated"
	StatusFailed    Status = "failed"
	StatusLockedNow Status = "locked_now"
	StatusLocked    Status = "locked"
)

// RiskAssessment is the immutable result handed to persistence and alerting.
//
// RiskScore is clamped to 0-100 when produced by the rule evaluator. Scores
// produced by the lockout policy are the raw additive brute-force score and
// can exceed 100.
type RiskAssessment struct {
	UserID    string        `json:"user_id"`
	RiskScore int           `json:"risk_score"`
	Reasons   []string      `json:"reasons"`
	Geo       GeoLocation   `json:"geo"`
	Timestamp time.Time     `json:"timestamp"`
	Status    Status        `json:"status,omitempty"`
	Ensemble  *EnsembleView `json:"ensemble,omitempty"`
}

// IsClean reports whether the assessment carries only the no-anomaly sentinel.
func (r *RiskAssessment) IsClean() bool {
	return len(r.Reasons) == 1 && r.Reasons[0] == NoAnomalies
}

// EnsembleView records the blended score next to the model outputs it came from.
type EnsembleView struct {
	Score         EnsembleScore `json:"score"`
	CombinedScore float64       `json:"combined_score"`
}

// FeatureVector is the fixed-order model input produced by the feature pipeline.
type FeatureVector struct {
	HourOfDay     float64 `json:"hour_of_day"`
	DayOfWeek     float64 `json:"day_of_week"`
	DeltaMinutes  float64 `json:"delta_minutes"`
	GeoDistanceKm float64 `json:"geodistance_km"`
	DeviceChange  float64 `json:"device_change"`
	FailedPrev5   float64 `json:"failed_prev_5"`
}

// FeatureNames lists the feature columns in model order.
var FeatureNames = []string{
	"hour_of_day",
	"day_of_week",
	"delta_minutes",
	"geodistance_km",
	"device_change",
	"failed_prev_5",
}

// Slice returns the features in model order.
func (f FeatureVector) Slice() []float64 {
	return []float64{f.HourOfDay, f.DayOfWeek, f.DeltaMinutes, f.GeoDistanceKm, f.DeviceChange, f.FailedPrev5}
}

// EnsembleScore holds the raw and normalized outputs of the two anomaly models.
type EnsembleScore struct {
	IFRaw  float64 `json:"if_raw"`
	IFNorm float64 `json:"if_norm"`
	AEErr  float64 `json:"ae_err"`
	AENorm float64 `json:"ae_norm"`
}

// BruteForceStatus is a snapshot of the failure counters for a (user, ip) pair.
type BruteForceStatus struct {
	UserFailCount       int        `json:"user_fail_count"`
	IPFailCount         int        `json:"ip_fail_count"`
	DistinctUsersFromIP int        `json:"distinct_users_from_ip"`
	Locked              bool       `json:"user_locked"`
	LockExpiresAt       *time.Time `json:"lock_expires_at,omitempty"`
}

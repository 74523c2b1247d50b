package bruteforce

import (
	"fmt"
	"time"

	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/internal/metrics"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Reasons reported by the policy.
const (
	ReasonLocked        = "User temporarily locked"
	ReasonStuffing      = "IP attempting many different users (credential stuffing)"
	ReasonFailedAttempt = "Failed login attempt"
	reasonUserFailsFmt  = "Multiple failed login attempts for user (%d)"
	reasonIPFailsFmt    = "High number of failed attempts from IP (%d)"
)

// PolicyConfig holds the thresholds and the score each one contributes.
type PolicyConfig struct {
	UserThreshold     int
	IPThreshold       int
	StuffingThreshold int

	LockedScore   int
	UserScore     int
	IPScore       int
	StuffingScore int

	// LockThreshold is compared with the raw, unclamped sum.
	LockThreshold int
	LockDuration  time.Duration
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		UserThreshold:     2,
		IPThreshold:       50,
		StuffingThreshold: 20,
		LockedScore:       90,
		UserScore:         80,
		IPScore:           60,
		StuffingScore:     70,
		LockThreshold:     70,
		LockDuration:      15 * time.Minute,
	}
}

// Policy scores failed logins and locks accounts.
//
// The score is additive and not clamped: every signal can fire
// at once for a total of 300 with the defaults.
//
// Callers must call UnlockIfExpired before CheckLock or OnFailure in the same
// request, otherwise an expired lock keeps reporting locked.
type Policy struct {
	tracker *Tracker
	cfg     PolicyConfig
}

func NewPolicy(tracker *Tracker, cfg PolicyConfig) *Policy {
	return &Policy{tracker: tracker, cfg: cfg}
}

func (p *Policy) Tracker() *Tracker { return p.tracker }

// Score computes the brute-force score and reasons for a status snapshot.
func (p *Policy) Score(st models.BruteForceStatus) (int, []string) {
	score := 0
	reasons := make([]string, 0, 4)

	if st.Locked {
		score += p.cfg.LockedScore
		reasons = append(reasons, ReasonLocked)
	}
	if st.UserFailCount >= p.cfg.UserThreshold {
		score += p.cfg.UserScore
		reasons = append(reasons, fmt.Sprintf(reasonUserFailsFmt, st.UserFailCount))
	}
	if st.IPFailCount >= p.cfg.IPThreshold {
		score += p.cfg.IPScore
		reasons = append(reasons, fmt.Sprintf(reasonIPFailsFmt, st.IPFailCount))
	}
	if st.DistinctUsersFromIP >= p.cfg.StuffingThreshold {
		score += p.cfg.StuffingScore
		reasons = append(reasons, ReasonStuffing)
	}
	return score, reasons
}

// OnFailure records a failed attempt and decides whether to lock the user.
// The result has status locked_now when the score reached LockThreshold
// (setting or refreshing the expiry), failed otherwise.
func (p *Policy) OnFailure(userID, ip string) models.RiskAssessment {
	p.tracker.RecordFailure(userID, ip)
	st := p.tracker.Status(userID, ip)
	score, reasons := p.Score(st)
	metrics.BruteForceScore.Observe(float64(score))

	result := models.RiskAssessment{
		UserID:    userID,
		RiskScore: score,
		Reasons:   reasons,
		Geo:       models.GeoLocation{IP: ip},
		Timestamp: p.tracker.now(),
		Status:    models.StatusFailed,
	}
	if len(result.Reasons) == 0 {
		result.Reasons = []string{ReasonFailedAttempt}
	}

	if score >= p.cfg.LockThreshold {
		expiry := p.tracker.Lock(userID, p.cfg.LockDuration)
		result.Status = models.StatusLockedNow
		metrics.AccountsLocked.Inc()
		logging.Warn().
			Str("user_id", userID).
			Str("ip", ip).
			Int("score", score).
			Time("lock_expires_at", expiry).
			Strs("reasons", reasons).
			Msg("account locked")
	}
	return result
}

// CheckLock reports the current lock without side effects.
func (p *Policy) CheckLock(userID string) (bool, time.Time) {
	expiry, locked := p.tracker.LockState(userID)
	return locked, expiry
}

// UnlockIfExpired clears an expired lock.
func (p *Policy) UnlockIfExpired(userID string) bool {
	unlocked := p.tracker.UnlockIfExpired(userID)
	if unlocked {
		logging.Info().Str("user_id", userID).Msg("account lock expired")
	}
	return unlocked
}

// Rejected is the assessment returned for an attempt on a locked account.
func (p *Policy) Rejected(userID, ip string) models.RiskAssessment {
	return models.RiskAssessment{
		UserID:    userID,
		RiskScore: p.cfg.LockedScore,
		Reasons:   []string{ReasonLocked},
		Geo:       models.GeoLocation{IP: ip},
		Timestamp: p.tracker.now(),
		Status:    models.StatusLocked,
	}
}

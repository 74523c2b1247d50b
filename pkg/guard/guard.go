// Package guard runs a login event through the full decision pipeline:
// lock check, failure handling or rule evaluation, optional ensemble
// blending, explanation, persistence and alerting.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/internal/metrics"
	"github.com/gokaycavdar/go-loginguard/pkg/alert"
	"github.com/gokaycavdar/go-loginguard/pkg/bruteforce"
	"github.com/gokaycavdar/go-loginguard/pkg/engine"
	"github.com/gokaycavdar/go-loginguard/pkg/ensemble"
	"github.com/gokaycavdar/go-loginguard/pkg/explain"
	"github.com/gokaycavdar/go-loginguard/pkg/geoip"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
	"github.com/gokaycavdar/go-loginguard/pkg/storage"
)

// DefaultAlertThreshold is the score at which an evaluated login alerts.
const DefaultAlertThreshold = 70

// Request is one login attempt. Features are optional model inputs; when
// absent and the ensemble is enabled they are derived from history.
type Request struct {
	Event    models.LoginEvent
	Features *models.FeatureVector
}

// Outcome is what the pipeline decided for a request.
type Outcome struct {
	Event       models.LoginEvent     `json:"event"`
	Assessment  models.RiskAssessment `json:"evaluation"`
	Explanation string                `json:"explanation"`
}

// Deps are the collaborators of a Service. Resolver, Evaluator, Policy and
// Log are required; Combiner and Notifier are optional.
type Deps struct {
	Resolver  geoip.Resolver
	Evaluator *engine.RuleEvaluator
	Policy    *bruteforce.Policy
	Combiner  *ensemble.Combiner
	Log       storage.EventLog
	Notifier  alert.Notifier

	AlertThreshold int
	Now            func() time.Time
}

type Service struct {
	resolver       geoip.Resolver
	evaluator      *engine.RuleEvaluator
	policy         *bruteforce.Policy
	combiner       *ensemble.Combiner
	log            storage.EventLog
	notifier       alert.Notifier
	alertThreshold int
	now            func() time.Time
}

func New(d Deps) (*Service, error) {
	if d.Resolver == nil || d.Evaluator == nil || d.Policy == nil || d.Log == nil {
		return nil, fmt.Errorf("guard: resolver, evaluator, policy and log are required")
	}
	s := &Service{
		resolver:       d.Resolver,
		evaluator:      d.Evaluator,
		policy:         d.Policy,
		combiner:       d.Combiner,
		log:            d.Log,
		notifier:       d.Notifier,
		alertThreshold: d.AlertThreshold,
		now:            d.Now,
	}
	if s.alertThreshold <= 0 {
		s.alertThreshold = DefaultAlertThreshold
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Process handles one login attempt. The only error is ErrInvalidEvent;
// geo, model, persistence and alert failures are logged and the decision
// is still returned.
func (s *Service) Process(ctx context.Context, req Request) (Outcome, error) {
	event := req.Event
	if event.UserID == "" || event.IP == "" {
		return Outcome{}, fmt.Errorf("%w: user_id and ip are required", models.ErrInvalidEvent)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}

	logger := logging.Ctx(ctx).With().
		Str("user_id", event.UserID).
		Str("ip", event.IP).
		Str("event_id", event.ID).
		Logger()

	geo := s.resolver.Resolve(event.IP)
	event.Geo = &geo

	if err := s.log.SaveEvent(ctx, event); err != nil {
		metrics.PersistenceErrors.WithLabelValues("event").Inc()
		logger.Error().Err(err).Msg("failed to persist login event")
	}

	// Expired locks are cleared before the lock check.
	s.policy.UnlockIfExpired(event.UserID)
	locked, _ := s.policy.CheckLock(event.UserID)

	tracker := s.policy.Tracker()
	failedPrev := tracker.RecentFailures(event.UserID)
	succeeded := event.Success == nil || *event.Success
	defer tracker.RecordAttempt(event.UserID, succeeded)

	var result models.RiskAssessment
	switch {
	case locked:
		result = s.policy.Rejected(event.UserID, event.IP)
	case !succeeded:
		result = s.policy.OnFailure(event.UserID, event.IP)
	default:
		result = s.evaluate(event, geo, req.Features, failedPrev, &logger)
	}
	result.Geo = geo
	result.Timestamp = event.Timestamp

	explanation := explain.Explain(result)
	logger.Debug().Str("explanation", explanation).Msg("login explained")
	logger.Info().
		Int("risk_score", result.RiskScore).
		Str("status", string(result.Status)).
		Strs("reasons", result.Reasons).
		Msg("login processed")
	metrics.LoginsProcessed.WithLabelValues(string(result.Status)).Inc()

	if err := s.log.SaveResult(ctx, result); err != nil {
		metrics.PersistenceErrors.WithLabelValues("result").Inc()
		logger.Error().Err(err).Msg("failed to persist risk assessment")
	}

	s.maybeAlert(ctx, result)

	return Outcome{Event: event, Assessment: result, Explanation: explanation}, nil
}

// evaluate scores a successful login. failedPrev is the number of failures
// among the user's previous attempts, used when features are derived.
func (s *Service) evaluate(event models.LoginEvent, geo models.GeoLocation, features *models.FeatureVector, failedPrev int, logger *zerolog.Logger) models.RiskAssessment {
	result, prev := s.evaluator.EvaluateWithBaseline(event, geo)
	if s.combiner == nil {
		return result
	}

	fv := features
	if fv == nil {
		current := models.LastLoginRecord{
			UserID:    event.UserID,
			Geo:       geo,
			Timestamp: event.Timestamp,
			DeviceID:  event.DeviceID,
			Browser:   event.Browser,
		}
		derived := ensemble.BuildFeatures(current, prev, failedPrev)
		fv = &derived
	}

	view, err := s.combiner.Assess(result.RiskScore, *fv)
	if err != nil {
		logger.Warn().Err(err).Msg("ensemble scoring failed, using rule score only")
		return result
	}
	result.Ensemble = view
	return result
}

// alertScore is the blended score when the ensemble ran, the rule score otherwise.
func alertScore(r models.RiskAssessment) float64 {
	if r.Ensemble != nil {
		return r.Ensemble.CombinedScore
	}
	return float64(r.RiskScore)
}

func (s *Service) shouldAlert(r models.RiskAssessment) bool {
	switch r.Status {
	case models.StatusLockedNow:
		return true
	case models.StatusEvaluated:
		return alertScore(r) >= float64(s.alertThreshold)
	default:
		return false
	}
}

func (s *Service) maybeAlert(ctx context.Context, r models.RiskAssessment) {
	if s.notifier == nil || !s.shouldAlert(r) {
		return
	}
	if err := s.notifier.Notify(ctx, r); err != nil {
		metrics.AlertsSent.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Error().Err(err).Str("user_id", r.UserID).Msg("failed to send alert")
		return
	}
	metrics.AlertsSent.WithLabelValues("sent").Inc()
}

// LockStatus clears an expired lock and reports the current one.
func (s *Service) LockStatus(userID string) (locked bool, expiresAt time.Time) {
	s.policy.UnlockIfExpired(userID)
	return s.policy.CheckLock(userID)
}

func (s *Service) Events(ctx context.Context, limit int) ([]models.LoginEvent, error) {
	return s.log.ListEvents(ctx, limit)
}

func (s *Service) Results(ctx context.Context, limit int) ([]models.RiskAssessment, error) {
	return s.log.ListResults(ctx, limit)
}

// Package engine implements the rule-based login risk evaluator.
package engine

import (
	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/internal/metrics"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
	"github.com/gokaycavdar/go-loginguard/pkg/rules"
	"github.com/gokaycavdar/go-loginguard/pkg/storage"
)

const (
	minScore = 0
	maxScore = 100
)

// RuleEvaluator scores a successful login against the user's previous one.
//
// The evaluator is the only writer of the per-user baseline: every call to
// Evaluate replaces it with the current login, whatever the score. Rules run
// in the order they were added and their reasons keep that order.
//
// Usage:
//
//	ev := engine.New(storage.NewMemoryStore())
//	ev.AddRule(rules.NewVelocityRule(800, 50))
//	result := ev.Evaluate(event, geo)
type RuleEvaluator struct {
	historyStore storage.HistoryStore
	rules        []rules.Rule
}

// New creates an evaluator with no rules.
func New(store storage.HistoryStore) *RuleEvaluator {
	return &RuleEvaluator{
		historyStore: store,
		rules:        make([]rules.Rule, 0),
	}
}

// NewDefault creates an evaluator with the standard rule set.
func NewDefault(store storage.HistoryStore, cfg rules.Config) *RuleEvaluator {
	ev := New(store)
	for _, r := range rules.Default(cfg) {
		ev.AddRule(r)
	}
	return ev
}

func (e *RuleEvaluator) AddRule(r rules.Rule) {
	e.rules = append(e.rules, r)
	logging.Debug().
		Str("rule", r.Name()).
		Str("description", r.Description()).
		Int("position", len(e.rules)).
		Msg("rule registered")
}

// Evaluate scores event. geo must already be resolved and may be
// error-marked; checks that need a location then skip. Evaluate never fails:
// a history store error is logged and treated as a first login.
func (e *RuleEvaluator) Evaluate(event models.LoginEvent, geo models.GeoLocation) models.RiskAssessment {
	result, _ := e.EvaluateWithBaseline(event, geo)
	return result
}

// EvaluateWithBaseline is Evaluate that also returns the baseline the event
// was compared against (nil on a first login), for feature extraction.
func (e *RuleEvaluator) EvaluateWithBaseline(event models.LoginEvent, geo models.GeoLocation) (models.RiskAssessment, *models.LastLoginRecord) {
	current := models.LastLoginRecord{
		UserID:    event.UserID,
		Geo:       geo,
		Timestamp: event.Timestamp,
		DeviceID:  event.DeviceID,
		Browser:   event.Browser,
	}

	last, err := e.historyStore.SwapRecord(current)
	if err != nil {
		logging.Warn().Err(err).Str("user_id", event.UserID).Msg("history lookup failed, evaluating without baseline")
		last = nil
	}

	total := 0
	reasons := make([]string, 0, len(e.rules))
	for _, rule := range e.rules {
		score, reason := rule.Validate(current, last)
		if score <= 0 {
			continue
		}
		total += score
		reasons = append(reasons, reason)
		metrics.RuleTriggered.WithLabelValues(rule.Name()).Inc()
	}

	total = clamp(total)
	if len(reasons) == 0 {
		reasons = []string{models.NoAnomalies}
	}
	metrics.RuleScore.Observe(float64(total))

	return models.RiskAssessment{
		UserID:    event.UserID,
		RiskScore: total,
		Reasons:   reasons,
		Geo:       geo,
		Timestamp: event.Timestamp,
		Status:    models.StatusEvaluated,
	}, last
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

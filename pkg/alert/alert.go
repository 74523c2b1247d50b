// Package alert notifies security staff about high-risk logins and lockouts.
package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Notifier delivers an alert for an assessment.
type Notifier interface {
	Notify(ctx context.Context, r models.RiskAssessment) error
}

// Subject and Body build the alert message.
func Subject(r models.RiskAssessment) string {
	if r.Status == models.StatusLockedNow {
		return fmt.Sprintf("[ALERT] Account Locked for User %s", r.UserID)
	}
	return fmt.Sprintf("[ALERT] High Risk Login for User %s", r.UserID)
}

func Body(r models.RiskAssessment) string {
	var b strings.Builder
	b.WriteString("---> High Risk Login Detected <---\n\n")
	fmt.Fprintf(&b, "User: %s\n", r.UserID)
	fmt.Fprintf(&b, "Score: %d\n", r.RiskScore)
	if r.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", r.Status)
	}
	fmt.Fprintf(&b, "Reasons: %s\n", strings.Join(r.Reasons, ", "))
	fmt.Fprintf(&b, "Location: %s, %s\n", orUnknown(r.Geo.City), orUnknown(r.Geo.Country))
	if r.Geo.IP != "" {
		fmt.Fprintf(&b, "IP: %s\n", r.Geo.IP)
	}
	fmt.Fprintf(&b, "Time: %s\n", r.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// LogNotifier writes alerts to the structured log. It is used when email
// delivery is disabled.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, r models.RiskAssessment) error {
	logging.Warn().
		Str("user_id", r.UserID).
		Int("risk_score", r.RiskScore).
		Str("status", string(r.Status)).
		Strs("reasons", r.Reasons).
		Str("country", r.Geo.Country).
		Msg(Subject(r))
	return nil
}

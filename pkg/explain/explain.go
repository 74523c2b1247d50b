// Package explain renders risk assessments as human-readable text.
package explain

import (
	"fmt"
	"strings"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Explain renders r. A clean assessment gets a one-line safe message; any
// other gets a header and one bullet per reason, in the order the reasons
// were raised. Either form ends with the blended score when the ensemble ran.
func Explain(r models.RiskAssessment) string {
	var b strings.Builder
	if r.IsClean() {
		fmt.Fprintf(&b, "✅ Login is SAFE (score %d)", r.RiskScore)
	} else {
		fmt.Fprintf(&b, "⚠️ Suspicious Login (score %d)\nReasons:", r.RiskScore)
		for _, reason := range r.Reasons {
			b.WriteString("\n - ")
			b.WriteString(reason)
		}
	}
	if r.Ensemble != nil {
		fmt.Fprintf(&b, "\nEnsemble score: %.1f", r.Ensemble.CombinedScore)
	}
	return b.String()
}

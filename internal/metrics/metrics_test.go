package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoginsProcessed_CountsByStatus(t *testing.T) {
	before := testutil.ToFloat64(LoginsProcessed.WithLabelValues("locked_now"))
	LoginsProcessed.WithLabelValues("locked_now").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(LoginsProcessed.WithLabelValues("locked_now")))
}

func TestAccountsLocked_Increments(t *testing.T) {
	before := testutil.ToFloat64(AccountsLocked)
	AccountsLocked.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AccountsLocked))
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// One shared instance: promauto registers on the default registry, and a
// second NewEngagementMetrics in the same test binary would panic.
var m = NewEngagementMetrics()

func TestCounterHelpers(t *testing.T) {
	m.RecordCredit("tenant-alpha", "promo", 50)
	m.RecordCredit("tenant-alpha", "promo", 25)
	m.RecordDebit("tenant-alpha", "quiz_entry", 30)
	m.RecordDebitRejected("tenant-alpha")
	m.RecordAffiliateSignup("tenant-alpha", 100)
	m.RecordXPGranted("tenant-alpha", "badge", 40)

	if got := testutil.ToFloat64(m.LedgerCreditsTotal.WithLabelValues("tenant-alpha", "promo")); got != 2 {
		t.Errorf("credits counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LedgerAmountTotal.WithLabelValues("tenant-alpha", "credit")); got != 75 {
		t.Errorf("credit amount = %v, want 75", got)
	}
	if got := testutil.ToFloat64(m.LedgerAmountTotal.WithLabelValues("tenant-alpha", "debit")); got != 30 {
		t.Errorf("debit amount = %v, want 30", got)
	}
	if got := testutil.ToFloat64(m.LedgerDebitsRejected.WithLabelValues("tenant-alpha")); got != 1 {
		t.Errorf("rejected debits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CommissionPaidTotal.WithLabelValues("tenant-alpha")); got != 100 {
		t.Errorf("commission paid = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.XPGrantedTotal.WithLabelValues("tenant-alpha", "badge")); got != 40 {
		t.Errorf("xp granted = %v, want 40", got)
	}
}

func TestObserveRequest(t *testing.T) {
	m.ObserveRequest("/s/user/progress", 200, 15*time.Millisecond)
	m.ObserveRequest("/s/promo/redeem", 409, 3*time.Millisecond)

	if got := testutil.CollectAndCount(m.RequestDuration, "engagement_request_duration_seconds"); got != 2 {
		t.Errorf("histogram series = %d, want 2 (one per route/status pair)", got)
	}
}

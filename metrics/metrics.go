package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngagementMetrics holds the Prometheus instruments for the engagement flows.
// Construct once in main; promauto registers on the default registry.
type EngagementMetrics struct {
	LedgerCreditsTotal      prometheus.CounterVec
	LedgerDebitsTotal       prometheus.CounterVec
	LedgerDebitsRejected    prometheus.CounterVec
	LedgerAmountTotal       prometheus.CounterVec
	StreakEventsTotal       prometheus.CounterVec
	BadgesAwardedTotal      prometheus.CounterVec
	PromoRedemptionsTotal   prometheus.CounterVec
	AffiliateSignupsTotal   prometheus.CounterVec
	CommissionPaidTotal     prometheus.CounterVec
	ChallengeCompletedTotal prometheus.CounterVec
	XPGrantedTotal          prometheus.CounterVec
	RequestDuration         prometheus.HistogramVec
}

func NewEngagementMetrics() *EngagementMetrics {
	return &EngagementMetrics{
		LedgerCreditsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_credits_total",
				Help: "Number of wallet credit transactions appended",
			},
			[]string{"tenant_id", "reason"},
		),
		LedgerDebitsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_debits_total",
				Help: "Number of wallet debit transactions appended",
			},
			[]string{"tenant_id", "reason"},
		),
		LedgerDebitsRejected: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_debits_rejected_total",
				Help: "Debits rejected for insufficient funds",
			},
			[]string{"tenant_id"},
		),
		LedgerAmountTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_amount_total",
				Help: "Total coins moved through the ledger by direction",
			},
			[]string{"tenant_id", "type"},
		),
		StreakEventsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streak_events_total",
				Help: "Login events by streak outcome (extended, reset, saved, duplicate)",
			},
			[]string{"tenant_id", "outcome"},
		),
		BadgesAwardedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "badges_awarded_total",
				Help: "Badges awarded",
			},
			[]string{"tenant_id", "badge_code"},
		),
		PromoRedemptionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promo_redemptions_total",
				Help: "Promo redemption attempts by result",
			},
			[]string{"tenant_id", "result"},
		),
		AffiliateSignupsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_signups_total",
				Help: "Affiliate-attributed signups recorded",
			},
			[]string{"tenant_id"},
		),
		CommissionPaidTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_commission_paid_total",
				Help: "Total commission coins credited to affiliates",
			},
			[]string{"tenant_id"},
		),
		ChallengeCompletedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenges_completed_total",
				Help: "Flip challenges fully completed",
			},
			[]string{"tenant_id", "challenge_id"},
		),
		XPGrantedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xp_granted_total",
				Help: "XP granted by source (badge, promo, challenge, admin)",
			},
			[]string{"tenant_id", "source"},
		),
		RequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engagement_request_duration_seconds",
				Help:    "Engagement endpoint handling time",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"route", "status"},
		),
	}
}

func (m *EngagementMetrics) RecordCredit(tenantID, reason string, amount int64) {
	m.LedgerCreditsTotal.WithLabelValues(tenantID, reason).Inc()
	m.LedgerAmountTotal.WithLabelValues(tenantID, "credit").Add(float64(amount))
}

func (m *EngagementMetrics) RecordDebit(tenantID, reason string, amount int64) {
	m.LedgerDebitsTotal.WithLabelValues(tenantID, reason).Inc()
	m.LedgerAmountTotal.WithLabelValues(tenantID, "debit").Add(float64(amount))
}

func (m *EngagementMetrics) RecordDebitRejected(tenantID string) {
	m.LedgerDebitsRejected.WithLabelValues(tenantID).Inc()
}

func (m *EngagementMetrics) RecordStreakEvent(tenantID, outcome string) {
	m.StreakEventsTotal.WithLabelValues(tenantID, outcome).Inc()
}

func (m *EngagementMetrics) RecordBadgeAwarded(tenantID, badgeCode string) {
	m.BadgesAwardedTotal.WithLabelValues(tenantID, badgeCode).Inc()
}

func (m *EngagementMetrics) RecordPromoRedemption(tenantID, result string) {
	m.PromoRedemptionsTotal.WithLabelValues(tenantID, result).Inc()
}

func (m *EngagementMetrics) RecordAffiliateSignup(tenantID string, commission int64) {
	m.AffiliateSignupsTotal.WithLabelValues(tenantID).Inc()
	m.CommissionPaidTotal.WithLabelValues(tenantID).Add(float64(commission))
}

func (m *EngagementMetrics) RecordChallengeCompleted(tenantID, challengeID string) {
	m.ChallengeCompletedTotal.WithLabelValues(tenantID, challengeID).Inc()
}

func (m *EngagementMetrics) RecordXPGranted(tenantID, source string, xp int64) {
	m.XPGrantedTotal.WithLabelValues(tenantID, source).Add(float64(xp))
}

// ObserveRequest records one handled request; route is the matched route
// pattern (":id" params, not raw paths) to keep label cardinality bounded.
func (m *EngagementMetrics) ObserveRequest(route string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

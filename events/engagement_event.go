package events

import "time"

type StreakChangedEvent struct {
	AccountID         string `json:"account_id"`
	TenantID          string `json:"tenant_id"`
	NewStreak         int    `json:"new_streak"`
	LongestStreak     int    `json:"longest_streak"`
	FreezeConsumed    bool   `json:"freeze_consumed"`
	MilestoneReached  bool   `json:"milestone_reached"`
	FreezeTokens      int    `json:"freeze_tokens"`
	LoginDay          string `json:"login_day"` // YYYY-MM-DD
}

type BadgeAwardedEvent struct {
	AccountID string `json:"account_id"`
	TenantID  string `json:"tenant_id"`
	BadgeID   string `json:"badge_id"`
	BadgeCode string `json:"badge_code"`
	XPGranted int64  `json:"xp_granted"`
}

type WalletChangedEvent struct {
	AccountID     string    `json:"account_id"`
	TenantID      string    `json:"tenant_id"`
	NewBalance    int64     `json:"new_balance"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type ChallengeCompletedEvent struct {
	AccountID   string `json:"account_id"`
	TenantID    string `json:"tenant_id"`
	ChallengeID string `json:"challenge_id"`
	XPGranted   int64  `json:"xp_granted"`
}

type AffiliateStatusChangedEvent struct {
	AffiliateID string `json:"affiliate_id"`
	TenantID    string `json:"tenant_id"`
	AccountID   string `json:"account_id"`
	NewStatus   string `json:"new_status"`
}

package models

import "time"

// AffiliateStatus: pending transitions once (to approved or rejected), then terminal.
type AffiliateStatus string

const (
	AffiliateStatusPending  AffiliateStatus = "pending"
	AffiliateStatusApproved AffiliateStatus = "approved"
	AffiliateStatusRejected AffiliateStatus = "rejected"
)

// Affiliate is the partner record owned by a platform account.
type Affiliate struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID  string          `gorm:"index;not null" json:"tenant_id"`
	AccountID string          `gorm:"uniqueIndex;not null" json:"account_id"`
	Code      string          `gorm:"uniqueIndex;not null;size:64" json:"code"` // tracking code, slug + suffix
	Status    AffiliateStatus `gorm:"type:varchar(16);default:'pending'" json:"status"`

	// CommissionRate mirrors the currently effective tier rate; the rate used
	// for a given signup is resolved at signup time and fixed on that row.
	CommissionRate float64 `json:"commission_rate" gorm:"default:0"`
	TotalEarned    int64   `json:"total_earned" gorm:"default:0"` // coins, lifetime
	SignupCount    int64   `json:"signup_count" gorm:"default:0"`

	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	Timestamps
}

// AffiliateClick: Converted flips false→true once when a signup is attributed,
// never back.
type AffiliateClick struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	AffiliateID string    `gorm:"index;not null" json:"affiliate_id"`
	TenantID    string    `gorm:"index;not null" json:"tenant_id"`
	Converted   bool      `gorm:"default:false" json:"converted"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// AffiliateSignup: Commission is computed once at creation and never
// recalculated, even if the affiliate later moves to a higher tier.
type AffiliateSignup struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	AffiliateID  string    `gorm:"index;not null" json:"affiliate_id"`
	TenantID     string    `gorm:"index;not null" json:"tenant_id"`
	NewAccountID string    `gorm:"uniqueIndex;not null" json:"new_account_id"`
	Commission   int64     `gorm:"not null" json:"commission"` // coins, fixed at creation
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// CommissionTier: the effective tier for an affiliate is the highest
// MinSignups that is <= its lifetime signup count.
type CommissionTier struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID   string  `gorm:"uniqueIndex:idx_tenant_tier;not null" json:"tenant_id"`
	Name       string  `gorm:"not null" json:"name"`
	MinSignups int64   `gorm:"uniqueIndex:idx_tenant_tier;not null" json:"min_signups"`
	Rate       float64 `gorm:"not null" json:"rate"` // e.g. 0.10 = 10%

	Timestamps
}

package models

import "time"

// PromoRewardType indicates what a promo code pays out
type PromoRewardType string

const (
	PromoRewardCoins       PromoRewardType = "coins"
	PromoRewardXP          PromoRewardType = "xp"
	PromoRewardPremiumDays PromoRewardType = "premium_days"
)

// PromoCode is stored with Code upper-cased; lookups normalize the same way,
// which is how case-insensitive matching works without a functional index.
type PromoCode struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID    string          `gorm:"uniqueIndex:idx_tenant_promo_code;not null" json:"tenant_id"`
	Code        string          `gorm:"uniqueIndex:idx_tenant_promo_code;not null" json:"code"`
	RewardType  PromoRewardType `gorm:"type:varchar(16);not null" json:"reward_type"`
	RewardValue int64           `gorm:"not null" json:"reward_value"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	UsageLimit  int             `json:"usage_limit" gorm:"default:0"` // 0 = unlimited
	TimesUsed   int             `json:"times_used" gorm:"default:0"`
	Active      bool            `gorm:"default:true" json:"active"`

	Timestamps
}

// PromoRedemption is the (code, account) audit row; its unique index rejects
// a second redemption by the same account regardless of remaining global usage.
type PromoRedemption struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	PromoCodeID string    `gorm:"uniqueIndex:idx_promo_account;not null" json:"promo_code_id"`
	AccountID   string    `gorm:"uniqueIndex:idx_promo_account;not null" json:"account_id"`
	TenantID    string    `gorm:"index;not null" json:"tenant_id"`
	RedeemedAt  time.Time `json:"redeemed_at" gorm:"autoCreateTime"`
}

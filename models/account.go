package models

import (
	"time"

	"gorm.io/gorm"
)

// Account tracks engagement state for one platform account (denormalized for performance).
// The row is created at signup (or lazily by the sync worker) and mutated only by the
// engagement services — handlers never write these fields directly.
type Account struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"` // platform account ID
	TenantID string `gorm:"index;not null" json:"tenant_id"`

	// Core progression
	TotalXP int64 `json:"total_xp" gorm:"default:0"`

	// Daily login streak
	CurrentStreak int        `json:"current_streak" gorm:"default:0"`
	LongestStreak int        `json:"longest_streak" gorm:"default:0"`
	FreezeTokens  int        `json:"freeze_tokens" gorm:"default:0"`
	LastLoginDay  *time.Time `json:"last_login_day,omitempty"` // date only, UTC midnight

	Timestamps
}

// ActivityCounter is a per-(account, action tag) counter fed by activity events.
// Badge predicates and challenge tasks read these by tag (e.g. "connection_added").
type ActivityCounter struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string `gorm:"uniqueIndex:idx_account_action;not null" json:"account_id"`
	TenantID  string `gorm:"index;not null" json:"tenant_id"`
	ActionTag string `gorm:"uniqueIndex:idx_account_action;not null" json:"action_tag"`
	Count     int64  `json:"count" gorm:"default:0"`

	Timestamps
}

// LoginRecord is the per-day audit row behind streak idempotency: the unique
// (account_id, login_day) index guarantees one calendar day is processed once
// even under retried event delivery.
type LoginRecord struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID      string    `gorm:"uniqueIndex:idx_account_login_day;not null" json:"account_id"`
	TenantID       string    `gorm:"index;not null" json:"tenant_id"`
	LoginDay       time.Time `gorm:"uniqueIndex:idx_account_login_day;not null" json:"login_day"`
	StreakAchieved int       `json:"streak_achieved"`
	FreezeConsumed bool      `json:"freeze_consumed"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

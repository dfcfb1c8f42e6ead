package models

import "time"

// TriggerKind discriminates the badge trigger union.
type TriggerKind string

const (
	TriggerThreshold TriggerKind = "threshold"  // stat <op> value
	TriggerEquals    TriggerKind = "equals"     // stat == value
	TriggerDateRange TriggerKind = "date_range" // evaluation time within [from, to]
	TriggerAllOf     TriggerKind = "all_of"     // every child trigger holds
)

// Trigger operators for TriggerThreshold
const (
	OpGT  = "gt"
	OpGTE = "gte"
	OpLT  = "lt"
	OpLTE = "lte"
)

// Stat fields resolvable by the badge engine. Any other Field value is looked
// up as an activity counter tag (e.g. "connection_added").
const (
	StatTotalXP       = "total_xp"
	StatLevel         = "level"
	StatCurrentStreak = "current_streak"
	StatLongestStreak = "longest_streak"
	StatBadgeCount    = "badge_count"
)

// BadgeTrigger is a structured predicate evaluated against account state —
// replaces the free-text trigger strings of the legacy system.
type BadgeTrigger struct {
	Kind  TriggerKind    `json:"kind"`
	Field string         `json:"field,omitempty"`
	Op    string         `json:"op,omitempty"`
	Value int64          `json:"value,omitempty"`
	From  *time.Time     `json:"from,omitempty"`
	To    *time.Time     `json:"to,omitempty"`
	All   []BadgeTrigger `json:"all,omitempty"`
}

// BadgeDefinition: static per-tenant config, managed via the admin API.
type BadgeDefinition struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID    string       `gorm:"uniqueIndex:idx_tenant_badge_code;not null" json:"tenant_id"`
	Code        string       `gorm:"uniqueIndex:idx_tenant_badge_code;not null" json:"code"` // e.g. "STREAK_7", "CONNECTOR"
	Name        string       `gorm:"not null" json:"name"`
	Description string       `json:"description"`
	IconURL     string       `gorm:"type:text" json:"icon_url"` // R2 URL
	XPReward    int64        `json:"xp_reward" gorm:"default:0"`
	Trigger     BadgeTrigger `gorm:"serializer:json;type:jsonb" json:"trigger"`
	Active      bool         `gorm:"default:true" json:"active"`
	CreatedAt   time.Time    `json:"created_at" gorm:"autoCreateTime"`
}

// AccountBadge: awarded instance. The unique (account_id, badge_id) index is
// what makes a badge one-shot under concurrent evaluation.
type AccountBadge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string    `gorm:"uniqueIndex:idx_account_badge;not null" json:"account_id"`
	TenantID  string    `gorm:"index;not null" json:"tenant_id"`
	BadgeID   string    `gorm:"uniqueIndex:idx_account_badge;not null" json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at" gorm:"autoCreateTime"`
}

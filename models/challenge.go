package models

import "time"

// ChallengeType: only flip challenges carry task progress; standard challenges
// are informational and have no progress logic.
type ChallengeType string

const (
	ChallengeTypeStandard ChallengeType = "standard"
	ChallengeTypeFlip     ChallengeType = "flip"
)

type Challenge struct {
	ID       string        `gorm:"primaryKey;type:uuid" json:"id"`
	TenantID string        `gorm:"index;not null" json:"tenant_id"`
	Type     ChallengeType `gorm:"type:varchar(16);not null" json:"type"`
	Name     string        `gorm:"not null" json:"name"`
	RewardXP int64         `json:"reward_xp" gorm:"default:0"` // lump reward on full completion
	Active   bool          `gorm:"default:true" json:"active"`

	Tasks []ChallengeTask `gorm:"foreignKey:ChallengeID" json:"tasks,omitempty"`

	Timestamps
}

// ChallengeTask: ordered by Position; progress is matched by ActionTag.
type ChallengeTask struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string `gorm:"index;not null" json:"challenge_id"`
	Position    int    `gorm:"not null" json:"position"`
	ActionTag   string `gorm:"not null" json:"action_tag"`
	Target      int64  `gorm:"not null" json:"target"`
}

// ChallengeTaskProgress: per-account counter, capped at the task target.
type ChallengeTaskProgress struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string `gorm:"uniqueIndex:idx_account_task;not null" json:"account_id"`
	TenantID  string `gorm:"index;not null" json:"tenant_id"`
	TaskID    string `gorm:"uniqueIndex:idx_account_task;not null" json:"task_id"`
	Count     int64  `json:"count" gorm:"default:0"`

	Timestamps
}

// ChallengeCompletion marks the one-time lump reward grant; the unique
// (account_id, challenge_id) index keeps it one-shot.
type ChallengeCompletion struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID   string    `gorm:"uniqueIndex:idx_account_challenge;not null" json:"account_id"`
	TenantID    string    `gorm:"index;not null" json:"tenant_id"`
	ChallengeID string    `gorm:"uniqueIndex:idx_account_challenge;not null" json:"challenge_id"`
	XPGranted   int64     `json:"xp_granted"`
	CompletedAt time.Time `json:"completed_at" gorm:"autoCreateTime"`
}

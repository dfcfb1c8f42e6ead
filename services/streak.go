package services

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"career-engagement-system/events"
	"career-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Streak lengths that grant a freeze token (tunable via STREAK_MILESTONES,
// comma-separated).
var defaultStreakMilestones = []int{7, 14, 30, 60, 100, 180, 365}

func streakMilestones() map[int]bool {
	set := map[int]bool{}
	raw := os.Getenv("STREAK_MILESTONES")
	if raw == "" {
		for _, m := range defaultStreakMilestones {
			set[m] = true
		}
		return set
	}
	for _, part := range strings.Split(raw, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v <= 0 {
			continue
		}
		set[v] = true
	}
	if len(set) == 0 {
		for _, m := range defaultStreakMilestones {
			set[m] = true
		}
	}
	return set
}

// StreakService is the per-account daily-login state machine.
type StreakService struct {
	DB     *gorm.DB
	Events events.Publisher
}

func NewStreakService(db *gorm.DB, pub events.Publisher) *StreakService {
	return &StreakService{DB: db, Events: pub}
}

// StreakResult is the fresh streak state after processing one login event.
type StreakResult struct {
	Streak           int       `json:"streak"`
	LongestStreak    int       `json:"longest_streak"`
	FreezeTokens     int       `json:"freeze_tokens"`
	FreezeConsumed   bool      `json:"freeze_consumed"`
	MilestoneReached bool      `json:"milestone_reached"`
	AlreadyCounted   bool      `json:"already_counted"`
	LoginDay         time.Time `json:"login_day"`
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordLogin processes a "login observed" event for one calendar day.
// Repeated events for the same day are no-ops: the account row lock serializes
// concurrent deliveries and the unique (account, day) login record rejects a
// replay that slips past the LastLoginDay check.
func (s *StreakService) RecordLogin(accountID, tenantID string, day time.Time) (*StreakResult, error) {
	day = truncateDay(day)

	var result StreakResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		acc, err := ensureAccountTx(tx, accountID, tenantID)
		if err != nil {
			return err
		}

		// Second idempotency line behind the LastLoginDay check: a replayed
		// delivery for an already-recorded day is a no-op.
		var dup int64
		err = tx.Model(&models.LoginRecord{}).
			Where("account_id = ? AND login_day = ?", accountID, day).
			Count(&dup).Error
		if err != nil {
			return err
		}
		if dup > 0 {
			result = StreakResult{
				Streak:         acc.CurrentStreak,
				LongestStreak:  acc.LongestStreak,
				FreezeTokens:   acc.FreezeTokens,
				AlreadyCounted: true,
				LoginDay:       day,
			}
			return nil
		}

		if acc.LastLoginDay != nil {
			last := truncateDay(*acc.LastLoginDay)
			gap := int(day.Sub(last).Hours() / 24)
			if gap <= 0 {
				// same day already processed, or a late out-of-order event
				result = StreakResult{
					Streak:         acc.CurrentStreak,
					LongestStreak:  acc.LongestStreak,
					FreezeTokens:   acc.FreezeTokens,
					AlreadyCounted: true,
					LoginDay:       last,
				}
				return nil
			}

			switch {
			case gap == 1:
				acc.CurrentStreak++
			default: // gap > 1: a missed day, spend a freeze token if we have one
				if acc.FreezeTokens > 0 {
					acc.FreezeTokens--
					result.FreezeConsumed = true
				} else {
					acc.CurrentStreak = 1
				}
			}
		} else {
			acc.CurrentStreak = 1
		}

		if acc.CurrentStreak > acc.LongestStreak {
			acc.LongestStreak = acc.CurrentStreak
		}

		// Milestones fire only when the streak grows into them, so a
		// freeze-saved day can never re-grant the same milestone token.
		if !result.FreezeConsumed && streakMilestones()[acc.CurrentStreak] {
			acc.FreezeTokens++
			result.MilestoneReached = true
		}

		record := models.LoginRecord{
			ID:             uuid.NewString(),
			AccountID:      accountID,
			TenantID:       tenantID,
			LoginDay:       day,
			StreakAchieved: acc.CurrentStreak,
			FreezeConsumed: result.FreezeConsumed,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
			return err
		}

		acc.LastLoginDay = &day
		if err := tx.Save(acc).Error; err != nil {
			return err
		}

		result.Streak = acc.CurrentStreak
		result.LongestStreak = acc.LongestStreak
		result.FreezeTokens = acc.FreezeTokens
		result.LoginDay = day
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyCounted {
		if result.MilestoneReached {
			log.Printf("🔥 Streak milestone: %s reached %d days (+1 freeze token)", accountID, result.Streak)
		}
		s.publishStreakChanged(accountID, tenantID, &result)
	}
	return &result, nil
}

func (s *StreakService) publishStreakChanged(accountID, tenantID string, r *StreakResult) {
	if s.Events == nil {
		return
	}
	err := s.Events.Publish(events.TopicStreakChanged, accountID, events.StreakChangedEvent{
		AccountID:        accountID,
		TenantID:         tenantID,
		NewStreak:        r.Streak,
		LongestStreak:    r.LongestStreak,
		FreezeConsumed:   r.FreezeConsumed,
		MilestoneReached: r.MilestoneReached,
		FreezeTokens:     r.FreezeTokens,
		LoginDay:         r.LoginDay.Format("2006-01-02"),
	})
	if err != nil {
		log.Printf("⚠️  Failed to publish streak-changed for %s: %v", accountID, err)
	}
}

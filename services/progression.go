package services

import (
	"log"

	"career-engagement-system/events"
	"career-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressionService owns cumulative XP and the activity counters. Level is
// never stored — reads go through ComputeLevel.
type ProgressionService struct {
	DB     *gorm.DB
	Events events.Publisher
	Badges *BadgeService
}

func NewProgressionService(db *gorm.DB, pub events.Publisher, badges *BadgeService) *ProgressionService {
	return &ProgressionService{DB: db, Events: pub, Badges: badges}
}

// EnsureAccount makes sure an engagement row exists (idempotent).
func (s *ProgressionService) EnsureAccount(accountID, tenantID string) (*models.Account, error) {
	var acc *models.Account
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		acc, err = ensureAccountTx(tx, accountID, tenantID)
		return err
	})
	return acc, err
}

// AwardXP adds XP and runs one badge evaluation pass — returns fresh state so
// callers never need to re-fetch after mutating.
func (s *ProgressionService) AwardXP(accountID, tenantID string, xp int64, reason string) (*models.Account, []AwardedBadge, error) {
	var acc *models.Account
	var awarded []AwardedBadge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		acc, awarded, err = s.AwardXPTx(tx, accountID, tenantID, xp, reason)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.Badges.publishAwards(accountID, tenantID, awarded)
	return acc, awarded, nil
}

// AwardXPTx is AwardXP inside a caller-owned transaction (promo and challenge
// rewards commit atomically with their bookkeeping). The caller publishes
// badge events after commit.
func (s *ProgressionService) AwardXPTx(tx *gorm.DB, accountID, tenantID string, xp int64, reason string) (*models.Account, []AwardedBadge, error) {
	acc, err := ensureAccountTx(tx, accountID, tenantID)
	if err != nil {
		return nil, nil, err
	}

	acc.TotalXP += xp

	awarded, err := s.Badges.evaluateTx(tx, acc)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Save(acc).Error; err != nil {
		return nil, nil, err
	}

	info := ComputeLevel(acc.TotalXP, XPPerLevel())
	log.Printf("🎮 XP Awarded: %s → XP=%d, Lvl=%d (reason: %s)", accountID, acc.TotalXP, info.Level, reason)
	return acc, awarded, nil
}

// RecordActivity bumps the per-(account, tag) counter and re-evaluates badges,
// whose predicates may reference the tag.
func (s *ProgressionService) RecordActivity(accountID, tenantID, actionTag string, delta int64) ([]AwardedBadge, error) {
	if delta <= 0 {
		delta = 1
	}

	var awarded []AwardedBadge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		acc, err := ensureAccountTx(tx, accountID, tenantID)
		if err != nil {
			return err
		}

		counter := models.ActivityCounter{
			ID:        uuid.NewString(),
			AccountID: accountID,
			TenantID:  tenantID,
			ActionTag: actionTag,
			Count:     delta,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "action_tag"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + ?", delta)}),
		}).Create(&counter).Error
		if err != nil {
			return err
		}

		awarded, err = s.Badges.evaluateTx(tx, acc)
		if err != nil {
			return err
		}
		return tx.Save(acc).Error
	})
	if err != nil {
		return nil, err
	}
	s.Badges.publishAwards(accountID, tenantID, awarded)
	return awarded, nil
}

// GetProgress returns the account's streak and XP state with the level
// breakdown computed on the fly.
func (s *ProgressionService) GetProgress(accountID, tenantID string) (*models.Account, LevelInfo, error) {
	acc, err := s.EnsureAccount(accountID, tenantID)
	if err != nil {
		return nil, LevelInfo{}, err
	}
	return acc, ComputeLevel(acc.TotalXP, XPPerLevel()), nil
}

package services

import (
	"log"
	"time"

	"career-engagement-system/events"
	"career-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BadgeService evaluates trigger predicates and performs one-shot awards.
type BadgeService struct {
	DB     *gorm.DB
	Events events.Publisher
}

func NewBadgeService(db *gorm.DB, pub events.Publisher) *BadgeService {
	return &BadgeService{DB: db, Events: pub}
}

// AwardedBadge is returned for each badge granted during an evaluation pass.
type AwardedBadge struct {
	BadgeID   string `json:"badge_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	XPGranted int64  `json:"xp_granted"`
}

// Evaluate checks every active badge definition the account has not earned yet
// and awards the ones whose trigger holds. Safe to call redundantly: the
// account row lock plus the unique (account, badge) index make each award
// happen at most once ever.
func (s *BadgeService) Evaluate(accountID, tenantID string) ([]AwardedBadge, error) {
	var awarded []AwardedBadge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		acc, err := ensureAccountTx(tx, accountID, tenantID)
		if err != nil {
			return err
		}
		awarded, err = s.evaluateTx(tx, acc)
		if err != nil {
			return err
		}
		return tx.Save(acc).Error
	})
	if err != nil {
		return nil, err
	}
	s.publishAwards(accountID, tenantID, awarded)
	return awarded, nil
}

// evaluateTx runs one award pass inside a caller-owned transaction holding the
// account row lock. Badge XP rewards are added to acc.TotalXP in place; the
// caller saves the account. Single pass — XP granted here does not recursively
// re-trigger evaluation within the same call.
func (s *BadgeService) evaluateTx(tx *gorm.DB, acc *models.Account) ([]AwardedBadge, error) {
	var defs []models.BadgeDefinition
	if err := tx.Where("tenant_id = ? AND active = ?", acc.TenantID, true).Find(&defs).Error; err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}

	earned := map[string]bool{}
	var earnedRows []models.AccountBadge
	if err := tx.Where("account_id = ?", acc.ID).Find(&earnedRows).Error; err != nil {
		return nil, err
	}
	for _, row := range earnedRows {
		earned[row.BadgeID] = true
	}

	counters, err := loadCountersTx(tx, acc.ID)
	if err != nil {
		return nil, err
	}

	// Predicates see the account as it stood when the pass began: XP granted
	// by one badge never satisfies another within the same pass.
	snapshot := *acc

	var awarded []AwardedBadge
	now := time.Now().UTC()
	for _, def := range defs {
		if earned[def.ID] {
			continue
		}
		if !evalTrigger(def.Trigger, &snapshot, counters, int64(len(earnedRows)+len(awarded)), now) {
			continue
		}

		grant := models.AccountBadge{
			ID:        uuid.NewString(),
			AccountID: acc.ID,
			TenantID:  acc.TenantID,
			BadgeID:   def.ID,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grant)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race to a concurrent evaluation — already awarded
			continue
		}

		acc.TotalXP += def.XPReward
		awarded = append(awarded, AwardedBadge{
			BadgeID:   def.ID,
			Code:      def.Code,
			Name:      def.Name,
			XPGranted: def.XPReward,
		})
		log.Printf("🎖️ Badge awarded: %s → %s (+%d XP)", def.Code, acc.ID, def.XPReward)
	}
	return awarded, nil
}

// EarnedBadges lists the account's badges with their definitions.
func (s *BadgeService) EarnedBadges(accountID string) ([]models.AccountBadge, map[string]models.BadgeDefinition, error) {
	var rows []models.AccountBadge
	if err := s.DB.Where("account_id = ?", accountID).Order("awarded_at DESC").Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.BadgeID)
	}
	defs := map[string]models.BadgeDefinition{}
	if len(ids) > 0 {
		var defRows []models.BadgeDefinition
		if err := s.DB.Where("id IN ?", ids).Find(&defRows).Error; err != nil {
			return nil, nil, err
		}
		for _, d := range defRows {
			defs[d.ID] = d
		}
	}
	return rows, defs, nil
}

func (s *BadgeService) publishAwards(accountID, tenantID string, awarded []AwardedBadge) {
	if s.Events == nil {
		return
	}
	for _, b := range awarded {
		err := s.Events.Publish(events.TopicBadgeAwarded, accountID, events.BadgeAwardedEvent{
			AccountID: accountID,
			TenantID:  tenantID,
			BadgeID:   b.BadgeID,
			BadgeCode: b.Code,
			XPGranted: b.XPGranted,
		})
		if err != nil {
			log.Printf("⚠️  Failed to publish badge-awarded %s for %s: %v", b.Code, accountID, err)
		}
	}
}

func loadCountersTx(tx *gorm.DB, accountID string) (map[string]int64, error) {
	var rows []models.ActivityCounter
	if err := tx.Where("account_id = ?", accountID).Find(&rows).Error; err != nil {
		return nil, err
	}
	counters := make(map[string]int64, len(rows))
	for _, row := range rows {
		counters[row.ActionTag] = row.Count
	}
	return counters, nil
}

// evalTrigger interprets the structured predicate union against account state.
func evalTrigger(t models.BadgeTrigger, acc *models.Account, counters map[string]int64, badgeCount int64, now time.Time) bool {
	switch t.Kind {
	case models.TriggerThreshold:
		return compare(resolveStat(t.Field, acc, counters, badgeCount), t.Op, t.Value)
	case models.TriggerEquals:
		return resolveStat(t.Field, acc, counters, badgeCount) == t.Value
	case models.TriggerDateRange:
		if t.From != nil && now.Before(*t.From) {
			return false
		}
		if t.To != nil && now.After(*t.To) {
			return false
		}
		return true
	case models.TriggerAllOf:
		if len(t.All) == 0 {
			return false
		}
		for _, child := range t.All {
			if !evalTrigger(child, acc, counters, badgeCount, now) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func resolveStat(field string, acc *models.Account, counters map[string]int64, badgeCount int64) int64 {
	switch field {
	case models.StatTotalXP:
		return acc.TotalXP
	case models.StatLevel:
		return int64(ComputeLevel(acc.TotalXP, XPPerLevel()).Level)
	case models.StatCurrentStreak:
		return int64(acc.CurrentStreak)
	case models.StatLongestStreak:
		return int64(acc.LongestStreak)
	case models.StatBadgeCount:
		return badgeCount
	default:
		return counters[field]
	}
}

func compare(v int64, op string, target int64) bool {
	switch op {
	case models.OpGT:
		return v > target
	case models.OpGTE:
		return v >= target
	case models.OpLT:
		return v < target
	case models.OpLTE:
		return v <= target
	default:
		return false
	}
}

package services

import (
	"log"
	"strings"
	"time"

	"career-engagement-system/events"
	"career-engagement-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PromoService validates and atomically consumes promo code usage.
type PromoService struct {
	DB           *gorm.DB
	Events       events.Publisher
	Ledger       *LedgerService
	Progression  *ProgressionService
	Entitlements EntitlementGranter
}

func NewPromoService(db *gorm.DB, pub events.Publisher, ledger *LedgerService, progression *ProgressionService, entitlements EntitlementGranter) *PromoService {
	return &PromoService{
		DB:           db,
		Events:       pub,
		Ledger:       ledger,
		Progression:  progression,
		Entitlements: entitlements,
	}
}

// RedeemResult reports what a successful redemption paid out.
type RedeemResult struct {
	Code          string                 `json:"code"`
	RewardType    models.PromoRewardType `json:"reward_type"`
	RewardValue   int64                  `json:"reward_value"`
	NewBalance    *int64                 `json:"new_balance,omitempty"`
	AwardedBadges []AwardedBadge         `json:"awarded_badges,omitempty"`
}

// NormalizePromoCode upper-cases and trims — codes match case-insensitively.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem runs the full validation chain in order (exists & active → expiry →
// usage limit → per-account duplicate) and applies the reward in the same
// transaction that consumes the usage allowance. The code row lock makes the
// limit check and TimesUsed increment one atomic step across concurrent
// redeemers.
func (s *PromoService) Redeem(accountID, tenantID, code string) (*RedeemResult, error) {
	normalized := NormalizePromoCode(code)

	var result RedeemResult
	var walletTxn *models.LedgerTransaction
	var newBalance int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var promo models.PromoCode
		err := lockForUpdate(tx).
			Where("tenant_id = ? AND code = ?", tenantID, normalized).
			First(&promo).Error
		if err == gorm.ErrRecordNotFound {
			return ErrPromoNotFound
		}
		if err != nil {
			return err
		}

		if !promo.Active {
			return ErrPromoInactive
		}
		if promo.ExpiresAt != nil && time.Now().After(*promo.ExpiresAt) {
			return ErrPromoExpired
		}
		if promo.UsageLimit > 0 && promo.TimesUsed >= promo.UsageLimit {
			return ErrPromoUsageLimitReached
		}

		redemption := models.PromoRedemption{
			ID:          uuid.NewString(),
			PromoCodeID: promo.ID,
			AccountID:   accountID,
			TenantID:    tenantID,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&redemption)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPromoAlreadyRedeemed
		}

		promo.TimesUsed++
		if err := tx.Save(&promo).Error; err != nil {
			return err
		}

		result = RedeemResult{
			Code:        promo.Code,
			RewardType:  promo.RewardType,
			RewardValue: promo.RewardValue,
		}

		switch promo.RewardType {
		case models.PromoRewardCoins:
			walletTxn, newBalance, err = s.Ledger.CreditTx(tx, accountID, tenantID, promo.RewardValue, "promo:"+promo.Code)
			if err != nil {
				return err
			}
			result.NewBalance = &newBalance
		case models.PromoRewardXP:
			_, awarded, err := s.Progression.AwardXPTx(tx, accountID, tenantID, promo.RewardValue, "promo:"+promo.Code)
			if err != nil {
				return err
			}
			result.AwardedBadges = awarded
		case models.PromoRewardPremiumDays:
			// external grant inside the transaction: if it fails, the
			// redemption rolls back — no partial application
			if err := s.Entitlements.GrantPremiumDays(accountID, int(promo.RewardValue)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎟️ Promo redeemed: %s by %s (%s %d)", result.Code, accountID, result.RewardType, result.RewardValue)
	if walletTxn != nil {
		s.Ledger.publishWalletChanged(walletTxn, newBalance)
	}
	if len(result.AwardedBadges) > 0 {
		s.Progression.Badges.publishAwards(accountID, tenantID, result.AwardedBadges)
	}
	return &result, nil
}

// DeactivateExpired flips active=false on codes past their expiry. Redemption
// re-checks expiry inline regardless; this sweep just keeps listings tidy.
func (s *PromoService) DeactivateExpired() (int64, error) {
	res := s.DB.Model(&models.PromoCode{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, time.Now()).
		Update("active", false)
	return res.RowsAffected, res.Error
}

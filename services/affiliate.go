package services

import (
	"log"
	"math"
	"os"
	"strconv"

	"career-engagement-system/events"
	"career-engagement-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultCommissionRate applies when a tenant has no commission tiers configured.
const DefaultCommissionRate = 0.10

// DefaultCommissionBaseValue is the per-signup base in coins
// (tunable via COMMISSION_BASE_VALUE).
const DefaultCommissionBaseValue = 1000

func commissionBaseValue() int64 {
	raw := os.Getenv("COMMISSION_BASE_VALUE")
	if raw == "" {
		return DefaultCommissionBaseValue
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		log.Printf("⚠️  Invalid COMMISSION_BASE_VALUE=%q, using default %d", raw, DefaultCommissionBaseValue)
		return DefaultCommissionBaseValue
	}
	return v
}

// AffiliateService tracks click→signup conversion and pays tiered commissions.
type AffiliateService struct {
	DB     *gorm.DB
	Events events.Publisher
	Ledger *LedgerService
}

func NewAffiliateService(db *gorm.DB, pub events.Publisher, ledger *LedgerService) *AffiliateService {
	return &AffiliateService{DB: db, Events: pub, Ledger: ledger}
}

// CreateAffiliate registers an account as a pending affiliate (idempotent —
// an account has at most one affiliate record).
func (s *AffiliateService) CreateAffiliate(accountID, tenantID, displayName string) (*models.Affiliate, error) {
	var existing models.Affiliate
	err := s.DB.Where("account_id = ?", accountID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	aff := models.Affiliate{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		AccountID: accountID,
		Code:      slug.Make(displayName) + "-" + uuid.NewString()[:8],
		Status:    models.AffiliateStatusPending,
	}
	if err := s.DB.Create(&aff).Error; err != nil {
		return nil, err
	}
	log.Printf("🤝 Affiliate created: %s (code %s, pending)", accountID, aff.Code)
	return &aff, nil
}

// ResolveByCode finds an affiliate by its tracking code.
func (s *AffiliateService) ResolveByCode(tenantID, code string) (*models.Affiliate, error) {
	var aff models.Affiliate
	err := s.DB.Where("tenant_id = ? AND code = ?", tenantID, code).First(&aff).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrAffiliateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &aff, nil
}

// SetStatus moves a pending affiliate to approved or rejected. Both targets
// are terminal; the status-changed event therefore fires at most once.
func (s *AffiliateService) SetStatus(affiliateID string, status models.AffiliateStatus) (*models.Affiliate, error) {
	if status != models.AffiliateStatusApproved && status != models.AffiliateStatusRejected {
		return nil, ErrAffiliateStatusFinal
	}

	var aff models.Affiliate
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := lockForUpdate(tx).Where("id = ?", affiliateID).First(&aff).Error
		if err == gorm.ErrRecordNotFound {
			return ErrAffiliateNotFound
		}
		if err != nil {
			return err
		}
		if aff.Status != models.AffiliateStatusPending {
			return ErrAffiliateStatusFinal
		}

		aff.Status = status
		if status == models.AffiliateStatusApproved {
			now := tx.NowFunc()
			aff.ApprovedAt = &now
			rate, err := resolveTierRateTx(tx, aff.TenantID, aff.SignupCount, aff.CommissionRate)
			if err != nil {
				return err
			}
			aff.CommissionRate = rate
		}
		return tx.Save(&aff).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🤝 Affiliate %s → %s", aff.ID, aff.Status)
	if s.Events != nil {
		err := s.Events.Publish(events.TopicAffiliateStatusChanged, aff.ID, events.AffiliateStatusChangedEvent{
			AffiliateID: aff.ID,
			TenantID:    aff.TenantID,
			AccountID:   aff.AccountID,
			NewStatus:   string(aff.Status),
		})
		if err != nil {
			log.Printf("⚠️  Failed to publish affiliate-status-changed for %s: %v", aff.ID, err)
		}
	}
	return &aff, nil
}

// RecordClick appends a click audit row for the affiliate.
func (s *AffiliateService) RecordClick(affiliateID, tenantID string) (*models.AffiliateClick, error) {
	click := models.AffiliateClick{
		ID:          uuid.NewString(),
		AffiliateID: affiliateID,
		TenantID:    tenantID,
	}
	if err := s.DB.Create(&click).Error; err != nil {
		return nil, err
	}
	return &click, nil
}

// RecordSignup records an attributed signup for an approved affiliate: the
// commission tier is resolved from the lifetime signup count including this
// one, the amount is fixed on the signup row forever, and the affiliate's
// wallet is credited in the same transaction.
func (s *AffiliateService) RecordSignup(affiliateID, newAccountID string) (*models.AffiliateSignup, error) {
	var signup *models.AffiliateSignup
	var walletTxn *models.LedgerTransaction
	var newBalance int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var aff models.Affiliate
		err := lockForUpdate(tx).Where("id = ?", affiliateID).First(&aff).Error
		if err == gorm.ErrRecordNotFound {
			return ErrAffiliateNotFound
		}
		if err != nil {
			return err
		}
		if aff.Status != models.AffiliateStatusApproved {
			return ErrAffiliateNotApproved
		}

		// A replayed signup event for the same new account is a no-op.
		var existing models.AffiliateSignup
		err = tx.Where("new_account_id = ?", newAccountID).First(&existing).Error
		if err == nil {
			signup = &existing
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		count := aff.SignupCount + 1
		rate, err := resolveTierRateTx(tx, aff.TenantID, count, aff.CommissionRate)
		if err != nil {
			return err
		}
		commission := int64(math.Round(float64(commissionBaseValue()) * rate))

		signup = &models.AffiliateSignup{
			ID:           uuid.NewString(),
			AffiliateID:  aff.ID,
			TenantID:     aff.TenantID,
			NewAccountID: newAccountID,
			Commission:   commission,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(signup)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("new_account_id = ?", newAccountID).First(signup).Error
		}

		aff.SignupCount = count
		aff.CommissionRate = rate
		aff.TotalEarned += commission
		if err := tx.Save(&aff).Error; err != nil {
			return err
		}

		// Attribute the oldest unconverted click, if any (false→true once).
		var click models.AffiliateClick
		err = lockForUpdate(tx).
			Where("affiliate_id = ? AND converted = ?", aff.ID, false).
			Order("created_at ASC").
			First(&click).Error
		if err == nil {
			click.Converted = true
			if err := tx.Save(&click).Error; err != nil {
				return err
			}
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		walletTxn, newBalance, err = s.Ledger.CreditTx(tx, aff.AccountID, aff.TenantID, commission, "affiliate_commission")
		return err
	})
	if err != nil {
		return nil, err
	}

	if walletTxn != nil {
		log.Printf("💸 Affiliate commission: %d coins → affiliate %s (signup %s)", signup.Commission, affiliateID, newAccountID)
		s.Ledger.publishWalletChanged(walletTxn, newBalance)
	}
	return signup, nil
}

// resolveTierRateTx returns the rate of the highest tier whose milestone is
// within the lifetime signup count.
func resolveTierRateTx(tx *gorm.DB, tenantID string, signupCount int64, fallback float64) (float64, error) {
	var tier models.CommissionTier
	err := tx.Where("tenant_id = ? AND min_signups <= ?", tenantID, signupCount).
		Order("min_signups DESC").
		First(&tier).Error
	if err == gorm.ErrRecordNotFound {
		if fallback > 0 {
			return fallback, nil
		}
		return DefaultCommissionRate, nil
	}
	if err != nil {
		return 0, err
	}
	return tier.Rate, nil
}

package services

import (
	"errors"
	"testing"
	"time"

	"career-engagement-system/models"

	"github.com/google/uuid"
)

func createPromo(t *testing.T, e *testEngine, code string, rewardType models.PromoRewardType, value int64, mutate func(*models.PromoCode)) models.PromoCode {
	t.Helper()
	promo := models.PromoCode{
		ID:          uuid.NewString(),
		TenantID:    testTenant,
		Code:        NormalizePromoCode(code),
		RewardType:  rewardType,
		RewardValue: value,
		Active:      true,
	}
	if mutate != nil {
		mutate(&promo)
	}
	if err := e.db.Create(&promo).Error; err != nil {
		t.Fatalf("failed to create promo %s: %v", code, err)
	}
	return promo
}

func TestRedeemCoinsPromo(t *testing.T) {
	e := newTestEngine(t)
	createPromo(t, e, "WELCOME50", models.PromoRewardCoins, 50, func(p *models.PromoCode) {
		p.UsageLimit = 100
		p.TimesUsed = 25
	})

	result, err := e.promos.Redeem(testAccount, testTenant, "WELCOME50")
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if result.RewardType != models.PromoRewardCoins || result.RewardValue != 50 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.NewBalance == nil || *result.NewBalance != 50 {
		t.Errorf("NewBalance = %v, want 50", result.NewBalance)
	}

	var promo models.PromoCode
	e.db.First(&promo, "code = ?", "WELCOME50")
	if promo.TimesUsed != 26 {
		t.Errorf("TimesUsed = %d, want 26", promo.TimesUsed)
	}

	balance, _ := e.ledger.Balance(testAccount)
	if balance != 50 {
		t.Errorf("balance = %d, want 50", balance)
	}
}

func TestRedeemIsCaseInsensitive(t *testing.T) {
	e := newTestEngine(t)
	createPromo(t, e, "WELCOME50", models.PromoRewardCoins, 50, nil)

	if _, err := e.promos.Redeem(testAccount, testTenant, "  welcome50 "); err != nil {
		t.Fatalf("Redeem with lowercase code failed: %v", err)
	}
}

func TestRedeemTwiceSameAccountRejected(t *testing.T) {
	e := newTestEngine(t)
	createPromo(t, e, "ONCE", models.PromoRewardCoins, 10, nil)

	if _, err := e.promos.Redeem(testAccount, testTenant, "ONCE"); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}
	_, err := e.promos.Redeem(testAccount, testTenant, "ONCE")
	if !errors.Is(err, ErrPromoAlreadyRedeemed) {
		t.Fatalf("second redeem error = %v, want ErrPromoAlreadyRedeemed", err)
	}

	// The rejection must not consume usage or pay again.
	var promo models.PromoCode
	e.db.First(&promo, "code = ?", "ONCE")
	if promo.TimesUsed != 1 {
		t.Errorf("TimesUsed = %d, want 1", promo.TimesUsed)
	}
	balance, _ := e.ledger.Balance(testAccount)
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}

	// A different account can still redeem.
	other := "acc-00000000-0000-0000-0000-000000000002"
	if _, err := e.promos.Redeem(other, testTenant, "ONCE"); err != nil {
		t.Errorf("other account redeem failed: %v", err)
	}
}

func TestRedeemValidationChain(t *testing.T) {
	yesterday := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name    string
		mutate  func(*models.PromoCode)
		code    string
		wantErr error
	}{
		{"unknown code", nil, "NO_SUCH_CODE", ErrPromoNotFound},
		{"inactive code", func(p *models.PromoCode) { p.Active = false }, "TESTCODE", ErrPromoInactive},
		{"expired code", func(p *models.PromoCode) { p.ExpiresAt = &yesterday }, "TESTCODE", ErrPromoExpired},
		{"usage limit reached", func(p *models.PromoCode) { p.UsageLimit = 5; p.TimesUsed = 5 }, "TESTCODE", ErrPromoUsageLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			createPromo(t, e, "TESTCODE", models.PromoRewardCoins, 10, tt.mutate)

			_, err := e.promos.Redeem(testAccount, testTenant, tt.code)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Redeem error = %v, want %v", err, tt.wantErr)
			}
			balance, _ := e.ledger.Balance(testAccount)
			if balance != 0 {
				t.Errorf("rejected redeem still paid out: balance = %d", balance)
			}
		})
	}
}

func TestRedeemExpiredEvenWithUsageLeft(t *testing.T) {
	e := newTestEngine(t)
	yesterday := time.Now().Add(-24 * time.Hour)
	createPromo(t, e, "LAPSED", models.PromoRewardCoins, 10, func(p *models.PromoCode) {
		p.UsageLimit = 100
		p.TimesUsed = 1
		p.ExpiresAt = &yesterday
	})

	_, err := e.promos.Redeem(testAccount, testTenant, "LAPSED")
	if !errors.Is(err, ErrPromoExpired) {
		t.Errorf("Redeem error = %v, want ErrPromoExpired", err)
	}
}

func TestRedeemXPPromo(t *testing.T) {
	e := newTestEngine(t)
	createPromo(t, e, "BOOST", models.PromoRewardXP, 120, nil)

	result, err := e.promos.Redeem(testAccount, testTenant, "BOOST")
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if result.NewBalance != nil {
		t.Error("XP promo reported a wallet balance")
	}

	var acc models.Account
	e.db.First(&acc, "id = ?", testAccount)
	if acc.TotalXP != 120 {
		t.Errorf("TotalXP = %d, want 120", acc.TotalXP)
	}
	balance, _ := e.ledger.Balance(testAccount)
	if balance != 0 {
		t.Errorf("XP promo touched the wallet: balance = %d", balance)
	}
}

func TestRedeemPremiumDaysPromo(t *testing.T) {
	e := newTestEngine(t)
	createPromo(t, e, "PREMIUM7", models.PromoRewardPremiumDays, 7, nil)

	if _, err := e.promos.Redeem(testAccount, testTenant, "PREMIUM7"); err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if len(e.granter.calls) != 1 || e.granter.calls[0] != testAccount+":7" {
		t.Errorf("granter calls = %v, want one grant of 7 days", e.granter.calls)
	}
}

func TestRedeemPremiumDaysRollsBackOnGrantFailure(t *testing.T) {
	e := newTestEngine(t)
	createPromo(t, e, "PREMIUM7", models.PromoRewardPremiumDays, 7, nil)
	e.granter.fail = errors.New("entitlement service unavailable")

	if _, err := e.promos.Redeem(testAccount, testTenant, "PREMIUM7"); err == nil {
		t.Fatal("Redeem succeeded despite grant failure")
	}

	// Nothing may survive the rollback — the account can retry later.
	var redemptions int64
	e.db.Model(&models.PromoRedemption{}).Where("account_id = ?", testAccount).Count(&redemptions)
	if redemptions != 0 {
		t.Errorf("redemption rows = %d, want 0", redemptions)
	}
	var promo models.PromoCode
	e.db.First(&promo, "code = ?", "PREMIUM7")
	if promo.TimesUsed != 0 {
		t.Errorf("TimesUsed = %d, want 0", promo.TimesUsed)
	}

	e.granter.fail = nil
	if _, err := e.promos.Redeem(testAccount, testTenant, "PREMIUM7"); err != nil {
		t.Errorf("retry after recovery failed: %v", err)
	}
}

func TestDeactivateExpired(t *testing.T) {
	e := newTestEngine(t)
	yesterday := time.Now().Add(-24 * time.Hour)
	tomorrow := time.Now().Add(24 * time.Hour)
	createPromo(t, e, "OLD", models.PromoRewardCoins, 10, func(p *models.PromoCode) { p.ExpiresAt = &yesterday })
	createPromo(t, e, "FRESH", models.PromoRewardCoins, 10, func(p *models.PromoCode) { p.ExpiresAt = &tomorrow })
	createPromo(t, e, "FOREVER", models.PromoRewardCoins, 10, nil)

	n, err := e.promos.DeactivateExpired()
	if err != nil {
		t.Fatalf("DeactivateExpired failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deactivated = %d, want 1", n)
	}

	// Fresh struct per lookup: a reused one would carry the previous row's
	// primary key into the next First call's conditions.
	var old models.PromoCode
	if err := e.db.First(&old, "code = ?", "OLD").Error; err != nil {
		t.Fatalf("loading OLD failed: %v", err)
	}
	if old.Active {
		t.Error("expired promo still active")
	}
	var fresh models.PromoCode
	if err := e.db.First(&fresh, "code = ?", "FRESH").Error; err != nil {
		t.Fatalf("loading FRESH failed: %v", err)
	}
	if !fresh.Active {
		t.Error("unexpired promo deactivated")
	}
}

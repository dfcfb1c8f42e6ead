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

// LedgerService owns the append-only wallet log. A balance is never stored:
// it is always SUM(amount) over the account's transactions, so a crash can at
// worst omit a row, never desynchronize balance from history.
type LedgerService struct {
	DB     *gorm.DB
	Events events.Publisher
}

func NewLedgerService(db *gorm.DB, pub events.Publisher) *LedgerService {
	return &LedgerService{DB: db, Events: pub}
}

// lockForUpdate serializes check-then-mutate sequences on the owning row.
// sqlite (tests) has no FOR UPDATE; its single writer serializes anyway.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// ensureAccountTx fetches the engagement row for accountID under a row lock,
// creating it with zero-valued counters on first touch (signup shape).
func ensureAccountTx(tx *gorm.DB, accountID, tenantID string) (*models.Account, error) {
	var acc models.Account
	err := lockForUpdate(tx).Where("id = ?", accountID).First(&acc).Error
	if err == gorm.ErrRecordNotFound {
		acc = models.Account{
			ID:       accountID,
			TenantID: tenantID,
		}
		if err := tx.Create(&acc).Error; err != nil {
			return nil, err
		}
		return &acc, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func balanceTx(tx *gorm.DB, accountID string) (int64, error) {
	var balance int64
	err := tx.Model(&models.LedgerTransaction{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error
	return balance, err
}

// Credit appends a positive entry and returns it.
func (s *LedgerService) Credit(accountID, tenantID string, amount int64, reason string) (*models.LedgerTransaction, error) {
	var txn *models.LedgerTransaction
	var newBalance int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, newBalance, err = s.CreditTx(tx, accountID, tenantID, amount, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publishWalletChanged(txn, newBalance)
	return txn, nil
}

// CreditTx is Credit inside a caller-owned transaction; promo, affiliate and
// admin flows use it so a reward credit commits or rolls back with the rest of
// the operation. The caller is responsible for publishing the wallet event
// after its transaction commits.
func (s *LedgerService) CreditTx(tx *gorm.DB, accountID, tenantID string, amount int64, reason string) (*models.LedgerTransaction, int64, error) {
	if amount <= 0 {
		return nil, 0, ErrInvalidAmount
	}

	if _, err := ensureAccountTx(tx, accountID, tenantID); err != nil {
		return nil, 0, err
	}

	txn := &models.LedgerTransaction{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TenantID:  tenantID,
		Amount:    amount,
		Reason:    reason,
		Type:      models.TransactionTypeCredit,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, 0, err
	}

	balance, err := balanceTx(tx, accountID)
	if err != nil {
		return nil, 0, err
	}
	return txn, balance, nil
}

// Debit atomically checks balance >= amount and appends the entry as one step.
// The account row lock keeps two concurrent debits from jointly overdrawing.
func (s *LedgerService) Debit(accountID, tenantID string, amount int64, reason string) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var txn *models.LedgerTransaction
	var newBalance int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := ensureAccountTx(tx, accountID, tenantID); err != nil {
			return err
		}

		balance, err := balanceTx(tx, accountID)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientFunds
		}

		txn = &models.LedgerTransaction{
			ID:        uuid.NewString(),
			AccountID: accountID,
			TenantID:  tenantID,
			Amount:    -amount,
			Reason:    reason,
			Type:      models.TransactionTypeDebit,
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		newBalance = balance - amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishWalletChanged(txn, newBalance)
	return txn, nil
}

// Balance derives the current wallet balance from the log.
func (s *LedgerService) Balance(accountID string) (int64, error) {
	return balanceTx(s.DB, accountID)
}

// RecentTransactions returns the newest entries first.
func (s *LedgerService) RecentTransactions(accountID string, limit int) ([]models.LedgerTransaction, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var txns []models.LedgerTransaction
	err := s.DB.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (s *LedgerService) publishWalletChanged(txn *models.LedgerTransaction, newBalance int64) {
	if s.Events == nil || txn == nil {
		return
	}
	err := s.Events.Publish(events.TopicWalletChanged, txn.AccountID, events.WalletChangedEvent{
		AccountID:     txn.AccountID,
		TenantID:      txn.TenantID,
		NewBalance:    newBalance,
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		Reason:        txn.Reason,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Printf("⚠️  Failed to publish wallet-changed for %s: %v", txn.AccountID, err)
	}
}

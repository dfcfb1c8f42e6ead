package services

import (
	"fmt"
	"sync"
	"testing"

	"career-engagement-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database. Single connection: the
// services rely on FOR UPDATE on postgres, here the one writer serializes.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Account{},
		&models.ActivityCounter{},
		&models.LoginRecord{},
		&models.LedgerTransaction{},
		&models.BadgeDefinition{},
		&models.AccountBadge{},
		&models.PromoCode{},
		&models.PromoRedemption{},
		&models.Affiliate{},
		&models.AffiliateClick{},
		&models.AffiliateSignup{},
		&models.CommissionTier{},
		&models.Challenge{},
		&models.ChallengeTask{},
		&models.ChallengeTaskProgress{},
		&models.ChallengeCompletion{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type recordedEvent struct {
	Topic   string
	Key     string
	Payload interface{}
}

// recordingPublisher captures events for assertions instead of shipping them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(topic string, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (p *recordingPublisher) byTopic(topic string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// fakeGranter stands in for the entitlement service client.
type fakeGranter struct {
	calls []string // "accountID:days"
	fail  error
}

func (g *fakeGranter) GrantPremiumDays(accountID string, days int) error {
	if g.fail != nil {
		return g.fail
	}
	g.calls = append(g.calls, fmt.Sprintf("%s:%d", accountID, days))
	return nil
}

// testEngine wires every service against one test database, mirroring the
// dependency order in main.
type testEngine struct {
	db          *gorm.DB
	pub         *recordingPublisher
	granter     *fakeGranter
	ledger      *LedgerService
	badges      *BadgeService
	progression *ProgressionService
	streaks     *StreakService
	promos      *PromoService
	affiliates  *AffiliateService
	challenges  *ChallengeService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := newTestDB(t)
	pub := &recordingPublisher{}
	granter := &fakeGranter{}

	ledger := NewLedgerService(db, pub)
	badges := NewBadgeService(db, pub)
	progression := NewProgressionService(db, pub, badges)

	return &testEngine{
		db:          db,
		pub:         pub,
		granter:     granter,
		ledger:      ledger,
		badges:      badges,
		progression: progression,
		streaks:     NewStreakService(db, pub),
		promos:      NewPromoService(db, pub, ledger, progression, granter),
		affiliates:  NewAffiliateService(db, pub, ledger),
		challenges:  NewChallengeService(db, pub, progression),
	}
}

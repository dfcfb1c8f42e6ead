package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"career-engagement-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileFromPlatform matches the JSON the platform profile service returns
// for changed accounts.
type ProfileFromPlatform struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Username  string    `json:"username"`
	Status    string    `json:"account_status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GetProfileChangesResponse struct {
	Profiles []ProfileFromPlatform `json:"profiles"`
}

// AccountSyncWorker keeps the engagement rows in step with platform signups:
// every new profile gets a zero-valued Account row, so the engines never see a
// missing aggregate.
type AccountSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewAccountSyncWorker(db *gorm.DB, profileServiceBaseURL, endpointPath, serviceToken string) *AccountSyncWorker {
	return &AccountSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      profileServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *AccountSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Account Sync Worker (profile-service → accounts)…")
	go w.run(ctx)
}

func (w *AccountSyncWorker) run(ctx context.Context) {
	// Initial backfill from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial account sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("❌ Account sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Account Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent CreatedAt in the local accounts table.
func (w *AccountSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(created_at) FROM accounts WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

func (w *AccountSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL '%s': %w", w.baseURL, err)
	}
	base.Path = w.endpointPath

	q := base.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", base.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}

	if len(response.Profiles) == 0 {
		return nil
	}

	accounts := make([]models.Account, 0, len(response.Profiles))
	for _, p := range response.Profiles {
		accounts = append(accounts, models.Account{
			ID:       p.ID,
			TenantID: p.TenantID,
		})
	}

	// Existing rows keep their engagement state — only missing accounts are
	// inserted with zero-valued counters.
	if err := w.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&accounts).Error; err != nil {
		return fmt.Errorf("failed to upsert %d account(s): %w", len(accounts), err)
	}

	log.Printf("📥 Account sync: ensured %d account row(s)", len(accounts))
	return nil
}

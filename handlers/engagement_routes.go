// handlers/engagement_routes.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"career-engagement-system/metrics"
	"career-engagement-system/middleware"
	"career-engagement-system/models"
	"career-engagement-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEngagementRoutes wires the event-ingest and read API. The gateway
// forwards paths like /api/v1/engagement/s/user/progress -> /s/user/progress.
func SetupEngagementRoutes(
	app *fiber.App,
	streaks *services.StreakService,
	progression *services.ProgressionService,
	badges *services.BadgeService,
	ledger *services.LedgerService,
	promos *services.PromoService,
	affiliates *services.AffiliateService,
	challenges *services.ChallengeService,
	m *metrics.EngagementMetrics,
) {
	if m != nil {
		app.Use(func(c *fiber.Ctx) error {
			start := time.Now()
			err := c.Next()
			m.ObserveRequest(c.Route().Path, c.Response().StatusCode(), time.Since(start))
			return err
		})
	}

	// 🔐 Account-scoped routes under /s — require user + tenant context from
	// the gateway. The affiliate tracking and internal wallet routes below stay
	// outside this group: they are service-to-service calls with no logged-in
	// account, guarded by the global gateway token only.
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/events/login", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			Day string `json:"day"` // YYYY-MM-DD; empty = today
		}
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		day := time.Now().UTC()
		if req.Day != "" {
			parsed, err := time.Parse("2006-01-02", req.Day)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "day must be YYYY-MM-DD"})
			}
			day = parsed
		}

		result, err := streaks.RecordLogin(accountID, tenantID, day)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record login", "cause": err.Error()})
		}

		if m != nil {
			m.RecordStreakEvent(tenantID, streakOutcome(result))
		}

		// streaks feed badge predicates (current_streak, longest_streak)
		awarded, err := badges.Evaluate(accountID, tenantID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "badge evaluation failed", "cause": err.Error()})
		}
		recordBadgeMetrics(m, tenantID, awarded)

		return c.JSON(fiber.Map{
			"streak":            result.Streak,
			"longest_streak":    result.LongestStreak,
			"freeze_tokens":     result.FreezeTokens,
			"freeze_consumed":   result.FreezeConsumed,
			"milestone_reached": result.MilestoneReached,
			"already_counted":   result.AlreadyCounted,
			"awarded_badges":    awarded,
		})
	})

	secured.Post("/events/activity", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			ActionTag string `json:"action_tag"`
			Delta     int64  `json:"delta"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.ActionTag == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action_tag is required"})
		}

		awarded, err := progression.RecordActivity(accountID, tenantID, req.ActionTag, req.Delta)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record activity", "cause": err.Error()})
		}
		recordBadgeMetrics(m, tenantID, awarded)

		statuses, err := challenges.RecordProgressByAction(accountID, tenantID, req.ActionTag, req.Delta)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to advance challenges", "cause": err.Error()})
		}
		for _, st := range statuses {
			if st.RewardGranted && m != nil {
				m.RecordChallengeCompleted(tenantID, st.ChallengeID)
			}
		}

		return c.JSON(fiber.Map{
			"awarded_badges": awarded,
			"challenges":     statuses,
		})
	})

	secured.Post("/promo/redeem", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Code == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required"})
		}

		result, err := promos.Redeem(accountID, tenantID, req.Code)
		if err != nil {
			status, label := promoErrorStatus(err)
			if m != nil {
				m.RecordPromoRedemption(tenantID, label)
			}
			if status == fiber.StatusInternalServerError {
				return c.Status(status).JSON(fiber.Map{"error": "redemption failed", "cause": err.Error()})
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}

		if m != nil {
			m.RecordPromoRedemption(tenantID, "success")
			switch result.RewardType {
			case models.PromoRewardCoins:
				m.RecordCredit(tenantID, "promo", result.RewardValue)
			case models.PromoRewardXP:
				m.RecordXPGranted(tenantID, "promo", result.RewardValue)
			}
		}
		recordBadgeMetrics(m, tenantID, result.AwardedBadges)

		return c.JSON(result)
	})

	secured.Post("/challenges/:id/progress", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			ActionTag string `json:"action_tag"`
			Delta     int64  `json:"delta"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		status, err := challenges.RecordProgress(accountID, tenantID, c.Params("id"), req.ActionTag, req.Delta)
		if errors.Is(err, services.ErrChallengeNotFound) || errors.Is(err, services.ErrTaskNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record progress", "cause": err.Error()})
		}
		if status.RewardGranted && m != nil {
			m.RecordChallengeCompleted(tenantID, status.ChallengeID)
			m.RecordXPGranted(tenantID, "challenge", status.XPGranted)
		}
		return c.JSON(status)
	})

	secured.Get("/user/progress", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)
		tenantID := c.Locals("tenant_id").(string)

		acc, level, err := progression.GetProgress(accountID, tenantID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load progress", "cause": err.Error()})
		}

		return c.JSON(fiber.Map{
			"account_id":          acc.ID,
			"xp":                  acc.TotalXP,
			"level":               level.Level,
			"progress_into_level": level.ProgressIntoLevel,
			"xp_to_next_level":    level.XPToNextLevel,
			"current_streak":      acc.CurrentStreak,
			"longest_streak":      acc.LongestStreak,
			"freeze_tokens":       acc.FreezeTokens,
			"last_login_day":      acc.LastLoginDay,
		})
	})

	secured.Get("/user/badges", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)

		rows, defs, err := badges.EarnedBadges(accountID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load badges", "cause": err.Error()})
		}

		response := []fiber.Map{}
		for _, row := range rows {
			def := defs[row.BadgeID]
			response = append(response, fiber.Map{
				"id":          row.ID,
				"badge_id":    def.ID,
				"code":        def.Code,
				"name":        def.Name,
				"description": def.Description,
				"icon_url":    def.IconURL,
				"xp_reward":   def.XPReward,
				"awarded_at":  row.AwardedAt,
			})
		}
		return c.JSON(response)
	})

	secured.Get("/user/wallet", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)

		balance, err := ledger.Balance(accountID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load balance", "cause": err.Error()})
		}
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		txns, err := ledger.RecentTransactions(accountID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load transactions", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{
			"balance":      balance,
			"transactions": txns,
		})
	})

	secured.Get("/user/challenges/:id", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)

		status, err := challenges.GetStatus(accountID, c.Params("id"))
		if errors.Is(err, services.ErrChallengeNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load challenge", "cause": err.Error()})
		}
		return c.JSON(status)
	})

	secured.Post("/user/affiliate", func(c *fiber.Ctx) error {
		accountID := c.Locals("account_id").(string)
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.DisplayName == "" {
			req.DisplayName = "partner"
		}

		aff, err := affiliates.CreateAffiliate(accountID, tenantID, req.DisplayName)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create affiliate", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(aff)
	})

	// Affiliate tracking endpoints — service-to-service, gateway token only
	// (clicks and signups arrive from the public site and the signup pipeline,
	// not from a logged-in account).
	app.Post("/affiliates/:code/click", func(c *fiber.Ctx) error {
		tenantID := c.Get("X-Tenant-ID")
		if tenantID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing X-Tenant-ID"})
		}

		aff, err := affiliates.ResolveByCode(tenantID, c.Params("code"))
		if errors.Is(err, services.ErrAffiliateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve affiliate", "cause": err.Error()})
		}

		click, err := affiliates.RecordClick(aff.ID, aff.TenantID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record click", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"click_id": click.ID})
	})

	app.Post("/affiliates/:code/signup", func(c *fiber.Ctx) error {
		tenantID := c.Get("X-Tenant-ID")
		if tenantID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing X-Tenant-ID"})
		}

		var req struct {
			NewAccountID string `json:"new_account_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.NewAccountID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "new_account_id is required"})
		}

		aff, err := affiliates.ResolveByCode(tenantID, c.Params("code"))
		if errors.Is(err, services.ErrAffiliateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve affiliate", "cause": err.Error()})
		}

		signup, err := affiliates.RecordSignup(aff.ID, req.NewAccountID)
		if errors.Is(err, services.ErrAffiliateNotApproved) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record signup", "cause": err.Error()})
		}

		if m != nil {
			m.RecordAffiliateSignup(tenantID, signup.Commission)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"signup_id":  signup.ID,
			"commission": signup.Commission,
		})
	})

	// Internal wallet surface for sibling services (the career-quiz minigame
	// spends and wins coins through here — never by touching balances inline).
	app.Post("/internal/wallet/debit", func(c *fiber.Ctx) error {
		var req struct {
			AccountID string `json:"account_id"`
			TenantID  string `json:"tenant_id"`
			Amount    int64  `json:"amount"`
			Reason    string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		txn, err := ledger.Debit(req.AccountID, req.TenantID, req.Amount, req.Reason)
		if errors.Is(err, services.ErrInsufficientFunds) {
			if m != nil {
				m.RecordDebitRejected(req.TenantID)
			}
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, services.ErrInvalidAmount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "debit failed", "cause": err.Error()})
		}
		if m != nil {
			m.RecordDebit(req.TenantID, req.Reason, req.Amount)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	})

	app.Post("/internal/wallet/credit", func(c *fiber.Ctx) error {
		var req struct {
			AccountID string `json:"account_id"`
			TenantID  string `json:"tenant_id"`
			Amount    int64  `json:"amount"`
			Reason    string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		txn, err := ledger.Credit(req.AccountID, req.TenantID, req.Amount, req.Reason)
		if errors.Is(err, services.ErrInvalidAmount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "credit failed", "cause": err.Error()})
		}
		if m != nil {
			m.RecordCredit(req.TenantID, req.Reason, req.Amount)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	})
}

func streakOutcome(r *services.StreakResult) string {
	switch {
	case r.AlreadyCounted:
		return "duplicate"
	case r.FreezeConsumed:
		return "saved"
	case r.Streak == 1 && r.LongestStreak > 1:
		return "reset"
	default:
		return "extended"
	}
}

func recordBadgeMetrics(m *metrics.EngagementMetrics, tenantID string, awarded []services.AwardedBadge) {
	if m == nil {
		return
	}
	for _, b := range awarded {
		m.RecordBadgeAwarded(tenantID, b.Code)
		m.RecordXPGranted(tenantID, "badge", b.XPGranted)
	}
}

func promoErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrPromoNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrPromoInactive):
		return fiber.StatusGone, "inactive"
	case errors.Is(err, services.ErrPromoExpired):
		return fiber.StatusGone, "expired"
	case errors.Is(err, services.ErrPromoUsageLimitReached):
		return fiber.StatusConflict, "usage_limit_reached"
	case errors.Is(err, services.ErrPromoAlreadyRedeemed):
		return fiber.StatusConflict, "already_redeemed"
	default:
		return fiber.StatusInternalServerError, "error"
	}
}

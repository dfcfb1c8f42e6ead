// handlers/admin_routes.go
package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"career-engagement-system/metrics"
	"career-engagement-system/middleware"
	"career-engagement-system/models"
	"career-engagement-system/services"
	"career-engagement-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SetupAdminRoutes wires the tenant-admin surface: promo codes, badge
// definitions, challenges, affiliate approval and manual grants.
func SetupAdminRoutes(
	app *fiber.App,
	progression *services.ProgressionService,
	ledger *services.LedgerService,
	promos *services.PromoService,
	affiliates *services.AffiliateService,
	m *metrics.EngagementMetrics,
) {
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			AccountID string `json:"account_id" validate:"required,uuid"`
			XP        int64  `json:"xp" validate:"required,min=1"`
			Reason    string `json:"reason" validate:"max=255"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.XP <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "xp must be positive"})
		}

		acc, awarded, err := progression.AwardXP(req.AccountID, tenantID, req.XP, req.Reason)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "XP award failed", "cause": err.Error()})
		}
		if m != nil {
			m.RecordXPGranted(tenantID, "admin", req.XP)
		}
		recordBadgeMetrics(m, tenantID, awarded)

		return c.JSON(fiber.Map{
			"message":        "XP granted successfully",
			"account_id":     req.AccountID,
			"total_xp":       acc.TotalXP,
			"awarded_badges": awarded,
		})
	})

	admin.Post("/wallet/credit", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			AccountID string `json:"account_id"`
			Amount    int64  `json:"amount"`
			Reason    string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		txn, err := ledger.Credit(req.AccountID, tenantID, req.Amount, req.Reason)
		if errors.Is(err, services.ErrInvalidAmount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "credit failed", "cause": err.Error()})
		}
		if m != nil {
			m.RecordCredit(tenantID, "admin_grant", req.Amount)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	})

	admin.Post("/promo-codes", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			Code        string                 `json:"code" validate:"required"`
			RewardType  models.PromoRewardType `json:"reward_type" validate:"required,oneof=coins xp premium_days"`
			RewardValue int64                  `json:"reward_value" validate:"required,min=1"`
			ExpiresAt   *time.Time             `json:"expires_at"`
			UsageLimit  int                    `json:"usage_limit"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Code == "" || req.RewardValue <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code and a positive reward_value are required"})
		}
		switch req.RewardType {
		case models.PromoRewardCoins, models.PromoRewardXP, models.PromoRewardPremiumDays:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reward_type must be coins, xp or premium_days"})
		}

		promo := models.PromoCode{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			Code:        services.NormalizePromoCode(req.Code),
			RewardType:  req.RewardType,
			RewardValue: req.RewardValue,
			ExpiresAt:   req.ExpiresAt,
			UsageLimit:  req.UsageLimit,
			Active:      true,
		}
		if err := promos.DB.Create(&promo).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create promo code", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(promo)
	})

	admin.Patch("/promo-codes/:id", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var promo models.PromoCode
		if err := promos.DB.Where("id = ? AND tenant_id = ?", c.Params("id"), tenantID).First(&promo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "promo code not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
		}

		var req struct {
			Active     *bool      `json:"active"`
			ExpiresAt  *time.Time `json:"expires_at"`
			UsageLimit *int       `json:"usage_limit"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		if req.Active != nil {
			promo.Active = *req.Active
		}
		if req.ExpiresAt != nil {
			promo.ExpiresAt = req.ExpiresAt
		}
		if req.UsageLimit != nil {
			promo.UsageLimit = *req.UsageLimit
		}

		if err := promos.DB.Save(&promo).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update promo code", "cause": err.Error()})
		}
		return c.JSON(promo)
	})

	admin.Post("/badges", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			Code        string              `json:"code" validate:"required"`
			Name        string              `json:"name" validate:"required"`
			Description string              `json:"description"`
			XPReward    int64               `json:"xp_reward"`
			Trigger     models.BadgeTrigger `json:"trigger"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Code == "" || req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code and name are required"})
		}
		if req.XPReward < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "xp_reward must not be negative"})
		}

		def := models.BadgeDefinition{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			Code:        req.Code,
			Name:        req.Name,
			Description: req.Description,
			XPReward:    req.XPReward,
			Trigger:     req.Trigger,
			Active:      true,
		}
		if err := promos.DB.Create(&def).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create badge", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(def)
	})

	admin.Post("/badges/:id/icon", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var def models.BadgeDefinition
		if err := promos.DB.Where("id = ? AND tenant_id = ?", c.Params("id"), tenantID).First(&def).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "badge not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
		}

		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
		}

		key := fmt.Sprintf("badges/%s%s", def.ID, filepath.Ext(fileHeader.Filename))
		iconURL, err := utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload icon", "cause": err.Error()})
		}

		def.IconURL = iconURL
		if err := promos.DB.Save(&def).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save icon URL", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"icon_url": iconURL})
	})

	admin.Post("/challenges", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			Name     string               `json:"name" validate:"required"`
			Type     models.ChallengeType `json:"type"`
			RewardXP int64                `json:"reward_xp"`
			Tasks    []struct {
				ActionTag string `json:"action_tag"`
				Target    int64  `json:"target"`
			} `json:"tasks"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		if req.Type == "" {
			req.Type = models.ChallengeTypeStandard
		}
		if req.Type == models.ChallengeTypeFlip && len(req.Tasks) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "flip challenges need at least one task"})
		}

		challenge := models.Challenge{
			ID:       uuid.NewString(),
			TenantID: tenantID,
			Type:     req.Type,
			Name:     req.Name,
			RewardXP: req.RewardXP,
			Active:   true,
		}
		for i, t := range req.Tasks {
			if t.ActionTag == "" || t.Target <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "each task needs an action_tag and a positive target"})
			}
			challenge.Tasks = append(challenge.Tasks, models.ChallengeTask{
				ID:          uuid.NewString(),
				ChallengeID: challenge.ID,
				Position:    i + 1,
				ActionTag:   t.ActionTag,
				Target:      t.Target,
			})
		}

		if err := promos.DB.Create(&challenge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create challenge", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	admin.Patch("/affiliates/:id/status", func(c *fiber.Ctx) error {
		var req struct {
			Status models.AffiliateStatus `json:"status" validate:"required,oneof=approved rejected"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		aff, err := affiliates.SetStatus(c.Params("id"), req.Status)
		if errors.Is(err, services.ErrAffiliateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if errors.Is(err, services.ErrAffiliateStatusFinal) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update affiliate", "cause": err.Error()})
		}
		return c.JSON(aff)
	})

	admin.Post("/commission-tiers", func(c *fiber.Ctx) error {
		tenantID := c.Locals("tenant_id").(string)

		var req struct {
			Name       string  `json:"name" validate:"required"`
			MinSignups int64   `json:"min_signups"`
			Rate       float64 `json:"rate" validate:"required,gt=0"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Name == "" || req.Rate <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and a positive rate are required"})
		}

		tier := models.CommissionTier{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			Name:       req.Name,
			MinSignups: req.MinSignups,
			Rate:       req.Rate,
		}
		if err := affiliates.DB.Create(&tier).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create tier", "cause": err.Error()})
		}
		return c.Status(fiber.StatusCreated).JSON(tier)
	})
}

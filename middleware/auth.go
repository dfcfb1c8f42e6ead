package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the account, tenant and roles the Gateway
// resolved upstream. This service never re-derives permissions — it trusts the
// already-resolved scope in these headers.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID := c.Get("X-User-ID")
		tenantID := c.Get("X-Tenant-ID")
		rolesStr := c.Get("X-User-Roles")

		if accountID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		if tenantID == "" {
			log.Printf("❌ [USER_CTX] X-Tenant-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Tenant-ID — request must come through gateway with tenant context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		c.Locals("account_id", accountID)
		c.Locals("tenant_id", tenantID)
		c.Locals("user_roles", roles)

		return c.Next()
	}
}

// RequireAdmin guards the admin group; the Gateway encodes the resolved role
// set in X-User-Roles.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == "admin" || r == "tenant_admin" {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "admin role required",
		})
	}
}

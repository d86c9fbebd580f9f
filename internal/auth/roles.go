package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/laggis/Discord-Ticket-bot/pkg/util"
)

// RequireStaff ensures the operator holds one of the staff roles.
func RequireStaff(staffRoleIDs []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !actor.HasAnyRole(staffRoleIDs) {
			return apperrors.NewPermissionDenied("staff role required")
		}
		return c.Next()
	}
}

// RequireBan ensures the operator carries the moderation capability.
func RequireBan() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !actor.CanBan {
			return apperrors.NewPermissionDenied("ban permission required")
		}
		return c.Next()
	}
}

package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/identity"
)

// RequireRoles ensures the requester's role is one of the allowed roles.
// Usage: route(..., RequireRoles(identity.RoleSeller))
func RequireRoles(roles ...identity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			who, ok := identity.FromContext(c.Request().Context())
			if !ok {
				return apperr.Unauthenticated("authentication required")
			}
			for _, r := range roles {
				if who.Role == r {
					return next(c)
				}
			}
			return apperr.Forbidden("access denied for role " + string(who.Role))
		}
	}
}

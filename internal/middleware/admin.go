package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/ricestore/internal/services"
)

const (
	// AdminCookie carries the opaque admin session token.
	AdminCookie = "admin_session"
	// AdminTokenHeader is accepted in place of the cookie.
	AdminTokenHeader = "X-Admin-Token"

	adminContextKey = "currentAdmin"
	adminTokenKey   = "currentAdminToken"
)

// AdminAuth resolves the admin session token through store.
func AdminAuth(store services.SessionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := AdminToken(c)
		identity, err := store.Get(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(adminContextKey, identity)
		c.Locals(adminTokenKey, token)
		c.SetUserContext(services.WithAdmin(c.UserContext(), identity))
		return c.Next()
	}
}

// AdminToken reads the session token from the cookie or header.
func AdminToken(c *fiber.Ctx) string {
	if token, ok := c.Locals(adminTokenKey).(string); ok && token != "" {
		return token
	}
	if token := c.Cookies(AdminCookie); token != "" {
		return token
	}
	return c.Get(AdminTokenHeader)
}

// CurrentAdmin returns the authenticated admin, or nil.
func CurrentAdmin(c *fiber.Ctx) *services.AdminIdentity {
	identity, _ := c.Locals(adminContextKey).(*services.AdminIdentity)
	return identity
}

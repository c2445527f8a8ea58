package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/config"
	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/services"
	"github.com/example/ricestore/internal/utils"
)

const (
	// CustomerCookie carries the customer JWT.
	CustomerCookie = "jwt"

	customerContextKey = "currentCustomer"
)

// AuthMiddleware validates the customer JWT from the jwt cookie or a Bearer
// header and loads the user into request locals and the user context.
func AuthMiddleware(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(CustomerCookie)
		if token == "" {
			token = bearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if token == "" {
			return services.ErrUnauthorized
		}

		userID, err := utils.ParseToken(cfg.JWTSecret, token)
		if err != nil {
			return &services.Error{Kind: services.KindUnauthorized, Message: "invalid or expired token"}
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &services.Error{Kind: services.KindUnauthorized, Message: "account no longer exists"}
			}
			return err
		}

		identity := &services.CustomerIdentity{ID: user.ID, Name: user.FullName(), Email: user.Email}
		c.Locals(customerContextKey, identity)
		c.SetUserContext(services.WithCustomer(c.UserContext(), identity))
		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CurrentCustomer returns the authenticated customer, or nil.
func CurrentCustomer(c *fiber.Ctx) *services.CustomerIdentity {
	identity, _ := c.Locals(customerContextKey).(*services.CustomerIdentity)
	return identity
}

package middleware

import (
	"context"
	"strings"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/auth"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/response"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// UserSyncer records the identity carried by a validated token.
type UserSyncer interface {
	Upsert(ctx context.Context, user *models.User) error
}

type AuthMiddleware struct {
	validator *auth.TokenValidator
	users     UserSyncer
	responses *response.BaseService
	config    *AuthMiddlewareConfig
}

type AuthMiddlewareConfig struct {
	HeaderNames []string
	SkipPaths   []string
}

func DefaultAuthMiddlewareConfig() *AuthMiddlewareConfig {
	return &AuthMiddlewareConfig{
		HeaderNames: []string{"Authorization"},
		SkipPaths:   []string{"/health"},
	}
}

// NewAuthMiddleware creates the bearer-token middleware. users may be nil.
func NewAuthMiddleware(validator *auth.TokenValidator, users UserSyncer, config *AuthMiddlewareConfig) *AuthMiddleware {
	if config == nil {
		config = DefaultAuthMiddlewareConfig()
	}
	if len(config.HeaderNames) == 0 {
		config.HeaderNames = []string{"Authorization"}
	}
	return &AuthMiddleware{
		validator: validator,
		users:     users,
		responses: response.NewBaseService(),
		config:    config,
	}
}

func (m *AuthMiddleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.shouldSkipPath(c.Path()) {
			return c.Next()
		}

		token := m.extractToken(c)
		if token == "" {
			return m.responses.Error(c, fiber.StatusUnauthorized, "authentication required",
				string(models.ErrorTypeAuthentication), "UNAUTHORIZED")
		}

		authCtx, err := m.validator.Validate(token)
		if err != nil {
			fiberlog.Debugf("Rejected bearer token: %v", err)
			return m.responses.Error(c, fiber.StatusUnauthorized, "invalid or expired token",
				string(models.ErrorTypeAuthentication), "UNAUTHORIZED")
		}

		if m.users != nil && authCtx.Email != "" {
			user := &models.User{ID: authCtx.UserID, Email: authCtx.Email, Name: authCtx.Name}
			if err := m.users.Upsert(c.UserContext(), user); err != nil {
				fiberlog.Warnf("Failed to sync user %s: %v", authCtx.UserID, err)
			}
		}

		auth.SetAuthContext(c, authCtx)
		return c.Next()
	}
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	for _, headerName := range m.config.HeaderNames {
		if header := c.Get(headerName); header != "" {
			if after, ok := strings.CutPrefix(header, "Bearer "); ok {
				return strings.TrimSpace(after)
			}
			return strings.TrimSpace(header)
		}
	}
	return ""
}

func (m *AuthMiddleware) shouldSkipPath(path string) bool {
	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

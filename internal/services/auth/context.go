package auth

import (
	"github.com/gofiber/fiber/v2"
)

const authContextLocalKey = "auth_context"

// AuthContext is the identity of an authenticated caller.
type AuthContext struct {
	UserID string
	Email  string
	Name   string
	Claims *Claims
}

func SetAuthContext(c *fiber.Ctx, authCtx *AuthContext) {
	c.Locals(authContextLocalKey, authCtx)
}

func GetAuthContext(c *fiber.Ctx) *AuthContext {
	authCtx, ok := c.Locals(authContextLocalKey).(*AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

func GetUserID(c *fiber.Ctx) (string, bool) {
	authCtx := GetAuthContext(c)
	if authCtx == nil {
		return "", false
	}
	return authCtx.UserID, authCtx.UserID != ""
}

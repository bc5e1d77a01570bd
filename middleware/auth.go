package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/karthikraju391/pairchat/chat"
	"github.com/karthikraju391/pairchat/models"
)

// TokenLocal is where the verified token is stored on the request.
const TokenLocal = "user"

// Protected verifies an HS256 JWT from the Authorization header or the
// "token" query parameter (browsers cannot set headers on WebSocket
// upgrades).
func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		ContextKey:    TokenLocal,
		TokenLookup:   "header:Authorization,query:token",
		ErrorHandler:  jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// UserID extracts the authenticated user id from a value stored under
// TokenLocal. It prefers the "sub" claim and falls back to "user_id".
func UserID(local interface{}) (string, error) {
	token, ok := local.(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return "", chat.ErrIdentityUnavailable
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", chat.ErrIdentityUnavailable
	}
	for _, name := range []string{"sub", "user_id"} {
		if id, ok := claims[name].(string); ok && id != "" {
			if !models.ValidSegment(id) {
				return "", fmt.Errorf("%w: malformed user id", chat.ErrIdentityUnavailable)
			}
			return id, nil
		}
	}
	return "", chat.ErrIdentityUnavailable
}

// CurrentUser is UserID for a regular request.
func CurrentUser(c *fiber.Ctx) (string, error) {
	return UserID(c.Locals(TokenLocal))
}

// RequireUser rejects requests whose token carries no usable user id.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := CurrentUser(c); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.Next()
	}
}

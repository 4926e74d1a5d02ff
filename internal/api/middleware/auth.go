package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the locals key holding the resolved user id.
const UserIDKey = "userID"

// AnonymousUserID is stored when no valid bearer token is presented.
const AnonymousUserID = "anonymous"

// UserID resolves the caller's user id from a bearer token. Authentication
// itself is an external collaborator; this middleware only extracts the
// subject claim and degrades to the anonymous sentinel.
func UserID(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(UserIDKey, AnonymousUserID)

		auth := c.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return c.Next()
		}
		tokenString := strings.TrimPrefix(auth, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return c.Next()
		}

		if subject, err := token.Claims.GetSubject(); err == nil && subject != "" {
			c.Locals(UserIDKey, subject)
		}
		return c.Next()
	}
}

// CurrentUserID reads the resolved user id from the request context.
func CurrentUserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(UserIDKey).(string); ok && id != "" {
		return id
	}
	return AnonymousUserID
}

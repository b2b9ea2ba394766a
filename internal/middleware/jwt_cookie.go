package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fitlink-in/fitlink_backend/internal/utils"
)

const AuthCookieName = "fl_token"

func JWTFromCookie(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(AuthCookieName)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		token, err := utils.ParseToken(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("user", token)
		return c.Next()
	}
}

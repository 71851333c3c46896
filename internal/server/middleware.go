package server

import "github.com/gofiber/fiber/v2"

// callerKey is the fiber.Ctx locals slot holding the authenticated caller.
const callerKey = "callerID"

// RequireCaller reads the caller identity attached by the identity service
// (X-User-ID header) and rejects requests without one. Real authentication
// happens upstream; the ledger core only consumes the result.
func RequireCaller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := c.Get("X-User-ID")
		if caller == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "missing caller identity",
			})
		}
		c.Locals(callerKey, caller)
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) string {
	caller, _ := c.Locals(callerKey).(string)
	return caller
}

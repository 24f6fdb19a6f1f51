package middleware

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// Recovery cattura i panic dei handler e risponde con un 500 strutturato.
// Il dispatcher non deve mai cadere per una singola interazione malformata.
func Recovery() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", GetRequestID(c)).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Str("ip", c.IP()).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":      "internal_server_error",
					"request_id": GetRequestID(c),
				})
			}
		}()

		return c.Next()
	}
}

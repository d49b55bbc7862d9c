package middleware

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"matchcore/src/logger"
)

// RequestLogger logs one structured line per completed HTTP request.
// Disabled entirely via REQUEST_LOGGING_DISABLED=1 or when the global
// level is above info.
func RequestLogger() fiber.Handler {
	if os.Getenv("REQUEST_LOGGING_DISABLED") == "1" || zerolog.GlobalLevel() > zerolog.InfoLevel {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		logger.Logger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Int("status", c.Response().StatusCode()).
			Int64("latency_us", time.Since(start).Microseconds()).
			Int("bytes_in", len(c.Body())).
			Int("bytes_out", len(c.Response().Body())).
			Msg("HTTP request")

		return err
	}
}

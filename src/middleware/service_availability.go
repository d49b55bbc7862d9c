package middleware

import (
	"os"
	"strconv"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"matchcore/src/logger"
)

// ServiceAvailability rejects admissions while the venue is in
// maintenance mode or already saturated with in-flight requests. /health
// always passes so load balancers keep probing a paused venue.
type ServiceAvailability struct {
	maintenance atomic.Bool
	maxInFlight int64
	inFlight    atomic.Int64
}

// NewServiceAvailability constructs the gate. maxInFlight <= 0 disables
// the overload check; MAINTENANCE_MODE=1 starts the process paused.
func NewServiceAvailability(maxInFlight int64) *ServiceAvailability {
	sa := &ServiceAvailability{maxInFlight: maxInFlight}
	if os.Getenv("MAINTENANCE_MODE") == "1" {
		sa.maintenance.Store(true)
		logger.Logger.Warn().Msg("Venue starting in maintenance mode - admissions will return 503")
	}
	return sa
}

// SetMaintenanceMode pauses or resumes admissions at runtime.
func (sa *ServiceAvailability) SetMaintenanceMode(enabled bool) {
	sa.maintenance.Store(enabled)
	if enabled {
		logger.Logger.Warn().Msg("Maintenance mode enabled, pausing admissions")
	} else {
		logger.Logger.Info().Msg("Maintenance mode disabled, resuming admissions")
	}
}

func (sa *ServiceAvailability) IsMaintenanceMode() bool {
	return sa.maintenance.Load()
}

func (sa *ServiceAvailability) GetInFlightRequests() int64 {
	return sa.inFlight.Load()
}

func (sa *ServiceAvailability) unavailable(c *fiber.Ctx, reason, message string) error {
	logger.Logger.Warn().
		Str("path", c.Path()).
		Str("method", c.Method()).
		Str("ip", c.IP()).
		Str("reason", reason).
		Msg("Request rejected: service unavailable")
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "Service unavailable",
		"message": message,
		"code":    fiber.StatusServiceUnavailable,
	})
}

func (sa *ServiceAvailability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		if sa.maintenance.Load() {
			return sa.unavailable(c, "maintenance",
				"The venue is currently undergoing maintenance. Please try again later.")
		}

		if sa.maxInFlight > 0 && sa.inFlight.Load() >= sa.maxInFlight {
			return sa.unavailable(c, "overload",
				"The venue is currently overloaded. Please try again later.")
		}

		sa.inFlight.Add(1)
		defer sa.inFlight.Add(-1)

		return c.Next()
	}
}

// DefaultServiceAvailability reads MAX_CONCURRENT_REQUESTS from the
// environment; unset or invalid means no overload cap.
func DefaultServiceAvailability() *ServiceAvailability {
	var maxInFlight int64
	if env := os.Getenv("MAX_CONCURRENT_REQUESTS"); env != "" {
		if parsed, err := strconv.ParseInt(env, 10, 64); err == nil && parsed > 0 {
			maxInFlight = parsed
			logger.Logger.Info().
				Int64("max_concurrent_requests", maxInFlight).
				Msg("Overload detection enabled")
		}
	}
	return NewServiceAvailability(maxInFlight)
}

// Package middleware carries the HTTP-boundary concerns in front of the
// admission API: per-client rate limiting, availability gating, and
// request logging. None of these run inside the matching critical
// section; an order rejected here never reaches a ProductBook and emits
// no audit event.
package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"matchcore/src/logger"
)

type clientWindow struct {
	start time.Time
	count int
}

// RateLimiter enforces a fixed-window request cap per client IP in front
// of the admission endpoints. It protects the admission coordinator from
// a runaway client, not the book itself; the ProductBook lock is the
// real serialization point.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	clients map[string]*clientWindow
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  window,
		clients: make(map[string]*clientWindow),
	}
}

func clientID(c *fiber.Ctx) string {
	if ip := c.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := c.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return c.IP()
}

// Allow records one request for client and reports whether it fits the
// current window. Expired windows are reset in place rather than swept,
// so the map never grows beyond the set of distinct client IPs seen.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.clients[client]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[client] = &clientWindow{start: now, count: 1}
		return true
	}
	if w.count >= rl.max {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := clientID(c)

		if !rl.Allow(client) {
			logger.Logger.Warn().
				Str("client_ip", client).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.max).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please try again later.",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.max))
		c.Set("X-RateLimit-Window", rl.window.String())

		return c.Next()
	}
}

func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(100, time.Second)
}

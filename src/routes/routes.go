// Package routes wires the HTTP surface onto a fiber app: the order
// admission API, top-of-book/depth queries, audit verification, the
// Prometheus /metrics endpoint, and the rate-limit and
// service-availability middleware stack in front of it all.
package routes

import (
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matchcore/src/handlers"
	"matchcore/src/middleware"
)

// SetupRoutes wires the fiber app. The /ws/marketdata/:instrument
// websocket upgrade is NOT mounted here: gorilla/websocket needs a real
// net/http.Hijacker, which fiber's fasthttp engine cannot provide
// through the adaptor package, so main.go runs the marketdata.Hub on
// its own net/http.Server instead.
func SetupRoutes(app *fiber.App, orderHandler *handlers.OrderHandler) {
	rateLimitDisabled := os.Getenv("RATE_LIMIT_DISABLED") == "1"

	maxRequests := 100
	if envMax := os.Getenv("RATE_LIMIT_MAX"); envMax != "" {
		if parsed, err := strconv.Atoi(envMax); err == nil && parsed > 0 {
			maxRequests = parsed
		}
	}

	windowDuration := time.Second
	if envWindow := os.Getenv("RATE_LIMIT_WINDOW"); envWindow != "" {
		if parsed, err := time.ParseDuration(envWindow); err == nil && parsed > 0 {
			windowDuration = parsed
		}
	}

	serviceAvailability := middleware.DefaultServiceAvailability()
	app.Use(serviceAvailability.Middleware())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	if !rateLimitDisabled {
		rateLimiter := middleware.NewRateLimiter(maxRequests, windowDuration)
		api.Use(rateLimiter.Middleware())
	}

	api.Post("/orders", orderHandler.SubmitOrder)
	api.Delete("/instruments/:instrument/orders/:id", orderHandler.CancelOrder)
	api.Post("/quotes", orderHandler.SubmitQuote)
	api.Delete("/instruments/:instrument/quotes", orderHandler.RemoveQuotes)
	api.Get("/instruments/:instrument/top", orderHandler.TopOfBook)
	api.Get("/instruments/:instrument/depth", orderHandler.BookDepth)
	api.Get("/audit/verify", orderHandler.AuditVerify)
	api.Get("/metrics/summary", orderHandler.MetricsSummary)

	app.Get("/health", orderHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

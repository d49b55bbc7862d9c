package tests

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"matchcore/src/audit"
	"matchcore/src/coordinator"
	"matchcore/src/engine"
	"matchcore/src/handlers"
	"matchcore/src/latency"
	"matchcore/src/registry"
	"matchcore/src/routes"
	"matchcore/src/stp"
)

// testInstruments mirrors the default product list main.go registers.
var testInstruments = []string{"AAPL", "MSFT", "GOOG", "TSLA", "AMZN"}

// setupTestEngine builds a fresh fiber app wired to an in-memory engine,
// mirroring the shape main.go assembles but without touching the
// filesystem or a real Prometheus registerer. The returned listener is
// registered on the hash chain, so tests can assert on the exact audit
// event sequence the engine emitted.
func setupTestEngine() (*fiber.App, *audit.ListenerSink) {
	// Rate limiting defaults off for functional suites; the rate-limit
	// tests opt back in by setting RATE_LIMIT_DISABLED=0 beforehand.
	if os.Getenv("RATE_LIMIT_DISABLED") == "" {
		os.Setenv("RATE_LIMIT_DISABLED", "1")
		defer os.Unsetenv("RATE_LIMIT_DISABLED")
	}

	listener := audit.NewListenerSink()
	chain := audit.New(listener)
	reg := registry.New()
	manager := engine.NewProductManager(chain, reg)

	for _, instrument := range testInstruments {
		if _, err := manager.AddInstrument(instrument, stp.DefaultMode, nil); err != nil {
			panic(err)
		}
	}

	monitor := latency.NewMonitor(0, latency.DefaultThresholds, nil)
	coord := coordinator.New(manager, monitor)
	orderHandler := handlers.NewOrderHandler(coord, listener, reg)

	app := fiber.New()
	routes.SetupRoutes(app, orderHandler)
	return app, listener
}

func setupTestServer() *fiber.App {
	app, _ := setupTestEngine()
	return app
}

// sampleOrderBody is the submit_order request body used across the
// middleware test suites; the exact price/volume values don't matter,
// they only need to be a valid admissible order.
func sampleOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"user":       "trader_1",
		"instrument": "AAPL",
		"side":       "BUY",
		"price":      "150.50",
		"volume":     100,
	}
}

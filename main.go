package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"matchcore/src/audit"
	"matchcore/src/config"
	"matchcore/src/coordinator"
	"matchcore/src/engine"
	"matchcore/src/handlers"
	"matchcore/src/latency"
	"matchcore/src/logger"
	"matchcore/src/marketdata"
	"matchcore/src/registry"
	"matchcore/src/routes"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()

	log.Info().Msg("Initializing matching engine")

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	fileSink, err := audit.NewFileSink(cfg.AuditFilePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.AuditFilePath).Msg("Failed to open audit file sink")
	}
	defer fileSink.Close()

	listenerSink := audit.NewListenerSink()

	sinks := []audit.Sink{fileSink, listenerSink}
	for _, name := range cfg.AuditSinks {
		if name == "database" {
			sinks = append(sinks, audit.NullDatabaseSink{})
		}
	}
	chain := audit.New(sinks...)

	reg := registry.New()
	manager := engine.NewProductManager(chain, reg)
	monitor := latency.NewMonitor(0, cfg.Thresholds, prometheus.DefaultRegisterer)

	hub := marketdata.NewHub()

	for _, instrument := range cfg.Products {
		if _, err := manager.AddInstrument(instrument, cfg.STPMode, hub); err != nil {
			log.Fatal().Err(err).Str("instrument", instrument).Msg("Failed to register instrument")
		}
	}

	startEvent := audit.NewBuilder(audit.SystemStart).
		Add("products", cfg.Products).
		Add("stp_mode", string(cfg.STPMode)).
		Build()
	if _, err := chain.Append(startEvent); err != nil {
		log.Fatal().Err(err).Msg("Failed to append SYSTEM_START audit event")
	}

	coord := coordinator.New(manager, monitor)
	orderHandler := handlers.NewOrderHandler(coord, listenerSink, reg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Error().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Str("error", err.Error()).
				Msg("Request error")

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	routes.SetupRoutes(app, orderHandler)

	wsAddr := os.Getenv("WS_LISTEN_ADDR")
	if wsAddr == "" {
		wsAddr = ":8081"
	}
	wsServer := &http.Server{
		Addr:    wsAddr,
		Handler: hub.Handler(),
	}

	serverError := make(chan error, 2)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			errStr := err.Error()
			if errStr != "server is shutting down" {
				serverError <- err
			}
		}
	}()

	go func() {
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case err := <-serverError:
		log.Fatal().
			Err(err).
			Msg("Server failed to start")
	case <-time.After(100 * time.Millisecond):
		log.Info().
			Str("listen_addr", cfg.ListenAddr).
			Str("ws_addr", wsAddr).
			Strs("products", cfg.Products).
			Str("stp_mode", string(cfg.STPMode)).
			Msg("Matching engine started")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info().Msg("Received shutdown signal, shutting down...")

	shutdownTimeout := 10 * time.Second
	if envTimeout := os.Getenv("SHUTDOWN_TIMEOUT"); envTimeout != "" {
		if parsed, err := time.ParseDuration(envTimeout); err == nil && parsed > 0 {
			shutdownTimeout = parsed
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Dur("timeout", shutdownTimeout).Msg("Timeout exceeded shutting down HTTP server")
		} else {
			log.Error().Err(err).Msg("Error shutting down HTTP server")
		}
	}
	if err := wsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down marketdata server")
	}

	shutdownEvent := audit.NewBuilder(audit.SystemShutdown).Build()
	if _, err := chain.Append(shutdownEvent); err != nil {
		log.Error().Err(err).Msg("Failed to append SYSTEM_SHUTDOWN audit event")
	}

	log.Info().Msg("Shutdown complete")
	logger.CloseLogger()
}

package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/benki/benki/internal/config"
	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/kyc"
	"github.com/benki/benki/internal/logging"
	"github.com/benki/benki/internal/routes"
)

// Server wraps the Fiber application and the background workers.
type Server struct {
	app       *fiber.App
	cfg       config.Config
	services  routes.Services
	scheduler *kyc.Scheduler
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// cache may be nil, in which case idempotent replays are kept in store.
func New(cfg config.Config, store kv.Store, cache *redis.Client, logger *slog.Logger, accessLog io.Writer) *Server {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: ErrorHandler(logger),
	})

	deps := routes.Deps{Cfg: cfg, Store: store, Cache: cache, Logger: logger, AccessLog: accessLog}
	services := routes.NewServices(deps)
	routes.Setup(app, deps, services)

	return &Server{
		app:       app,
		cfg:       cfg,
		services:  services,
		scheduler: kyc.NewScheduler(services.KYC, logger, cfg.KYCPollInterval),
	}
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Services returns the wired domain services.
func (s *Server) Services() routes.Services {
	return s.services
}

// RunBackground starts the KYC scheduler until ctx is cancelled.
func (s *Server) RunBackground(ctx context.Context) {
	go s.scheduler.Run(ctx)
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// ErrorHandler renders every error as {"error": message}. Fiber errors keep
// their status and message; anything else is logged and reported as a 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		log := logging.FromContext(c.UserContext())
		if logger != nil && log == slog.Default() {
			log = logger
		}
		log.ErrorContext(c.UserContext(), "unhandled request error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}

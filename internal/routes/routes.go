package routes

import (
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/benki/benki/internal/auth"
	"github.com/benki/benki/internal/circle"
	"github.com/benki/benki/internal/config"
	"github.com/benki/benki/internal/identity"
	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/kyc"
	"github.com/benki/benki/internal/market"
	"github.com/benki/benki/internal/middleware"
	"github.com/benki/benki/internal/notification"
	"github.com/benki/benki/internal/portfolio"
	"github.com/benki/benki/internal/profile"
	"github.com/benki/benki/internal/progress"
	"github.com/benki/benki/internal/social"
	"github.com/benki/benki/internal/userstate"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	Store     kv.Store
	Cache     *redis.Client // optional; idempotent replays fall back to Store
	Logger    *slog.Logger
	AccessLog io.Writer // Fiber access log; nil disables it
	Notifier  notification.Notifier
	Market    market.Source
}

// Services holds the domain services behind the routes.
type Services struct {
	Identity  *identity.Service
	Auth      *auth.Service
	Profiles  *profile.Service
	KYC       *kyc.Service
	Circles   *circle.Service
	Social    *social.Service
	Market    *market.Service
	Progress  *progress.Service
	Portfolio *portfolio.Service
}

// NewServices constructs every domain service over the shared store.
func NewServices(d Deps) Services {
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	source := d.Market
	if source == nil {
		source = market.NewRandomSource(time.Now().UnixNano())
	}
	return Services{
		Identity:  identity.NewService(d.Store),
		Auth:      auth.NewService(d.Cfg, d.Store),
		Profiles:  profile.NewService(d.Store, d.Logger),
		KYC:       kyc.NewService(d.Store, notifier, d.Logger, d.Cfg.KYCVerifyDelay),
		Circles:   circle.NewService(d.Store, notifier, d.Logger),
		Social:    social.NewService(d.Store, d.Logger),
		Market:    market.NewService(d.Store, source, d.Logger, d.Cfg.MarketCacheTTL, d.Cfg.PerformanceCacheTTL),
		Progress:  progress.NewService(d.Store),
		Portfolio: portfolio.NewService(userstate.NewAccessor(d.Store), nil, d.Logger, d.Cfg.RevalueInterval),
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, s Services) {
	app.Use(recover.New())
	app.Use(middleware.RequestID(d.Logger))
	if d.AccessLog != nil {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
			Output:     d.AccessLog,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key, X-Request-ID",
		MaxAge:       600,
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group(d.Cfg.APIPrefix)
	api.Use(middleware.Session(s.Auth, d.Cfg.RequireSession))
	api.Use(middleware.RateLimit(middleware.NewRateLimiter(d.Cfg.RateLimitRPS, d.Cfg.RateLimitBurst)))
	var replays middleware.ReplayStore = middleware.NewStoreReplayStore(d.Store)
	if d.Cache != nil {
		replays = middleware.NewRedisReplayStore(d.Cache)
	}
	api.Use(middleware.Idempotency(replays, d.Cfg.IdempotencyTTL, d.Logger))

	api.Get("/health", healthHandler(d))

	RegisterAuthRoutes(api, auth.NewHandler(s.Identity, s.Auth, s.Profiles))
	RegisterUserRoutes(api, d.Cfg.RequireSession, s)
	RegisterCommunityRoutes(api, d.Cfg.RequireSession, circle.NewHandler(s.Circles), social.NewHandler(s.Social))
	RegisterMarketRoutes(api, market.NewHandler(s.Market))
	RegisterStoreRoutes(api, d.Cfg.RequireSession, kv.NewHandler(d.Store))
}

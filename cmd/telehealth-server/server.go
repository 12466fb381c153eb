package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/carelink/telehealth/internal/config"
	"github.com/carelink/telehealth/internal/domain/appointment"
	"github.com/carelink/telehealth/internal/domain/assist"
	"github.com/carelink/telehealth/internal/domain/dashboard"
	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/domain/prescription"
	"github.com/carelink/telehealth/internal/domain/workflow"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/internal/platform/cache"
	"github.com/carelink/telehealth/internal/platform/db"
	"github.com/carelink/telehealth/internal/platform/events"
	"github.com/carelink/telehealth/internal/platform/middleware"
	"github.com/carelink/telehealth/internal/platform/telemetry"
)

const (
	serviceName    = "telehealth-server"
	metricsPrefix  = "telehealth"
	eventTopicBase = "telehealth"
	cachePrefix    = "telehealth"
)

// deps are the long-lived collaborators shared by every handler.
type deps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	pool    *pgxpool.Pool
	cache   cache.Cache
	pub     events.Publisher
	metrics *telemetry.Metrics
	drafter assist.Drafter
	pingers map[string]db.Pinger
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// slotPolicy builds the booking policy from configuration.
func slotPolicy(cfg *config.Config) (appointment.SlotPolicy, error) {
	loc, err := cfg.Location()
	if err != nil {
		return appointment.SlotPolicy{}, err
	}
	return appointment.SlotPolicy{
		Location:    loc,
		SlotLength:  time.Duration(cfg.SlotMinutes) * time.Minute,
		OpenHour:    cfg.BookingOpenHour,
		CloseHour:   cfg.BookingCloseHour,
		EnforceMenu: cfg.BookingEnforceMenu,
	}, nil
}

// newCache connects to Redis when REDIS_URL is set and falls back to an
// in-process cache otherwise.
func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, availability cache is in-process")
		return cache.NewMemory(), nil
	}
	return cache.NewRedis(ctx, cfg.RedisURL, cachePrefix)
}

// newPublisher returns a Kafka publisher when brokers are configured and a
// log publisher otherwise.
func newPublisher(cfg *config.Config, logger zerolog.Logger) events.Publisher {
	brokers := events.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	return events.NewKafkaPublisher(brokers, eventTopicBase)
}

func newDrafter(cfg *config.Config) assist.Drafter {
	if cfg.GeminiAPIKey == "" {
		return nil
	}
	return assist.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	if cfg.ResolvedAuthMode() == "development" {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

// newRouter builds the echo instance with middleware and every route.
func newRouter(d deps) (*echo.Echo, error) {
	policy, err := slotPolicy(d.cfg)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(d.logger)

	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevUserHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(d.metrics.Middleware())
	e.Use(authMiddleware(d.cfg))
	if d.cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(d.cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(d.pool, d.pingers))
	e.GET("/metrics", d.metrics.Handler())

	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitConfig(d.cfg)))

	// Repositories
	doctorRepo := doctor.NewRepoPG(d.pool)
	apptRepo := appointment.NewRepoPG(d.pool)
	rxRepo := prescription.NewRepoPG(d.pool)

	// Services
	validator := appointment.NewValidator(policy)
	doctorSvc := doctor.NewService(doctorRepo, d.logger)
	apptSvc := appointment.NewService(apptRepo, doctorSvc, validator, d.logger,
		appointment.WithCache(d.cache, d.cfg.AvailabilityCacheTTL),
		appointment.WithPublisher(d.pub),
		appointment.WithMetrics(d.metrics),
	)
	rxSvc := prescription.NewService(rxRepo, doctorSvc, apptRepo, d.pub, d.logger)
	participants := workflow.NewParticipants(apptRepo, doctorSvc)
	workflowSvc := workflow.NewService(workflow.NewRepoPG(d.pool), participants, d.pub, d.logger)
	assistSvc := assist.NewService(assist.NewRepoPG(d.pool), d.drafter, participants, d.metrics, d.logger)
	dashboardSvc := dashboard.NewService(dashboard.NewRepoPG(d.pool), apptRepo, rxRepo, doctorSvc, validator, d.logger)

	// Routes
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(rxSvc).RegisterRoutes(apiV1)
	workflow.NewHandler(workflowSvc).RegisterRoutes(apiV1)
	assist.NewHandler(assistSvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(apiV1)

	return e, nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.TracingConfig{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	c, err := newCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	pub := newPublisher(cfg, logger)
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	drafter := newDrafter(cfg)
	if drafter == nil {
		logger.Warn().Msg("GEMINI_API_KEY not set, assist summaries use the fallback template")
	}

	e, err := newRouter(deps{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		cache:   c,
		pub:     pub,
		metrics: telemetry.NewMetrics(metricsPrefix, reg),
		drafter: drafter,
		pingers: map[string]db.Pinger{"cache": c},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(e, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracer shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

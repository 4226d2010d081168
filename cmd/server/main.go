package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livetranslate/internal/core/ports"
	"livetranslate/internal/core/services"
	httphandlers "livetranslate/internal/handlers/http"
	"livetranslate/internal/infrastructure/events"
	"livetranslate/internal/infrastructure/middleware"
	"livetranslate/internal/infrastructure/monitoring"
	repositories "livetranslate/internal/infrastructure/repositories"
	"livetranslate/pkg/config"
	"livetranslate/pkg/logger"
	"livetranslate/pkg/retry"
	"livetranslate/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", envOr("LIVETRANSLATE_CONFIG", "configs/config.yaml"), "path to the YAML config file")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// the logger is not up yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	userRepo := repoFactory.CreateUserRepository()
	sessionRepo := repoFactory.CreateSessionRepository()
	participantRepo := repoFactory.CreateParticipantRepository()

	var (
		sessionMetrics ports.MetricsRecorder
		connMetrics    events.ConnectionMetrics
		httpMetrics    middleware.HTTPMetrics
		gatherer       prometheus.Gatherer
	)
	if cfg.Monitoring.PrometheusEnabled {
		collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
		sessionMetrics, connMetrics, httpMetrics = collector, collector, collector
		gatherer = prometheus.DefaultGatherer
	}

	hub := events.NewHub(events.HubConfig{
		PingInterval:    cfg.Events.PingInterval,
		PongTimeout:     cfg.Events.PongTimeout,
		WriteTimeout:    cfg.Events.WriteTimeout,
		SendBuffer:      cfg.Events.SendBuffer,
		MaxMessageBytes: cfg.Events.MaxMessageBytes,
	}, connMetrics, log)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	var publisher ports.EventPublisher = hub
	eventBus := false
	if client := repoFactory.RedisClient(); cfg.Redis.EventBus && client != nil {
		bus := events.NewRedisBus(client, uuid.NewString(), hub, log)
		publisher, eventBus = bus, true
		go func() {
			if err := bus.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("event bus stopped", "error", err)
			}
		}()
	}

	resetRetry := retry.DefaultConfig()
	resetRetry.MaxAttempts = cfg.Retry.MaxAttempts
	resetRetry.InitialDelay = cfg.Retry.InitialDelay
	resetRetry.MaxDelay = cfg.Retry.MaxDelay

	roleService := services.NewRoleService(userRepo, sessionMetrics, log)
	var sessionService ports.SessionService = services.NewSessionService(
		sessionRepo,
		participantRepo,
		userRepo,
		roleService,
		publisher,
		sessionMetrics,
		resetRetry,
		log,
	)
	if cfg.Cache.Enabled {
		cached := services.NewCachedSessionService(sessionService, cfg.Cache.TTL)
		defer cached.Stop()
		sessionService = cached
	}
	authService := services.NewAuthService(services.AuthConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, userRepo, sessionRepo, participantRepo, roleService, log)

	checker := monitoring.NewHealthChecker()
	checker.AddStorageCheck(repoFactory.Backend(), repoFactory.HealthCheck, 2*time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		checker.AddRedisCheck(client, 2*time.Second)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)),
		cors.New(corsConfig(cfg.CORS.AllowedOrigins)),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.TracingMiddleware(),
	)
	if httpMetrics != nil {
		router.Use(middleware.MetricsMiddleware(httpMetrics))
	}
	router.Use(middleware.ErrorHandlerMiddleware(log))

	httphandlers.NewAuthHandler(authService).SetupRoutes(router)
	httphandlers.NewSessionHandler(sessionService, authService).SetupRoutes(router)
	httphandlers.NewEventsHandler(authService, sessionService, hub, cfg.Events.AllowedOrigins, log).SetupRoutes(router)
	httphandlers.NewHealthHandler(checker, gatherer).SetupRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting livetranslate server",
			"address", cfg.Server.Address,
			"storage", repoFactory.Backend(),
			"event_bus", eventBus,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	stopRun()
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("livetranslate server stopped")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

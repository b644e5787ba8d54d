package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"limit-offer-api/internal/cache"
	"limit-offer-api/internal/config"
	"limit-offer-api/internal/database"
	"limit-offer-api/internal/events"
	"limit-offer-api/internal/features"
	"limit-offer-api/internal/handler"
	"limit-offer-api/internal/logging"
	"limit-offer-api/internal/metrics"
	"limit-offer-api/internal/middleware"
	"limit-offer-api/internal/service"
	"limit-offer-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (env vars take precedence)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logging.Level)
	defer logger.Sync()

	// Tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			logger.Warn("failed to shut down tracer", zap.Error(err))
		}
	}()

	// Database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Feature flags
	flags := features.NewManager()
	defer flags.Shutdown()
	flags.Register(features.FeatureCacheEnabled, cfg.Features.CacheEnabled, "account and offer read cache")
	flags.Register(features.FeatureEventHooksEnabled, cfg.Features.EventHooksEnabled, "async domain event hooks")

	// Cache: redis when configured, in-process otherwise
	var store cache.Cache
	if flags.IsEnabled(features.FeatureCacheEnabled) {
		if cfg.Cache.RedisAddr != "" {
			redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
			if err != nil {
				logger.Fatal("failed to connect to redis", zap.Error(err))
			}
			defer redisCache.Close()
			store = redisCache
			logger.Info("using redis cache", zap.String("addr", cfg.Cache.RedisAddr))
		} else {
			store = cache.NewInMemoryCache()
			logger.Info("using in-memory cache")
		}
	}

	// Events with an audit-log subscriber
	eventManager := events.NewManager(flags.IsEnabled(features.FeatureEventHooksEnabled))
	defer eventManager.Shutdown()
	auditLog := func(ctx context.Context, event events.Event) error {
		logger.Info("domain event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Any("data", event.Data),
		)
		return nil
	}
	eventManager.Subscribe(events.EventAccountCreated, auditLog)
	eventManager.Subscribe(events.EventOfferCreated, auditLog)
	eventManager.Subscribe(events.EventOfferRedeemed, auditLog)

	m := metrics.NewMetrics()

	svc := service.NewServiceWithOptions(db, service.Options{
		Cache:    store,
		CacheTTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Events:   eventManager,
		Metrics:  m,
	})

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		Metrics:     m,
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())
	r.Use(middleware.MetricsMiddleware(m))

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccount)
		r.Get("/{account_id}", h.GetAccount)
		r.Get("/{account_id}/offers", h.ListActiveOffers)
	})

	r.Route("/offers", func(r chi.Router) {
		r.Post("/", h.CreateOffer)
		r.Post("/{offer_id}/redeem", h.RedeemOffer)
	})

	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	r.Get("/metrics/summary", h.MetricsSummary)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	logger.Info("starting server",
		zap.String("addr", addr),
		zap.String("database", cfg.Database.Path),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

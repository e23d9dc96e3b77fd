package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jbytow/coffeetica/pkg/database"
	"github.com/jbytow/coffeetica/pkg/health"
	pkgkafka "github.com/jbytow/coffeetica/pkg/kafka"
	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/pkg/tracing"
	"github.com/jbytow/coffeetica/services/review/internal/auth"
	"github.com/jbytow/coffeetica/services/review/internal/config"
	"github.com/jbytow/coffeetica/services/review/internal/event"
	handler "github.com/jbytow/coffeetica/services/review/internal/handler/http"
	"github.com/jbytow/coffeetica/services/review/internal/repository"
	"github.com/jbytow/coffeetica/services/review/internal/repository/memory"
	"github.com/jbytow/coffeetica/services/review/internal/repository/postgres"
	rediscache "github.com/jbytow/coffeetica/services/review/internal/repository/redis"
	"github.com/jbytow/coffeetica/services/review/internal/service"
	"github.com/jbytow/coffeetica/services/review/migrations"
)

const serviceName = "review-service"

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	jwt            *auth.JWTManager
	handler        http.Handler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	reviews, coffees, err := a.initStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	var cache repository.DetailsCache
	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:        cfg.RedisHost,
			Port:        cfg.RedisPort,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 5 * time.Second,
		})
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		coffeeCache := rediscache.NewCoffeeCache(client, cfg.CoffeeCacheTTL)
		cache = coffeeCache
		healthHandler.RegisterNonCritical("redis", coffeeCache.Ping)
		logger.Info("coffee details cache enabled", slog.String("addr", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)))
	}

	var events service.EventPublisher = event.Nop{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.jwt = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry)
	a.logDevToken()

	reviewService := service.NewReviewService(reviews, coffees, cache, events, logger)
	coffeeService := service.NewCoffeeService(coffees, reviews, cache, logger)

	a.handler = handler.NewRouter(reviewService, coffeeService, a.jwt.Validator(), healthHandler, handler.RouterConfig{
		ServiceName:        serviceName,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
		FeedLimits:         pagination.Limits{DefaultSize: cfg.FeedDefaultSize, MaxSize: cfg.FeedMaxSize},
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initStore connects the configured review store.
func (a *App) initStore(ctx context.Context, healthHandler *health.Handler) (repository.ReviewRepository, repository.CoffeeRepository, error) {
	if a.cfg.Store == config.StoreMemory {
		coffees := memory.NewCoffeeRepository(memory.SeedCoffees()...)
		a.logger.Warn("using in-memory review store; data is lost on restart")
		return memory.NewReviewRepository(coffees), coffees, nil
	}

	pgCfg := database.PostgresConfig{
		Host:            a.cfg.PostgresHost,
		Port:            a.cfg.PostgresPort,
		User:            a.cfg.PostgresUser,
		Password:        a.cfg.PostgresPass,
		DBName:          a.cfg.PostgresDB,
		SSLMode:         a.cfg.PostgresSSL,
		MaxConns:        a.cfg.DBMaxConns,
		MinConns:        a.cfg.DBMinConns,
		MaxConnLifetime: time.Duration(a.cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(a.cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.PostgresHost),
		slog.Int("port", a.cfg.PostgresPort),
		slog.String("database", a.cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(a.cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	healthHandler.RegisterCritical("postgres", pool.Ping)
	return postgres.NewReviewRepository(pool), postgres.NewCoffeeRepository(pool), nil
}

// logDevToken prints a bearer token for REVIEW_DEV_TOKEN_USER in development.
func (a *App) logDevToken() {
	if a.cfg.DevTokenUser == "" || a.cfg.Environment != "development" {
		return
	}
	u, err := config.ParseDevUser(a.cfg.DevTokenUser)
	if err != nil {
		a.logger.Warn("invalid dev token user", slog.String("error", err.Error()))
		return
	}
	token, err := a.jwt.GenerateAccessToken(u.ID, u.Username, u.Roles)
	if err != nil {
		a.logger.Warn("dev token not issued", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("development access token",
		slog.Int64("user_id", u.ID),
		slog.String("username", u.Username),
		slog.String("token", token),
	)
}

// Handler returns the HTTP handler serving the review API.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, Redis, PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources flushes the tracer and closes every backing client that was
// opened. It is safe on a partially built App.
func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}

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
	goredis "github.com/redis/go-redis/v9"

	"github.com/utafrali/bulkpromo/internal/backend"
	"github.com/utafrali/bulkpromo/internal/config"
	"github.com/utafrali/bulkpromo/internal/event"
	"github.com/utafrali/bulkpromo/internal/generator"
	handler "github.com/utafrali/bulkpromo/internal/handler/http"
	"github.com/utafrali/bulkpromo/internal/orchestrator"
	"github.com/utafrali/bulkpromo/internal/repository/postgres"
	redisrepo "github.com/utafrali/bulkpromo/internal/repository/redis"
	"github.com/utafrali/bulkpromo/internal/service"
	"github.com/utafrali/bulkpromo/internal/validation"
	"github.com/utafrali/bulkpromo/pkg/database"
	"github.com/utafrali/bulkpromo/pkg/health"
	"github.com/utafrali/bulkpromo/pkg/httpclient"
	pkgkafka "github.com/utafrali/bulkpromo/pkg/kafka"
	"github.com/utafrali/bulkpromo/pkg/tracing"
)

const serviceName = "bulkpromo-service"

// App wires together all dependencies and runs the bulk code service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	service        *service.BulkCodeService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// In local commit mode batches go to PostgreSQL; in remote mode they go to
// the discounts backend.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources(context.Background())
		}
	}()

	// Tracing.
	tracingCfg := tracing.DefaultConfig(serviceName)
	tracingCfg.Environment = cfg.Environment
	tracingCfg.Enabled = cfg.OTELEnabled
	tracingCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracingCfg.SampleRate = cfg.OTELSampleRate
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthHandler := health.NewHandler()

	// Code generation pipeline.
	synth, err := generator.NewSynthesizer(cfg.CodeCharset, cfg.CodeBodyLength, generator.NewRandomSource())
	if err != nil {
		return nil, fmt.Errorf("build code synthesizer: %w", err)
	}
	genOpts := []generator.Option{generator.WithPercentPrecision(cfg.PercentPrecision)}
	validator := validation.New(validation.Config{MaxCount: cfg.MaxCodeCount, BodyLength: cfg.CodeBodyLength})

	// Kafka producer.
	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	eventProducer := event.NewProducer(a.producer, logger)
	healthHandler.Register("kafka", a.producer.Ping)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	var (
		committer orchestrator.Committer
		svcOpts   []service.Option
	)

	if cfg.Remote() {
		client := httpclient.DefaultConfig()
		client.Timeout = cfg.BackendTimeout
		cbCfg := httpclient.CircuitBreakerConfig{
			Name:         backend.ServiceName,
			MaxRequests:  cfg.CBMaxRequests,
			Interval:     time.Duration(cfg.CBInterval) * time.Second,
			Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
			FailureRatio: cfg.CBFailureRatio,
			MinRequests:  cfg.CBMinRequests,
		}
		doer := httpclient.NewCircuitBreakerClient(httpclient.New(client), cbCfg, logger)
		backendClient := backend.NewClient(doer, cfg.BackendBaseURL, logger)

		committer = backendClient
		svcOpts = append(svcOpts, service.WithRemote(backendClient, backendClient))
		logger.Info("committing batches to discounts backend", slog.String("base_url", cfg.BackendBaseURL))
	} else {
		pgCfg := database.PostgresConfig{
			Host:            cfg.PostgresHost,
			Port:            cfg.PostgresPort,
			User:            cfg.PostgresUser,
			Password:        cfg.PostgresPass,
			DBName:          cfg.PostgresDB,
			SSLMode:         cfg.PostgresSSL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
			MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
		}
		a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if err = database.RunMigrations(ctx, a.pool, postgres.Migrations(), logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, serviceName); err != nil {
			logger.Warn("register pool metrics", slog.String("error", err.Error()))
		}

		repo := postgres.NewBatchRepository(a.pool)
		genOpts = append(genOpts, generator.WithExistenceChecker(repo))
		committer = repo
		svcOpts = append(svcOpts, service.WithBatchReader(repo))
		healthHandler.Register("postgres", func(ctx context.Context) error {
			return a.pool.Ping(ctx)
		})
	}

	// Idempotency cache.
	if cfg.IdempotencyEnabled {
		a.redis, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store := redisrepo.NewIdempotencyStore(a.redis, cfg.IdempotencyTTL, cfg.IdempotencyPendingTTL)
		svcOpts = append(svcOpts, service.WithIdempotencyStore(store))
		healthHandler.Register("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
		logger.Info("connected to Redis", slog.String("addr", fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)))
	}

	// Build the dependency graph.
	a.service = service.NewBulkCodeService(
		validator,
		generator.New(synth, genOpts...),
		committer,
		eventProducer,
		service.Config{Debounce: cfg.ValidationDebounce, PreviewSampleCap: cfg.PreviewSampleCap},
		logger,
		svcOpts...,
	)

	// HTTP router.
	router := handler.NewRouter(a.service, healthHandler, handler.RouterConfig{
		ServiceName:    serviceName,
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and the session sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.service.RunSessionSweeper(sweepCtx, a.cfg.SessionSweepInterval, a.cfg.SessionIdleTimeout)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("commit_mode", a.cfg.CommitMode),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		stopSweeper()
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.service.CloseSessions()
	a.closeResources(shutdownCtx)

	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) closeResources(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}

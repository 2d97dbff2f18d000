package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/regrant/regrant-auth/adapters/events"
	"github.com/regrant/regrant-auth/adapters/store"
	"github.com/regrant/regrant-auth/adapters/tokenizer"
	"github.com/regrant/regrant-auth/adapters/users"
	"github.com/regrant/regrant-auth/config"
	"github.com/regrant/regrant-auth/internal/dbx"
	"github.com/regrant/regrant-auth/internal/eth"
	"github.com/regrant/regrant-auth/internal/siwe"
	"github.com/regrant/regrant-auth/logging"
	"github.com/regrant/regrant-auth/metrics"
	"github.com/regrant/regrant-auth/ports"
	"github.com/regrant/regrant-auth/service"
	transport "github.com/regrant/regrant-auth/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "regrant-auth: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	for _, w := range cfg.Warnings() {
		logger.Warn(ctx, w)
	}

	encoding, err := store.ParseEncoding(cfg.NonceEncoding)
	if err != nil {
		return err
	}

	// Postgres backs users whenever it is configured
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = dbx.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := dbx.RunMigrations(ctx, db); err != nil {
			return err
		}
		logger.Info(ctx, "database migrations applied")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	var nonces ports.NonceStore
	switch cfg.NonceBackend {
	case config.BackendRedis:
		nonces = store.NewRedisStore(redisClient, cfg.NonceTTL, store.WithEncoding(encoding))
	case config.BackendPostgres:
		pg := store.NewPostgresStore(db, cfg.NonceTTL, store.WithEncoding(encoding))
		go store.RunJanitor(ctx, pg, cfg.NonceTTL, logger)
		nonces = pg
	default:
		mem := store.NewMemoryStore(cfg.NonceTTL, store.WithEncoding(encoding))
		go store.RunJanitor(ctx, mem, cfg.NonceTTL, logger)
		nonces = mem
	}

	var userRepo ports.UserRepository
	if db != nil {
		userRepo = users.NewPostgresRepository(db)
	} else {
		logger.Warn(ctx, "DATABASE_URL not set, users are kept in memory")
		userRepo = users.NewMemoryRepository()
	}

	verifierOpts := []siwe.VerifierOption{siwe.WithDomain(cfg.SiweDomain)}
	if cfg.EthRPCURL != "" {
		client, err := ethclient.DialContext(ctx, cfg.EthRPCURL)
		if err != nil {
			return fmt.Errorf("failed to dial eth rpc: %w", err)
		}
		defer client.Close()

		contracts, err := eth.NewContractVerifier(client, cfg.EthRPCTimeout)
		if err != nil {
			return err
		}
		verifierOpts = append(verifierOpts, siwe.WithContractWallets(contracts))
	}

	publisher, err := newPublisher(redisClient, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	authService := service.NewAuthService(
		nonces,
		siwe.NewVerifier(verifierOpts...),
		userRepo,
		tokenizer.NewJWTTokenizer([]byte(cfg.SecretKey)),
		service.WithEventPublisher(events.NewWatermillPublisher(publisher)),
		service.WithMetrics(collector),
		service.WithLogger(logger),
		service.WithAccessTTL(cfg.AccessTokenTTL),
	)

	limiter := transport.NewRateLimiter(transport.PerMinute(cfg.RateLimitAuth))
	defer limiter.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := transport.SetupRouter(authService, transport.RouterConfig{
		APIPrefix:   cfg.APIPrefix,
		Logger:      logger,
		Metrics:     collector,
		Gatherer:    reg,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", cfg.HTTPAddr, "nonce_backend", cfg.NonceBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// newPublisher streams login events to redis when it is configured and
// falls back to an in-process channel otherwise
func newPublisher(client *redis.Client, logger *logging.SlogLogger) (message.Publisher, error) {
	wmLogger := watermill.NewSlogLogger(logger.Slog())

	if client == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		wmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}
	return publisher, nil
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dirtsid3r/cellflip/internal/adapters/api"
	"github.com/dirtsid3r/cellflip/internal/adapters/cache"
	"github.com/dirtsid3r/cellflip/internal/adapters/database"
	"github.com/dirtsid3r/cellflip/internal/adapters/scheduler"
	"github.com/dirtsid3r/cellflip/internal/adapters/storage"
	"github.com/dirtsid3r/cellflip/internal/config"
	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/internal/domain/vendorstats"
	"github.com/dirtsid3r/cellflip/internal/metrics"
	"github.com/dirtsid3r/cellflip/migrations"
	"github.com/dirtsid3r/cellflip/pkg/auth"
	pkgdb "github.com/dirtsid3r/cellflip/pkg/database"
	pkgevents "github.com/dirtsid3r/cellflip/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Signing keys
	privatePEM, publicPEM, err := cfg.ReadKeys()
	if err != nil {
		logger.Error("Failed to load signing keys", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSigner(privatePEM, publicPEM, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("Failed to create signer", "error", err)
		os.Exit(1)
	}

	// 2. Postgres and migrations
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	if err := migrate(ctx, cfg.DBURL); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 3. RabbitMQ publisher for the outbox relay
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	logger.Info("RabbitMQ Connected")

	// 4. Redis: OTP cooldowns and the deadline task queue
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Error("Invalid Redis URL for task queue", "error", err)
		os.Exit(1)
	}
	taskClient := asynq.NewClient(redisOpt)
	defer taskClient.Close()
	logger.Info("Redis Connected")

	// 5. Object storage
	store, err := storage.NewS3Storage(ctx, cfg.StorageConfig())
	if err != nil {
		logger.Error("Failed to configure object storage", "error", err)
		os.Exit(1)
	}

	// 6. Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	userRepo := database.NewPostgresUserRepository(pool)
	agentRepo := database.NewPostgresAgentRepository(pool)
	listingRepo := database.NewPostgresListingRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	transactionRepo := database.NewPostgresTransactionRepository(pool)
	gateRepo := database.NewPostgresGateRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	collector := metrics.New(registry)
	metrics.RegisterOutboxBacklog(registry, outboxRepo.CountPending)

	// 7. Services (Domain Layer)
	otpService := otp.NewService(txManager, gateRepo, outboxRepo, cache.NewCooldownStore(rdb),
		otp.NewArgon2Hasher(), collector, cfg.OTPConfig())
	userService := users.NewService(userRepo, agentRepo, outboxRepo, otpService, signer, txManager)
	agentService := agents.NewService(agentRepo)
	listingService := listings.NewService(txManager, listingRepo, outboxRepo,
		scheduler.NewClient(taskClient, logger), store, cfg.ListingConfig())

	transactionService, err := transactions.NewService(transactions.Deps{
		TxManager:   txManager,
		Repo:        transactionRepo,
		Settlements: transactionRepo,
		Listings:    listingRepo,
		Agents:      agentRepo,
		Directory:   userService,
		Gates:       otpService,
		Outbox:      outboxRepo,
		Evidence:    store,
		Metrics:     collector,
	}, cfg.Rates())
	if err != nil {
		logger.Error("Failed to create transaction service", "error", err)
		os.Exit(1)
	}
	bidService := bids.NewService(txManager, bidRepo, listingRepo, transactionService, outboxRepo, collector)
	// Reads only; the worker's consumer writes the projection.
	statsService := vendorstats.NewService(database.NewPostgresVendorStatsRepository(pool),
		database.NewPostgresProcessedEventRepository(database.ConsumerVendorStats), txManager)

	if cfg.Auth.AdminPhone != "" {
		if _, err := userService.EnsureAdmin(ctx, cfg.Auth.AdminPhone, cfg.Auth.AdminName); err != nil {
			logger.Error("Failed to bootstrap admin", "error", err)
			os.Exit(1)
		}
	}

	// 8. Outbox relay
	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.Outbox.BatchSize,
		cfg.Outbox.Interval,
		pkgevents.DefaultExchange,
		logger,
	)
	go func() {
		logger.Info("Starting Outbox Relay...")
		if err := relay.Run(ctx); err != nil {
			logger.Error("Outbox Relay stopped", "error", err)
		}
	}()

	// 9. API (ConnectRPC)
	loginRate, err := cfg.LoginRate()
	if err != nil {
		logger.Error("Invalid login rate", "error", err)
		os.Exit(1)
	}
	mux := api.NewRouter(api.Services{
		Users:        userService,
		Listings:     listingService,
		Bids:         bidService,
		Stats:        statsService,
		Transactions: transactionService,
		Agents:       agentService,
	}, connect.WithInterceptors(
		api.NewRateLimitInterceptor(loginRate.Limit, loginRate.Period,
			api.ProcedureRegister, api.ProcedureRequestLoginCode, api.ProcedureVerifyLoginCode),
		auth.NewAuthInterceptor(signer, api.Policy()),
	))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	logger.Info("Starting Cellflip API", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Cellflip API stopped")
}

func migrate(ctx context.Context, dbURL string) error {
	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.Up(ctx, db)
}

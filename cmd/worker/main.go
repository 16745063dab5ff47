package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/dirtsid3r/cellflip/internal/adapters/cache"
	"github.com/dirtsid3r/cellflip/internal/adapters/database"
	"github.com/dirtsid3r/cellflip/internal/adapters/events"
	"github.com/dirtsid3r/cellflip/internal/adapters/scheduler"
	"github.com/dirtsid3r/cellflip/internal/adapters/storage"
	"github.com/dirtsid3r/cellflip/internal/adapters/whatsapp"
	"github.com/dirtsid3r/cellflip/internal/config"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/notifications"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/internal/domain/vendorstats"
	"github.com/dirtsid3r/cellflip/internal/metrics"
	pkgdb "github.com/dirtsid3r/cellflip/pkg/database"
)

// The worker runs the event consumers, the bidding deadline task server
// and the periodic sweep scheduler until SIGINT or SIGTERM.
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

	// 1. Postgres
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
	logger.Info("Postgres Connected")

	// 2. RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	// 3. Redis
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
	logger.Info("Redis Connected")

	store, err := storage.NewS3Storage(ctx, cfg.StorageConfig())
	if err != nil {
		logger.Error("Failed to configure object storage", "error", err)
		os.Exit(1)
	}

	// 4. Domain wiring
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	userRepo := database.NewPostgresUserRepository(pool)
	agentRepo := database.NewPostgresAgentRepository(pool)
	listingRepo := database.NewPostgresListingRepository(pool)
	transactionRepo := database.NewPostgresTransactionRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)

	otpService := otp.NewService(txManager, database.NewPostgresGateRepository(pool), outboxRepo,
		cache.NewCooldownStore(rdb), otp.NewArgon2Hasher(), collector, cfg.OTPConfig())
	// The worker never logs anyone in, so it has no token issuer.
	directory := users.NewService(userRepo, agentRepo, outboxRepo, otpService, nil, txManager)

	transactionService, err := transactions.NewService(transactions.Deps{
		TxManager:   txManager,
		Repo:        transactionRepo,
		Settlements: transactionRepo,
		Listings:    listingRepo,
		Agents:      agentRepo,
		Directory:   directory,
		Gates:       otpService,
		Outbox:      outboxRepo,
		Evidence:    store,
		Metrics:     collector,
	}, cfg.Rates())
	if err != nil {
		logger.Error("Failed to create transaction service", "error", err)
		os.Exit(1)
	}
	bidService := bids.NewService(txManager, database.NewPostgresBidRepository(pool), listingRepo,
		transactionService, outboxRepo, collector)

	var sender notifications.Sender = whatsapp.NewLogSender(logger)
	if cfg.WhatsApp.Token != "" {
		sender = whatsapp.NewCloudSender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.Token)
	}
	notifier := notifications.NewService(txManager, database.NewPostgresProcessedEventRepository(database.ConsumerNotifications), directory, sender, logger)
	notificationConsumer := events.NewNotificationConsumer(amqpConn, notifier, notifications.ErrPermanent, logger)

	statsService := vendorstats.NewService(database.NewPostgresVendorStatsRepository(pool),
		database.NewPostgresProcessedEventRepository(database.ConsumerVendorStats), txManager)
	statsConsumer := events.NewVendorStatsConsumer(amqpConn, statsService, vendorstats.ErrUnprocessable, logger)

	// 5. Task server and sweep scheduler
	taskServer := scheduler.NewServer(redisOpt, cfg.Bidding.Concurrency, logger)
	taskMux := asynq.NewServeMux()
	scheduler.NewProcessor(bidService, cfg.Bidding.SweepSize, logger).Register(taskMux)

	sweeper, err := scheduler.NewSweepScheduler(redisOpt, cfg.Bidding.SweepSpec)
	if err != nil {
		logger.Error("Failed to create sweep scheduler", "error", err)
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting notification consumer...")
		return notificationConsumer.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting vendor stats consumer...")
		return statsConsumer.Run(gctx)
	})

	g.Go(func() error {
		if err := taskServer.Start(taskMux); err != nil {
			return err
		}
		logger.Info("Task server started", "concurrency", cfg.Bidding.Concurrency)
		<-gctx.Done()
		taskServer.Shutdown()
		return nil
	})

	g.Go(func() error {
		if err := sweeper.Start(); err != nil {
			return err
		}
		logger.Info("Sweep scheduler started", "spec", cfg.Bidding.SweepSpec)
		<-gctx.Done()
		sweeper.Shutdown()
		return nil
	})

	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

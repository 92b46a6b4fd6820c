package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Harrison-Muraya/L-SalesPro/internal/controllers"
	"github.com/Harrison-Muraya/L-SalesPro/internal/credit"
	"github.com/Harrison-Muraya/L-SalesPro/internal/database"
	"github.com/Harrison-Muraya/L-SalesPro/internal/inventory"
	"github.com/Harrison-Muraya/L-SalesPro/internal/middleware"
	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	"github.com/Harrison-Muraya/L-SalesPro/internal/notify"
	"github.com/Harrison-Muraya/L-SalesPro/internal/orders"
	"github.com/Harrison-Muraya/L-SalesPro/internal/repository"
	"github.com/Harrison-Muraya/L-SalesPro/internal/routes"
	awspkg "github.com/Harrison-Muraya/L-SalesPro/pkg/aws"
	"github.com/Harrison-Muraya/L-SalesPro/pkg/logger"
	"github.com/Harrison-Muraya/L-SalesPro/pkg/tracing"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "backoffice:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(cfg.Env, nil)
	if err != nil {
		return err
	}

	var awsCfg sdkaws.Config
	if cfg.AWSUseSecrets || cfg.CloudWatchLogs || cfg.MetricsEnabled || cfg.notifyEnabled("sns") || cfg.notifyEnabled("sqs") {
		if awsCfg, err = awspkg.LoadAWSConfig(ctx, log); err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
	}

	if cfg.CloudWatchLogs {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchGroup, cfg.ServiceName)
		if err != nil {
			log.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(err))
		} else if teed, err := logger.New(cfg.Env, cw); err == nil {
			log = teed
		}
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	if cfg.AWSUseSecrets {
		if err := cfg.applyDBSecret(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			log.Warn("DB credentials secret not applied", zap.String("secret", dbSecretName), zap.Error(err))
		}
	}
	if err := cfg.validateStore(); err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	var metrics awspkg.Metrics = awspkg.NopMetrics{}
	if cfg.MetricsEnabled {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, true)
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SeedDemo {
		if err := database.SeedDemo(ctx, store, log); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, awsCfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	var cache inventory.StockCache
	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("stock cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cache = inventory.NewRedisStockCache(client, cfg.StockCacheTTL, log)
		}
	}

	stock := inventory.NewStockService(store, cache, notifier, metrics, log)
	reservations := inventory.NewReservationService(store, stock, cfg.ReservationTTL, metrics, log)
	transfers := inventory.NewTransferService(store, stock, metrics, log)
	orderService := orders.NewOrderService(store, reservations, stock,
		credit.NewController(cfg.CurrencySymbol, log), notifier, metrics,
		orders.Config{
			OrderPrefix:          cfg.OrderPrefix,
			CurrencySymbol:       cfg.CurrencySymbol,
			CreditWarningPercent: cfg.CreditWarningPercent,
		}, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.Metrics(metrics, cfg.ServiceName),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, 5*time.Minute)),
	)
	routes.RegisterRoutes(r,
		controllers.NewOrderController(orderService),
		controllers.NewInventoryController(stock, reservations, transfers))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Backoffice service starting", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down backoffice service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		runSweeper(gctx, reservations, cfg.SweepInterval, log)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Backoffice service stopped gracefully")
	return nil
}

func openStore(ctx context.Context, cfg *Config, log *zap.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("Using the in-memory store, data is lost on restart")
		return repository.NewMemoryStore(cfg.LockTimeout), func() {}, nil
	}

	db, err := database.ConnectPostgres(ctx, cfg.Postgres, log, models.All()...)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(db); err != nil {
			log.Warn("closing database failed", zap.Error(err))
		}
	}
	return repository.NewGormStore(db, cfg.LockTimeout), closeDB, nil
}

// buildNotifier fans out to every configured backend.
func buildNotifier(ctx context.Context, cfg *Config, awsCfg sdkaws.Config, log *zap.Logger) (notify.Notifier, func(), error) {
	var (
		fanout  notify.Multi
		closers []func() error
	)
	for _, backend := range cfg.NotifyBackends {
		switch backend {
		case "log":
			fanout = append(fanout, notify.NewLogNotifier(log))
		case "sns":
			if cfg.SNSTopicArn == "" {
				return nil, nil, errors.New("NOTIFY_BACKEND sns needs BACKOFFICE_SNS_TOPIC_ARN")
			}
			fanout = append(fanout, notify.NewSNSNotifier(awspkg.NewSNSClient(awsCfg), cfg.SNSTopicArn))
		case "kafka":
			if len(cfg.KafkaBrokers) == 0 {
				return nil, nil, errors.New("NOTIFY_BACKEND kafka needs KAFKA_BROKERS")
			}
			kn := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
			fanout = append(fanout, kn)
			closers = append(closers, kn.Close)
		case "sqs":
			if cfg.SQSQueue == "" {
				return nil, nil, errors.New("NOTIFY_BACKEND sqs needs BACKOFFICE_SQS_QUEUE")
			}
			client := awspkg.NewSQSClient(awsCfg, "")
			if err := client.ResolveQueueURL(ctx, cfg.SQSQueue); err != nil {
				return nil, nil, err
			}
			fanout = append(fanout, notify.NewSQSNotifier(client))
		}
	}
	log.Info("Notifiers configured", zap.Strings("backends", cfg.NotifyBackends))

	return fanout, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("closing notifier failed", zap.Error(err))
			}
		}
	}, nil
}

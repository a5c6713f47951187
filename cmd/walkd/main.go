package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/littlewalk/go-walk"
	"github.com/littlewalk/go-walk/api"
	"github.com/littlewalk/go-walk/common/aws/config"
	"github.com/littlewalk/go-walk/common/aws/queue"
	"github.com/littlewalk/go-walk/common/aws/storage"
	"github.com/littlewalk/go-walk/common/backend"
	"github.com/littlewalk/go-walk/common/loggers"
	"github.com/littlewalk/go-walk/common/metrics"
	"github.com/littlewalk/go-walk/common/notifs"
	"github.com/littlewalk/go-walk/models"
	"github.com/littlewalk/go-walk/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("walkd: no .env file loaded: %v", err)
	}
	logger := loggers.NewLogger()
	defer logger.Sync()

	serverCtx, serverCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer serverCancel()

	metricService, err := metrics.NewOtlMetricService(serverCtx, logger)
	if err != nil {
		logger.Fatalf("walkd: failed to create metric service: %v", err)
	}

	eventsEnabled := envBool(models.Env_EventQueueEnabled)
	archiveEnabled := envBool(models.Env_TrackArchiveEnabled)
	var awsCfg *aws.Config
	if eventsEnabled || archiveEnabled || backend.StoreFromEnv() == walk.WalkStore_DynamoDb {
		cfg, err := config.AwsConfig(serverCtx)
		if err != nil {
			logger.Fatalf("walkd: error creating aws cfg: %v", err)
		}
		awsCfg = &cfg
	}

	b, err := backend.New(serverCtx, logger, awsCfg, metricService, false)
	if err != nil {
		logger.Fatalf("walkd: failed to connect to %s store: %v", backend.StoreFromEnv(), err)
	}
	defer b.Close()
	logger.Infof("walkd: using %s store", b.Store)

	var notifier models.Notifier
	if discordHandler, err := notifs.NewDiscordHandler(logger); err != nil {
		logger.Fatalf("walkd: failed to create discord handler: %v", err)
	} else if discordHandler != nil {
		notifier = discordHandler
	}

	var publisher models.QueuePublisher
	if eventsEnabled {
		eventQueue, err := queue.NewQueue(serverCtx, metricService, logger, sqs.NewFromConfig(*awsCfg), queue.Opts{QueueType: models.QueueType_Events})
		if err != nil {
			logger.Fatalf("walkd: failed to create event queue: %v", err)
		}
		publisher = eventQueue
	}

	var archive models.KeyValueRepository
	if archiveEnabled {
		archive = storage.NewS3Store(logger, s3.NewFromConfig(*awsCfg))
	}

	coordinator := services.NewCoordinator(b.WalkRequests, b.Dogs, publisher, notifier, metricService, logger)
	router := api.NewRouter(api.Options{
		Coordinator:     coordinator,
		Listing:         services.NewListingService(b.WalkRequests, metricService, logger),
		Catalog:         services.NewCatalogService(b.Breeds, b.Dogs, logger),
		Tracking:        services.NewTrackingService(b.WalkRequests, b.Locations, archive, metricService, logger),
		MetricService:   metricService,
		Logger:          logger,
		LocationLimiter: api.NewWalkerLimiterFromEnv(),
		JwtSecret:       os.Getenv(walk.Env_JwtSecret),
	})

	address := walk.DefaultServerAddress
	if configAddress, found := os.LookupEnv(walk.Env_ServerAddress); found && len(configAddress) > 0 {
		address = configAddress
	}
	server := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("walkd: listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("walkd: server failed: %v", err)
		}
	}()

	<-serverCtx.Done()
	logger.Infof("walkd: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("walkd: error shutting down server: %v", err)
	}
	if err = coordinator.Drain(shutdownCtx); err != nil {
		logger.Errorf("walkd: event publishes still in flight at shutdown: %v", err)
	}
	metricService.Shutdown(shutdownCtx)
	logger.Infof("walkd: stopped")
}

func envBool(name string) bool {
	if configValue, found := os.LookupEnv(name); found {
		if parsedValue, err := strconv.ParseBool(configValue); err == nil {
			return parsedValue
		}
	}
	return false
}

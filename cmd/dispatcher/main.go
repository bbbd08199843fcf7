// cmd/dispatcher/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studybuddy-backend/internal/common/config"
	"studybuddy-backend/internal/common/database"
	"studybuddy-backend/internal/common/logger"
	"studybuddy-backend/internal/common/observability"
	"studybuddy-backend/internal/common/workflow"
	"studybuddy-backend/internal/dispatcher"
	"studybuddy-backend/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatcher...")

	obs := observability.New("dispatcher")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	connector := database.NewConnector(cfg.Database.Postgres)
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = connector.Get(ctx)
		return err
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer connector.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Delivery channels ---
	var sesClient dispatcher.SESService
	var snsClient dispatcher.SNSService
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Notifications.AWS.Region),
		)
		if err != nil {
			zapLog.Fatal("AWS config load failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			sesClient = ses.NewFromConfig(awsCfg)
			zapLog.Info("SES email channel enabled")
		}
		if cfg.Notifications.SMS.Enabled {
			snsClient = sns.NewFromConfig(awsCfg)
			zapLog.Info("SNS SMS channel enabled")
		}
	}

	var workflowClient dispatcher.WorkflowService
	if cfg.Notifications.Workflow.Enabled {
		workflowClient = workflow.NewClient(
			cfg.Notifications.Workflow.URL,
			config.GetDuration(cfg.Notifications.Workflow.Timeout),
		)
		zapLog.Info("Workflow trigger channel enabled")
	}

	// Delivery-record indexing is optional; the dispatcher runs fine
	// without the ops-search cluster.
	var indexer dispatcher.DeliveryIndexer
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Warn("elasticsearch init failed, delivery records disabled", zap.Error(err))
		} else if err := es.Ping(); err != nil {
			zapLog.Warn("elasticsearch unreachable, delivery records disabled", zap.Error(err))
		} else {
			indexer = es
			zapLog.Info("Elasticsearch delivery-record indexing enabled")
		}
	}

	// The dispatcher writes only sent_at stamps, so it carries no event
	// bus and no counts cache.
	st := store.New(pg.GetDB(), nil, nil, log)

	d := dispatcher.New(
		cfg.Notifications,
		cfg.Dispatcher,
		st,
		pg.GetDB(),
		sesClient,
		snsClient,
		workflowClient,
		indexer,
		cfg.Database.Elasticsearch.Index,
		obs,
		log,
	)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: promhttp.Handler(),
	}
	go func() {
		zapLog.Info("Metrics server listening", zap.Int("port", cfg.Server.Port))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("Shutting down dispatcher...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics server shutdown failed", zap.Error(err))
	}
	zapLog.Info("dispatcher stopped")
}

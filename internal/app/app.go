package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Run запускает приложение: хранилище, сервисы, воркеры, Kafka consumer
// команд и HTTP-сервер метрик. Блокируется до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	runtime, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage(runtime, logger)

	deps := NewDependencies(runtime, logger)

	// Kafka опционален: без брокеров приложение живёт на одном хранилище,
	// события копятся в outbox до появления publisher.
	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Warn("kafka unavailable, running without broker")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	var workers sync.WaitGroup

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.KafkaEventTopic)
		dlqPublisher := kafka.NewDLQPublisher(kafkaProducer, cfg.KafkaDLQTopic)
		outboxWorker := outbox.NewWorker(
			runtime.outboxRepo,
			publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			outboxWorker.Run(workerCtx)
		}()
	}

	cleanupWorker := idempotency.NewCleanupWorker(
		runtime.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	workers.Add(1)
	go func() {
		defer workers.Done()
		cleanupWorker.Run(workerCtx)
	}()

	var commandConsumer *kafka.Consumer
	if cfg.KafkaBrokers != "" && kafkaProducer != nil {
		handler := kafka.NewOrderCommandHandler(deps.Orders, runtime.idempotencyRepo, deps.Metrics)
		commandConsumer, err = initCommandConsumer(cfg, handler.Handle, kafkaProducer, logger)
		if err != nil {
			cancelWorkers()
			workers.Wait()
			closeKafka(kafkaProducer, logger)
			return fmt.Errorf("init kafka command consumer: %w", err)
		}
		if err := commandConsumer.Start(ctx); err != nil {
			cancelWorkers()
			workers.Wait()
			closeKafka(kafkaProducer, logger)
			return fmt.Errorf("start kafka command consumer: %w", err)
		}
	}

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.RegisterChecker("storage", runtime.storageChecker)
	healthHandler.RegisterChecker("outbox", newOutboxBacklogChecker(runtime, cfg.OutboxMaxPending))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	logger.Info("application started")
	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем приложение")

	if commandConsumer != nil {
		if err := commandConsumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}

	cancelWorkers()
	workers.Wait()

	closeKafka(kafkaProducer, logger)
	shutdownHTTP(metricsSrv, logger)

	return ctx.Err()
}

// newOutboxBacklogChecker считает outbox нездоровым при переполнении backlog.
func newOutboxBacklogChecker(runtime *runtimeDependencies, maxPending int) healthcheck.Checker {
	return healthcheck.NewSimpleChecker("outbox", func() error {
		stats, err := runtime.outboxRepo.Stats()
		if err != nil {
			return fmt.Errorf("outbox stats: %w", err)
		}
		if maxPending > 0 && stats.PendingCount > maxPending {
			return fmt.Errorf("outbox backlog %d exceeds limit %d", stats.PendingCount, maxPending)
		}
		return nil
	})
}

func closeStorage(runtime *runtimeDependencies, logger *log.Entry) {
	if runtime == nil || runtime.closeFn == nil {
		return
	}
	if err := runtime.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

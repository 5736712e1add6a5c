package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	pgclient "meridian/internal/adapters/postgres"
	redisclient "meridian/internal/adapters/redis"
	"meridian/internal/api"
	"meridian/internal/workers"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		// Covers a worker mid-sweep blocking on ledger inclusion
		shutdownTimeout: 150 * time.Second,
	}
}

// Shutdown performs coordinated cleanup in order:
// 1. HTTP server stops accepting requests
// 2. Workers finish their current iteration
// 3. Kafka consumers close, unblocking ReadMessage
// 4. Remaining goroutines drain
// 5. Producer and ledger connection close
// 6. Error tracker flushes
// 7. Data stores close last, earlier steps may still need them
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	workerScheduler *workers.Scheduler,
	kafkaProducer *kafka.Producer,
	kafkaConsumers map[string]*kafka.Consumer,
	gateway *ledger.Gateway,
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/7] Stopping HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
	if err := httpServer.Shutdown(httpCtx); err != nil {
		log.Errorw("HTTP server shutdown failed", "error", err)
	}
	httpCancel()

	log.Info("[2/7] Stopping background workers...")
	if workerScheduler != nil && workerScheduler.IsRunning() {
		if err := workerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		}
	}

	log.Info("[3/7] Closing Kafka consumers...")
	for name, consumer := range kafkaConsumers {
		if consumer == nil {
			continue
		}
		if err := consumer.Close(); err != nil {
			log.Errorw("Failed to close consumer", "consumer", name, "error", err)
		}
	}

	log.Info("[4/7] Waiting for goroutines to finish...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("All goroutines finished")
	case <-shutdownCtx.Done():
		log.Warn("Timed out waiting for goroutines")
	}

	log.Info("[5/7] Closing producer and ledger connection...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Failed to close kafka producer", "error", err)
		}
	}
	if gateway != nil {
		if err := gateway.Close(); err != nil {
			log.Errorw("Failed to close ledger gateway", "error", err)
		}
	}

	log.Info("[6/7] Flushing error tracker...")
	if errorTracker != nil {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := errorTracker.Flush(flushCtx); err != nil {
			log.Errorw("Failed to flush error tracker", "error", err)
		}
		flushCancel()
	}

	log.Info("[7/7] Closing data stores...")
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Errorw("Failed to close redis", "error", err)
		}
	}
	if chClient != nil {
		if err := chClient.Close(); err != nil {
			log.Errorw("Failed to close clickhouse", "error", err)
		}
	}
	if pgClient != nil {
		if err := pgClient.Close(); err != nil {
			log.Errorw("Failed to close postgres", "error", err)
		}
	}

	log.Info("Graceful shutdown complete")
	_ = logger.Sync()
}

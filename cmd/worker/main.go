// Package main is the entry point for the snapshot refresh worker. It
// polls the refresh queue and drains jobs until stopped.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"apotheca/internal/domain/pricing"
	"apotheca/internal/domain/refreshqueue"
	"apotheca/internal/domain/snapshot"
	"apotheca/internal/infrastructure/storage/postgres"
	"apotheca/internal/infrastructure/storage/postgres/catalog_repo"
	"apotheca/internal/infrastructure/storage/postgres/ledger_repo"
	"apotheca/internal/infrastructure/storage/postgres/queue_repo"
	"apotheca/internal/infrastructure/storage/postgres/snapshot_repo"
	"apotheca/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting apotheca refresh worker")

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      mustEnv("DATABASE_URL"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		MinConns: 1,
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	ledgerRepo := ledger_repo.New(txManager)
	snapshotRepo := snapshot_repo.New(txManager)
	queueRepo := queue_repo.New(txManager)
	itemRepo := catalog_repo.NewItemRepo(txManager)
	branchRepo := catalog_repo.NewBranchRepo(txManager)
	companyRepo := catalog_repo.NewCompanyRepo(txManager)

	costResolver := pricing.NewResolver(ledgerRepo, itemRepo)
	queueService := refreshqueue.NewService(queueRepo, txManager, itemRepo)
	refresher := snapshot.NewRefresher(
		snapshotRepo, ledgerRepo, costResolver,
		itemRepo, branchRepo, companyRepo, queueService,
	)
	queueService.BindRefresher(refresher)

	worker := &Worker{
		queue:        queueService,
		log:          log.WithComponent("worker"),
		pollInterval: getEnvDuration("POLL_INTERVAL", 5*time.Second),
		batchSize:    getEnvInt("BATCH_SIZE", 50),
		retention:    getEnvDuration("PROCESSED_RETENTION", 7*24*time.Hour),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drains the refresh queue on a fixed poll interval. An empty
// claim waits out the interval; a full batch polls again immediately
// to ride out bursts.
type Worker struct {
	queue        *refreshqueue.Service
	log          *logger.Logger
	pollInterval time.Duration
	batchSize    int
	retention    time.Duration
}

func (w *Worker) Run(ctx context.Context) {
	purgeTicker := time.NewTicker(time.Hour)
	defer purgeTicker.Stop()

	for {
		processed, err := w.queue.ProcessBatch(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Errorw("process refresh batch", "error", err)
		} else if processed > 0 {
			w.log.Infow("processed refresh jobs", "count", processed)
			if processed == w.batchSize {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-purgeTicker.C:
			w.purge(ctx)
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *Worker) purge(ctx context.Context) {
	n, err := w.queue.PurgeProcessed(ctx, w.retention)
	if err != nil {
		w.log.Errorw("purge processed jobs", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("purged processed jobs", "count", n)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

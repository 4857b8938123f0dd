package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/ledgercore/internal/dispatcher"
	"github.com/attaboy/ledgercore/internal/infra"
	"github.com/attaboy/ledgercore/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox dispatcher failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-dispatcher connected to postgres")

	kafka := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaBrokers != "", logger)
	defer kafka.Close()

	d := dispatcher.New(
		infra.NewPoolTransactor(pool),
		repository.NewOutboxRepository(),
		repository.NewEventRepository(),
		repository.NewWebhookSubscriptionRepository(),
		repository.NewQueueMessageRepository(),
		kafka,
		&http.Client{Timeout: cfg.DispatchWebhookTimeout},
		logger,
	)

	logger.Info("outbox-dispatcher starting", "interval", cfg.DispatchInterval, "batch_size", cfg.DispatchBatchSize)
	ticker := time.NewTicker(cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox-dispatcher shutting down")
			return nil
		case <-ticker.C:
			runCycle(ctx, d, logger, cfg.DispatchBatchSize)
		}
	}
}

func runCycle(ctx context.Context, d *dispatcher.Dispatcher, logger *slog.Logger, batchSize int) {
	result, err := d.DispatchCycle(ctx, batchSize)
	if err != nil {
		logger.Error("dispatch cycle failed", "error", err)
		return
	}
	if result.Processed == 0 {
		return
	}
	for _, row := range result.Rows {
		if row.Error != "" {
			logger.Warn("outbox row error", "outbox_id", row.ID, "destination", row.Destination, "status", row.Status, "error", row.Error)
		}
	}
	logger.Info("dispatch cycle complete", "processed", result.Processed)
}

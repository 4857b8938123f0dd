package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/infra"
	"github.com/attaboy/ledgercore/internal/replay"
	"github.com/attaboy/ledgercore/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	aggregateType := flag.String("aggregate-type", "", "restrict to deposit_account or loan_account")
	aggregateID := flag.String("aggregate-id", "", "restrict to one account id")
	destination := flag.String("destination", "", "restrict to one outbox destination")
	flag.Parse()

	if err := run(logger, *aggregateType, *aggregateID, *destination); err != nil {
		logger.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, aggregateType, aggregateID, destination string) error {
	ctx := context.Background()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	filter := domain.ReplayFilter{}
	if aggregateType != "" {
		at := domain.AccountType(aggregateType)
		filter.AggregateType = &at
	}
	if aggregateID != "" {
		filter.AggregateID = &aggregateID
	}
	if destination != "" {
		filter.Destination = &destination
	}

	tool := replay.New(repository.NewOutboxRepository())
	count, err := tool.Replay(ctx, pool, filter)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	logger.Info("replay complete", "rows_updated", count)
	return nil
}

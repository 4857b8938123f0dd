// queue-tail follows the Kafka mirror of the domain_events queue and logs
// each envelope it sees. It is a debugging companion to the dispatcher's
// optional Kafka sink; the durable queue_messages table remains the
// authoritative record either way.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/infra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	topic := flag.String("topic", "domain_events", "kafka topic to follow")
	groupID := flag.String("group", "queue-tail", "kafka consumer group id")
	flag.Parse()

	if err := run(logger, *topic, *groupID); err != nil {
		logger.Error("queue-tail failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, topic, groupID string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.KafkaBrokers == "" {
		return fmt.Errorf("KAFKA_BROKERS is not set; queue-tail needs the Kafka sink enabled")
	}

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, topic, groupID, true, logger)
	defer consumer.Close()

	logger.Info("queue-tail following topic", "topic", topic, "group", groupID)
	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("queue-tail shutting down")
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var env domain.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			logger.Warn("skipping non-envelope message", "offset", msg.Offset, "error", err)
			continue
		}
		logger.Info("event",
			"event_id", env.EventID,
			"aggregate_type", env.AggregateType,
			"aggregate_id", env.AggregateID,
			"event_type", env.EventType,
			"event_time", env.EventTime,
			"offset", msg.Offset,
		)
	}
}

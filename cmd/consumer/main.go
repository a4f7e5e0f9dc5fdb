package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
)

const groupID = "listing-events-consumer-group"

func main() {
	envFile := pflag.String("env-file", "", "dotenv file to load (default: nearest .env or .example.env)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the consumer")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        groupID,
		Topic:          cfg.KafkaTopic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	log.Info("consumer started", zap.String("topic", cfg.KafkaTopic), zap.Strings("brokers", cfg.KafkaBrokers))

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info("consumer stopping")
				return
			}
			log.Error("failed to read message", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		var event repository.ListingEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Warn("skipping undecodable message",
				zap.Int64("offset", m.Offset),
				zap.ByteString("value", m.Value),
				zap.Error(err),
			)
			continue
		}

		log.Info("listing event",
			zap.String("type", string(event.Type)),
			zap.String("listing_id", event.ListingID),
			zap.String("actor_id", event.ActorID),
			zap.String("old_status", event.OldStatus),
			zap.String("new_status", event.NewStatus),
			zap.Time("occurred_at", event.OccurredAt),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}

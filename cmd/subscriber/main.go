package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-tracker/internal/config"
	"coin-tracker/internal/logging"
	"coin-tracker/internal/pipeline"
	"coin-tracker/internal/trigger"

	"cloud.google.com/go/pubsub"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Pulls update requests from a Pub/Sub subscription and runs the event trigger
// for each. Reads GOOGLE_CLOUD_PROJECT and COIN_SUBSCRIPTION.
func main() {
	cfg, err := config.Load(os.Getenv("COIN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	subName := os.Getenv("COIN_SUBSCRIPTION")
	if project == "" || subName == "" {
		logger.Fatal("GOOGLE_CLOUD_PROJECT and COIN_SUBSCRIPTION must be set")
	}
	if cfg.Sheet.ID == "" {
		logger.Fatal("COIN_SHEET_ID must be set")
	}

	p, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}
	handler := trigger.NewHandler(p, cfg.Sheet.ID, cfg.Run.ToModelParams(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		logger.Fatal("pubsub.NewClient", zap.Error(err))
	}
	defer client.Close()

	sub := client.Subscription(subName)
	// One run at a time; each run appends a row.
	sub.ReceiveSettings.MaxOutstandingMessages = 1

	// Receive returns on non-retryable errors; restart it with backoff until shutdown.
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Minute
	bo.MaxElapsedTime = 0

	err = backoff.RetryNotify(func() error {
		err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			receive(ctx, handler, logger, msg)
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			bo.Reset()
			return fmt.Errorf("subscription %s: receive returned", subName)
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, d time.Duration) {
		logger.Warn("receive stopped, restarting", zap.Error(err), zap.Duration("in", d))
	})
	if err != nil && ctx.Err() == nil {
		logger.Fatal("subscriber stopped", zap.Error(err))
	}
	logger.Info("subscriber shut down")
}

// receive acks handled, stale and ignored messages; failed runs are nacked
// for redelivery.
func receive(ctx context.Context, h *trigger.Handler, logger *zap.Logger, msg *pubsub.Message) {
	status, err := h.HandleEvent(ctx, trigger.Event{
		ID:        msg.ID,
		Timestamp: msg.PublishTime,
		Data:      base64.StdEncoding.EncodeToString(msg.Data),
	})
	if err != nil {
		logger.Error("event failed", zap.String("event_id", msg.ID), zap.Error(err))
		msg.Nack()
		return
	}
	logger.Info("event handled", zap.String("event_id", msg.ID), zap.String("status", status))
	msg.Ack()
}

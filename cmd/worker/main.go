// The worker drains the transactional outbox, publishing domain events
// to the message broker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaycrm/calsync/internal/app"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/eventbus"
	"github.com/relaycrm/calsync/internal/shared/infrastructure/outbox"
	"github.com/relaycrm/calsync/pkg/config"
	"github.com/relaycrm/calsync/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize: %v\n", err)
		os.Exit(1)
	}
	defer container.Close()

	var publisher eventbus.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect rabbitmq: %v\n", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("RABBITMQ_URL not set, events are drained without publishing")
		publisher = eventbus.NoopPublisher{}
	}
	defer publisher.Close()

	processor := outbox.NewProcessor(container.OutboxRepo, publisher, outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, logger)

	logger.Info("outbox worker started",
		"poll_interval", cfg.OutboxPollInterval.String(),
		"batch_size", cfg.OutboxBatchSize,
	)
	if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

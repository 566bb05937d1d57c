package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bqadapter "github.com/couchcryptid/warehouse-etl/internal/adapter/bigquery"
	"github.com/couchcryptid/warehouse-etl/internal/adapter/httpsource"
	kafkaadapter "github.com/couchcryptid/warehouse-etl/internal/adapter/kafka"
	pubsubadapter "github.com/couchcryptid/warehouse-etl/internal/adapter/pubsub"
	"github.com/couchcryptid/warehouse-etl/internal/config"
	"github.com/couchcryptid/warehouse-etl/internal/observability"
	"github.com/couchcryptid/warehouse-etl/internal/pipeline"
)

// app holds the wired service and the resources it must release on exit.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *pipeline.Service
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

type closer interface {
	Close() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateWarehouse(); err != nil {
		return nil, err
	}

	logger, closeLog := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	a := &app{cfg: cfg, logger: logger}

	warehouse, err := bqadapter.NewWarehouse(ctx, cfg.ProjectID, cfg.LoadJobTimeout, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{"bigquery client", warehouse.Close})

	var notifier interface {
		pipeline.Notifier
		closer
	}
	switch cfg.NotifyBackend {
	case config.NotifyKafka:
		notifier = kafkaadapter.NewPublisher(cfg.KafkaBrokers, logger)
	default:
		notifier, err = pubsubadapter.NewPublisher(ctx, cfg.ProjectID, logger)
		if err != nil {
			a.close()
			_ = closeLog()
			return nil, err
		}
	}
	a.closers = append(a.closers, namedCloser{cfg.NotifyBackend + " publisher", notifier.Close})
	logger.Info("notifications enabled", "backend", cfg.NotifyBackend)

	fetcher := httpsource.NewClient(cfg.HTTPTimeout, logger)
	a.service = pipeline.NewService(config.Load, fetcher, warehouse, notifier, logger, metrics)
	a.closers = append(a.closers, namedCloser{"log file", closeLog})
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(c.name+" close error", "error", err)
		}
	}
}

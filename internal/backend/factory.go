package backend

import (
	"context"
	"fmt"
	"log/slog"

	"nota/internal/amqp"
	"nota/internal/services"
	"nota/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := NewStore(config)
	if err != nil {
		return nil, err
	}

	// Change events are optional; a broker outage must not block local writes.
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			publisher = client
		}
	}

	svc := services.NewNotaService(store, publisher)
	if err := svc.Open(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("open %s backend: %w", config.Type, err)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"records", svc.Len(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Service: svc,
		Store:   store,
		Cleanup: svc.Close,
	}, nil
}

// NewStore opens the store selected by config without a service on top.
// The sync worker reads through it.
func NewStore(config Config) (storage.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return storage.NewCSVStore(config.CSVPath), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil
	case MemoryBackend:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

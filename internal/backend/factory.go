package backend

import (
	"context"
	"fmt"
	"time"

	"bolso/internal/log"
	"bolso/internal/store/memory"
	"bolso/internal/store/mongo"
	"bolso/internal/store/sqlite"
)

const mongoConnectTimeout = 10 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	st, err := sqlite.New(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{Store: st, Cleanup: st.Close}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	st, err := mongo.Connect(ctx, config.MongoURI, config.MongoDatabase, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Mongo store: %w", err)
	}

	f.logger.Info("Initialized Mongo backend", "database", config.MongoDatabase)

	return &BackendResult{Store: st, Cleanup: st.Close}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	st := memory.New()

	f.logger.Warn("Initialized memory backend; records are lost on restart")

	return &BackendResult{Store: st, Cleanup: st.Close}, nil
}

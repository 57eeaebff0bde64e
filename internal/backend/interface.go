// Package backend builds the record store and the notification transports
// selected by configuration.
package backend

import (
	"context"

	"bolso/internal/store"
)

// CleanupFunc releases the resources behind a backend.
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function.
type BackendResult struct {
	Store   store.Store
	Cleanup CleanupFunc
}

// Factory creates record stores based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Mongo specific
	MongoURI      string
	MongoDatabase string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}

// Pinger is implemented by stores that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

package document

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mkrupp/pantry/internal/domain"
)

// ErrUnknownDriver is returned by NewStoreFactory for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown document store driver")

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
)

// Store is a collection-scoped document store with optimistic versioning.
//
// Every write assigns a new version: 1 on insert, previous+1 on update.
// Query results are returned in insertion order.
type Store interface {
	// QueryByField returns all documents in collection whose top-level string
	// field equals value.
	QueryByField(ctx context.Context, collection, field, value string) ([]domain.Document, error)

	// GetByID retrieves a single document.
	// Returns false without error if the document does not exist.
	GetByID(ctx context.Context, collection string, id domain.DocumentID) (domain.Document, bool, error)

	// Upsert creates the document or replaces its data. With merge set, the
	// top-level fields of data are applied over the stored fields instead.
	Upsert(ctx context.Context, collection string, id domain.DocumentID, data domain.DocumentData, merge bool) (domain.Document, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection string, id domain.DocumentID) error

	// CompareAndSwap replaces the document data only if its version still
	// equals version. Returns domain.ErrVersionConflict otherwise, including
	// when the document no longer exists.
	CompareAndSwap(ctx context.Context, collection string, id domain.DocumentID, data domain.DocumentData, version int64) (domain.Document, error)

	// CompareAndDelete removes the document only if its version still equals
	// version, with the same conflict semantics as CompareAndSwap.
	CompareAndDelete(ctx context.Context, collection string, id domain.DocumentID, version int64) error

	// Close releases any resources held by the store.
	Close() error
}

// StoreFactory is a function that creates a new Store instance.
type StoreFactory func(ctx context.Context) (Store, error)

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, mysql or redis
	Driver string `env:"DRIVER" default:"sqlite"`

	SQLite SQLiteDocumentStoreConfig `envPrefix:"SQLITE_"`
	MySQL  MySQLDocumentStoreConfig  `envPrefix:"MYSQL_"`
	Redis  RedisDocumentStoreConfig  `envPrefix:"REDIS_"`
}

// NewStoreFactory returns the factory for the configured driver.
func NewStoreFactory(cfg StoreConfig) (StoreFactory, error) {
	switch cfg.Driver {
	case DriverMemory:
		return func(context.Context) (Store, error) { return NewMemoryDocumentStore(), nil }, nil
	case DriverSQLite:
		return SQLiteDocumentStoreFactory(cfg.SQLite), nil
	case DriverMySQL:
		return MySQLDocumentStoreFactory(cfg.MySQL), nil
	case DriverRedis:
		return RedisDocumentStoreFactory(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateField rejects field names that could not be used as a plain JSON path segment.
func validateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidField, field)
	}

	return nil
}

// matchesField reports whether data holds the string value at field.
func matchesField(data domain.DocumentData, field, value string) bool {
	s, ok := data[field].(string)

	return ok && s == value
}

package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/pantry/internal/infra/logging"
)

// SQLiteDocumentStoreConfig holds configuration for the SQLite document store.
type SQLiteDocumentStoreConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/pantry.db"`
}

// SQLiteDocumentStore implements Store using SQLite's JSON functions.
type SQLiteDocumentStore struct {
	*sqlDocumentStore
}

var _ Store = (*SQLiteDocumentStore)(nil)

// SQLiteDocumentStoreFactory creates a factory function that returns a new SQLiteDocumentStore.
func SQLiteDocumentStoreFactory(cfg SQLiteDocumentStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewSQLiteDocumentStore(ctx, cfg)
	}
}

var sqliteDialect = sqlDialect{
	schema: `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT    NOT NULL,
			id         TEXT    NOT NULL,
			data       TEXT    NOT NULL,
			version    INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`,
	selectForWrite: "SELECT data, version FROM documents WHERE collection = ? AND id = ?",
	queryByField: `
		SELECT id, data, version FROM documents
		WHERE collection = ? AND json_extract(data, ?) = ?
		ORDER BY rowid
	`,
	isDuplicateKey: func(err error) bool {
		var liteErr *sqlite.Error

		return errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
}

// NewSQLiteDocumentStore opens (and if needed creates) the database at cfg.DatabasePath.
func NewSQLiteDocumentStore(ctx context.Context, cfg SQLiteDocumentStoreConfig) (*SQLiteDocumentStore, error) {
	log := logging.GetLogger("repo.document.sqlite_document_store").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", cfg.DatabasePath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := newSQLDocumentStore(ctx, db, sqliteDialect, new(sync.Mutex), log)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	log.DebugContext(ctx, "document store ready")

	return &SQLiteDocumentStore{sqlDocumentStore: store}, nil
}

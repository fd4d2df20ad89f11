package user

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

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
)

// SQLiteUserRepositoryConfig holds configuration for the SQLite user repository.
type SQLiteUserRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/authsvc.db"`
}

// SQLiteUserRepository implements Repository using SQLite as the storage backend.
type SQLiteUserRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteUserRepository)(nil)

// SQLiteUserRepositoryFactory creates a factory function that returns a new SQLiteUserRepository.
func SQLiteUserRepositoryFactory(cfg SQLiteUserRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteUserRepository(cfg)
	}
}

// NewSQLiteUserRepository opens the database at cfg.DatabasePath, creating the
// file, its directory and the schema as needed. Usernames compare case-insensitively.
func NewSQLiteUserRepository(cfg SQLiteUserRepositoryConfig) (_ *SQLiteUserRepository, err error) {
	ctx := context.Background()
	log := logging.GetLogger("repo.user.sqlite_user_repository").With(
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

	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	db.SetConnMaxLifetime(5 * time.Minute)

	if err = initializeDB(ctx, db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	log.DebugContext(ctx, "user repository ready")

	return &SQLiteUserRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT    PRIMARY KEY,
			username      TEXT    NOT NULL UNIQUE COLLATE NOCASE,
			display_name  TEXT    NOT NULL DEFAULT '',
			password_hash BLOB    NOT NULL,
			created_at    INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// CreateUser implements Repository.CreateUser using SQLite.
// A zero CreatedAt is set to the current time.
func (r *SQLiteUserRepository) CreateUser(ctx context.Context, user domain.User) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO users (id, username, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID,
		user.Username,
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		}

		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func isConstraintViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}

	code := liteErr.Code()

	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// GetUserByUsername implements Repository.GetUserByUsername using SQLite.
func (r *SQLiteUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	return r.getUser(ctx, "username", username)
}

// GetUserByID implements Repository.GetUserByID using SQLite.
func (r *SQLiteUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, bool, error) {
	return r.getUser(ctx, "id", id)
}

// getUser looks a user up by one of the unique columns; column is never user input.
func (r *SQLiteUserRepository) getUser(ctx context.Context, column, value string) (*domain.User, bool, error) {
	var user domain.User

	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, display_name, password_hash, created_at FROM users WHERE "+column+" = ?",
		value,
	).Scan(&user.ID, &user.Username, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return nil, false, fmt.Errorf("query user: %w", err)
	}

	return &user, true, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteUserRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

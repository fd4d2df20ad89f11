package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mkrupp/pantry/internal/domain"
	"github.com/mkrupp/pantry/internal/infra/logging"
)

// sqlDialect holds the statements that differ between SQL backends.
type sqlDialect struct {
	schema string

	// selectForWrite reads data and version inside a write transaction.
	selectForWrite string

	// queryByField takes a JSON path and a value and must order by insertion.
	queryByField string

	// isDuplicateKey reports a primary key violation on insert.
	isDuplicateKey func(error) bool
}

// sqlDocumentStore implements Store on a single "documents" table with a JSON data column.
// Data is bound as text: SQLite would treat a blob as JSONB and MySQL rejects
// binary strings for JSON columns.
type sqlDocumentStore struct {
	db        *sql.DB
	dialect   sqlDialect
	log       logging.Logger
	writeLock sync.Locker
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

func newSQLDocumentStore(ctx context.Context, db *sql.DB, dialect sqlDialect, writeLock sync.Locker, log logging.Logger) (*sqlDocumentStore, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.ExecContext(ctx, dialect.schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqlDocumentStore{
		db:        db,
		dialect:   dialect,
		log:       log,
		writeLock: writeLock,
	}, nil
}

// QueryByField implements Store.QueryByField.
func (s *sqlDocumentStore) QueryByField(ctx context.Context, collection, field, value string) ([]domain.Document, error) {
	if err := validateField(field); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.queryByField, collection, "$."+field, value)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document

	for rows.Next() {
		var (
			doc domain.Document
			raw []byte
		)

		if err := rows.Scan(&doc.ID, &raw, &doc.Version); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", doc.ID, err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// GetByID implements Store.GetByID.
func (s *sqlDocumentStore) GetByID(ctx context.Context, collection string, id domain.DocumentID) (domain.Document, bool, error) {
	return s.get(ctx, s.db, "SELECT data, version FROM documents WHERE collection = ? AND id = ?", collection, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlDocumentStore) get(
	ctx context.Context,
	q queryRower,
	query string,
	collection string,
	id domain.DocumentID,
) (domain.Document, bool, error) {
	var raw []byte

	doc := domain.Document{ID: id}

	err := q.QueryRowContext(ctx, query, collection, id.String()).Scan(&raw, &doc.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, false, nil
	} else if err != nil {
		return domain.Document{}, false, fmt.Errorf("query document: %w", err)
	}

	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return domain.Document{}, false, fmt.Errorf("unmarshal document: %w", err)
	}

	return doc, true, nil
}

// Upsert implements Store.Upsert inside a transaction.
func (s *sqlDocumentStore) Upsert(
	ctx context.Context,
	collection string,
	id domain.DocumentID,
	data domain.DocumentData,
	merge bool,
) (_ domain.Document, err error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	existing, found, err := s.get(ctx, tx, s.dialect.selectForWrite, collection, id)
	if err != nil {
		return domain.Document{}, err
	}

	doc := domain.Document{ID: id, Data: data, Version: 1}
	if found {
		doc.Version = existing.Version + 1

		if merge {
			doc.Data = existing.Data.Merge(data)
		}
	}

	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return domain.Document{}, fmt.Errorf("marshal document: %w", err)
	}

	now := time.Now().UnixMilli()

	if found {
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET data = ?, version = ?, updated_at = ? WHERE collection = ? AND id = ?",
			string(raw), doc.Version, now, collection, id.String(),
		)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (collection, id, data, version, updated_at) VALUES (?, ?, ?, ?, ?)",
			collection, id.String(), string(raw), doc.Version, now,
		)
	}

	if err != nil {
		if s.dialect.isDuplicateKey(err) {
			s.log.DebugContext(ctx, "concurrent insert", logging.Group("document", "collection", collection, "id", id))

			err = errors.Join(domain.ErrVersionConflict, err)
		}

		return domain.Document{}, fmt.Errorf("write document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Document{}, fmt.Errorf("commit: %w", err)
	}

	return doc, nil
}

// Delete implements Store.Delete.
func (s *sqlDocumentStore) Delete(ctx context.Context, collection string, id domain.DocumentID) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		collection, id.String(),
	); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}

// CompareAndSwap implements Store.CompareAndSwap with a version-guarded update.
func (s *sqlDocumentStore) CompareAndSwap(
	ctx context.Context,
	collection string,
	id domain.DocumentID,
	data domain.DocumentData,
	version int64,
) (domain.Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.Document{}, fmt.Errorf("marshal document: %w", err)
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE documents SET data = ?, version = version + 1, updated_at = ? WHERE collection = ? AND id = ? AND version = ?",
		string(raw), time.Now().UnixMilli(), collection, id.String(), version,
	)
	if err != nil {
		return domain.Document{}, fmt.Errorf("update document: %w", err)
	}

	if err := s.requireOneRow(ctx, result, collection, id, version); err != nil {
		return domain.Document{}, err
	}

	return domain.Document{ID: id, Data: data, Version: version + 1}, nil
}

// CompareAndDelete implements Store.CompareAndDelete with a version-guarded delete.
func (s *sqlDocumentStore) CompareAndDelete(ctx context.Context, collection string, id domain.DocumentID, version int64) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ? AND version = ?",
		collection, id.String(), version,
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return s.requireOneRow(ctx, result, collection, id, version)
}

// Close implements Store.Close by closing the database connection.
func (s *sqlDocumentStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

// requireOneRow reports domain.ErrVersionConflict unless the guarded statement hit a row.
func (s *sqlDocumentStore) requireOneRow(
	ctx context.Context,
	result sql.Result,
	collection string,
	id domain.DocumentID,
	version int64,
) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if rows == 0 {
		s.log.DebugContext(ctx, "version conflict",
			logging.Group("document", "collection", collection, "id", id, "version", version),
		)

		return domain.ErrVersionConflict
	}

	return nil
}

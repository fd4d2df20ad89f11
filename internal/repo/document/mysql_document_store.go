package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/mkrupp/pantry/internal/infra/logging"
)

const mysqlErrDuplicateEntry = 1062

// MySQLDocumentStoreConfig holds configuration for the MySQL document store.
type MySQLDocumentStoreConfig struct {
	// DSN is a go-sql-driver/mysql data source name
	DSN string `env:"DSN" default:"pantry:pantry@tcp(localhost:3306)/pantry"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" default:"5m"`
}

// MySQLDocumentStore implements Store using MySQL's JSON column type.
type MySQLDocumentStore struct {
	*sqlDocumentStore
}

var _ Store = (*MySQLDocumentStore)(nil)

// MySQLDocumentStoreFactory creates a factory function that returns a new MySQLDocumentStore.
func MySQLDocumentStoreFactory(cfg MySQLDocumentStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewMySQLDocumentStore(ctx, cfg)
	}
}

var mysqlDialect = sqlDialect{
	schema: `
		CREATE TABLE IF NOT EXISTS documents (
			seq        BIGINT       NOT NULL AUTO_INCREMENT UNIQUE,
			collection VARCHAR(64)  NOT NULL,
			id         VARCHAR(128) NOT NULL,
			data       JSON         NOT NULL,
			version    BIGINT       NOT NULL,
			updated_at BIGINT       NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`,
	selectForWrite: "SELECT data, version FROM documents WHERE collection = ? AND id = ? FOR UPDATE",
	queryByField: `
		SELECT id, data, version FROM documents
		WHERE collection = ? AND JSON_UNQUOTE(JSON_EXTRACT(data, ?)) = ?
		ORDER BY seq
	`,
	isDuplicateKey: func(err error) bool {
		var myErr *mysql.MySQLError

		return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
	},
}

// NewMySQLDocumentStore connects to the server named by cfg.DSN and creates the schema if needed.
func NewMySQLDocumentStore(ctx context.Context, cfg MySQLDocumentStoreConfig) (*MySQLDocumentStore, error) {
	mysqlCfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	log := logging.GetLogger("repo.document.mysql_document_store").With(
		logging.Group("db", "addr", mysqlCfg.Addr, "name", mysqlCfg.DBName),
	)

	connector, err := mysql.NewConnector(mysqlCfg)
	if err != nil {
		return nil, fmt.Errorf("new connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store, err := newSQLDocumentStore(ctx, db, mysqlDialect, nopLocker{}, log)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize db: %w", err)
	}

	log.DebugContext(ctx, "document store ready")

	return &MySQLDocumentStore{sqlDocumentStore: store}, nil
}

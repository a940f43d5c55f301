// Package sqlite owns the SQLite database of the tracker: connections, schema migration, maintenance and
// export.
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/myrjola/liftlog/internal/errors"

	_ "embed"
)

//go:embed schema.sql
var schemaDefinition string

//go:embed fixtures.sql
var fixtures string

// DSNLogKey is the log attribute carrying the read-write data source name.
const DSNLogKey = "sqlDsn"

type Database struct {
	ReadWrite *sql.DB
	ReadOnly  *sql.DB
	logger    *slog.Logger
}

// NewDatabase connects to the database at url, migrates it to the embedded schema, seeds the fixtures and
// starts the optimizer, which stops with ctx.
//
// url is a file path or ":memory:" for a private in-memory database. Writes go through a single
// connection while reads use a pool, see https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(ctx, url, logger)
	if err != nil {
		return nil, errors.Wrap(err, "connect", slog.String("url", url))
	}
	if err = db.migrateTo(ctx, schemaDefinition); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	if _, err = db.ReadWrite.ExecContext(ctx, fixtures); err != nil {
		return nil, errors.Wrap(err, "apply fixtures")
	}

	go db.runOptimizer(ctx, time.Hour)

	return db, nil
}

//nolint:gochecknoglobals // the driver can be registered only once per process.
var registerDriver sync.Once

const driverName = "sqlite3liftlog"

// pragmas run on every new connection.
const pragmas = "PRAGMA temp_store = memory;" +
	"PRAGMA mmap_size = 30000000000;" +
	"PRAGMA cache_size = -16000;"

func registerOptimizedDriver() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		Extensions: nil,
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if _, err := conn.Exec(pragmas, nil); err != nil {
				return fmt.Errorf("exec connection pragmas: %w", err)
			}
			return nil
		},
	})
}

func connect(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	// Both pools must see the same in-memory database, and parallel tests must not see each other's.
	// See https://www.sqlite.org/inmemorydb.html.
	readWriteMode, readOnlyMode := "mode=rwc", "mode=ro"
	if strings.Contains(url, ":memory:") {
		url = rand.Text()
		readWriteMode, readOnlyMode = "mode=memory&cache=shared", "mode=memory&cache=shared"
	}
	params := strings.Join([]string{
		"_loc=auto",
		"_defer_foreign_keys=1",
		"_journal_mode=wal",
		"_busy_timeout=5000",
		"_synchronous=normal",
		"_foreign_keys=on",
	}, "&")

	// Parameters without a leading underscore are SQLite URI parameters, see https://www.sqlite.org/uri.html.
	// The rest are documented at https://pkg.go.dev/github.com/mattn/go-sqlite3#SQLiteDriver.Open.
	readWriteDSN := fmt.Sprintf("file:%s?%s&_txlock=immediate&%s", url, readWriteMode, params)
	readOnlyDSN := fmt.Sprintf("file:%s?%s&_txlock=deferred&_query_only=true&%s", url, readOnlyMode, params)

	registerDriver.Do(registerOptimizedDriver)

	readWrite, err := sql.Open(driverName, readWriteDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open read-write database")
	}
	readWrite.SetMaxOpenConns(1)
	readWrite.SetMaxIdleConns(1)
	readWrite.SetConnMaxLifetime(0)
	readWrite.SetConnMaxIdleTime(0)
	// sql.DB is lazy and an in-memory database lives only as long as one of its connections.
	if err = readWrite.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "ping read-write database")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "opened database", slog.String(DSNLogKey, readWriteDSN))

	readOnly, err := sql.Open(driverName, readOnlyDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open read-only database")
	}
	const maxReaders = 8
	readOnly.SetMaxOpenConns(maxReaders)
	readOnly.SetMaxIdleConns(maxReaders)
	readOnly.SetConnMaxLifetime(time.Hour)
	readOnly.SetConnMaxIdleTime(time.Hour)

	return &Database{
		ReadWrite: readWrite,
		ReadOnly:  readOnly,
		logger:    logger,
	}, nil
}

// Close closes both connection pools.
func (db *Database) Close() error {
	return errors.Join(db.ReadOnly.Close(), db.ReadWrite.Close())
}

// WithTx runs fn in a read-write transaction and commits when fn returns nil.
func (db *Database) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer db.rollback(ctx, tx)()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// rollback returns a func rolling tx back unless it is already finished.
func (db *Database) rollback(ctx context.Context, tx *sql.Tx) func() {
	return func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to roll back transaction",
				errors.SlogError(errors.Wrap(err, "rollback")))
		}
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/myrjola/liftlog/internal/errors"
)

// exportTables are copied by [Database.Export]. Sessions are left out.
//
//nolint:gochecknoglobals // read-only list.
var exportTables = []string{"profile", "goals", "records"}

// Export writes the tracker's data into a new SQLite file under dir and returns its path. The caller owns
// the file.
//
// This gives the user a copy of everything they have entered in a format other tools can open.
func (db *Database) Export(ctx context.Context, dir string) (_ string, err error) {
	f, err := os.CreateTemp(dir, "liftlog-export-*.sqlite3")
	if err != nil {
		return "", errors.Wrap(err, "create export file")
	}
	path := f.Name()
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "close export file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	start := time.Now()
	// A dedicated connection keeps ATTACH scoped to this export.
	conn, err := db.ReadWrite.Conn(ctx)
	if err != nil {
		return "", errors.Wrap(err, "get connection")
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close connection"))
		}
	}()

	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS export", fmt.Sprintf("file:%s?mode=rwc", path)); err != nil {
		return "", errors.Wrap(err, "attach export database", slog.String("path", path))
	}
	defer func() {
		if _, detachErr := conn.ExecContext(ctx, "DETACH DATABASE export"); detachErr != nil {
			err = errors.Join(err, errors.Wrap(detachErr, "detach export database"))
		}
	}()

	if err = copyTables(ctx, conn); err != nil {
		return "", err
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "exported database",
		slog.String("path", filepath.Base(path)), slog.Duration("duration", time.Since(start)))
	return path, nil
}

func copyTables(ctx context.Context, conn *sql.Conn) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range exportTables {
		var createSQL string
		if err = tx.QueryRowContext(ctx, "SELECT sql FROM main.sqlite_schema WHERE type = 'table' AND name = ?",
			table).Scan(&createSQL); err != nil {
			return errors.Wrap(err, "read table definition", slog.String("table", table))
		}
		// Qualify the new table with the export schema.
		createSQL = "CREATE TABLE export." + createSQL[len("CREATE TABLE "):]
		if _, err = tx.ExecContext(ctx, createSQL); err != nil {
			return errors.Wrap(err, "create export table", slog.String("table", table))
		}
		if _, err = tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO export.%[1]s SELECT * FROM main.%[1]s", table)); err != nil {
			return errors.Wrap(err, "copy rows", slog.String("table", table))
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/liftlog/internal/errors"
)

// migrateTo brings the live schema in line with schema declaratively: the target schema is built in an
// attached in-memory database and the two are diffed through sqlite_schema.
//
// Dropped tables are dropped, new tables created and changed tables rebuilt with the generalized ALTER
// TABLE procedure https://www.sqlite.org/lang_altertable.html#otheralter, copying the columns both
// versions share. Triggers and indexes are then recreated where they differ.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schema string) (err error) {
	start := time.Now()

	detach, err := db.attachTarget(ctx, schema)
	if err != nil {
		return errors.Wrap(err, "attach target schema")
	}
	defer detach()

	// foreign_keys is a no-op inside a transaction so it is toggled around it.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign keys")
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign keys"))
		}
	}()

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := db.syncTables(ctx, tx); err != nil {
			return errors.Wrap(err, "sync tables")
		}
		for _, typ := range []objectType{objectTrigger, objectIndex} {
			if err := db.syncObjects(ctx, tx, typ); err != nil {
				return errors.Wrap(err, "sync objects", slog.String("type", string(typ)))
			}
		}
		violations, err := queryStrings(ctx, tx, `SELECT "table" FROM pragma_foreign_key_check`)
		if err != nil {
			return errors.Wrap(err, "foreign key check")
		}
		if len(violations) > 0 {
			return errors.New("foreign key violations after migration",
				slog.String("tables", strings.Join(violations, ",")))
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

// attachTarget attaches an in-memory database holding schema as "target". The returned func detaches it.
func (db *Database) attachTarget(ctx context.Context, schema string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	// The shared-cache database lives while target holds a connection, so it stays open until detached.
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open target database")
	}
	if _, err = target.ExecContext(ctx, schema); err != nil {
		_ = target.Close()
		return nil, errors.Wrap(err, "apply target schema")
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS target", dsn); err != nil {
		_ = target.Close()
		return nil, errors.Wrap(err, "attach")
	}
	return func() {
		if _, err := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE target"); err != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach target schema",
				errors.SlogError(errors.Wrap(err, "detach")))
		}
		if err := target.Close(); err != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close target schema",
				errors.SlogError(errors.Wrap(err, "close")))
		}
	}, nil
}

// userObjects filters out SQLite internals and Litestream bookkeeping.
const userObjects = `name NOT LIKE 'sqlite_%' AND name NOT LIKE '_litestream_%'`

func (db *Database) syncTables(ctx context.Context, tx *sql.Tx) error {
	dropped, err := queryStrings(ctx, tx, `SELECT name FROM main.sqlite_schema
WHERE type = 'table' AND `+userObjects+`
  AND name NOT IN (SELECT name FROM target.sqlite_schema WHERE type = 'table')`)
	if err != nil {
		return errors.Wrap(err, "query dropped tables")
	}
	for _, name := range dropped {
		if err = db.exec(ctx, tx, "dropping table", fmt.Sprintf("DROP TABLE %q", name)); err != nil {
			return err
		}
	}

	created, err := queryStrings(ctx, tx, `SELECT sql FROM target.sqlite_schema
WHERE type = 'table' AND `+userObjects+`
  AND name NOT IN (SELECT name FROM main.sqlite_schema WHERE type = 'table')`)
	if err != nil {
		return errors.Wrap(err, "query created tables")
	}
	for _, stmt := range created {
		if err = db.exec(ctx, tx, "creating table", stmt); err != nil {
			return err
		}
	}

	// Renames quote the table name in sqlite_schema, so quotes are ignored in the comparison.
	changed, err := queryChanged(ctx, tx, `SELECT live.name, live.sql, target.sql
FROM main.sqlite_schema AS live
JOIN target.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = 'table' AND live.name NOT LIKE 'sqlite_%' AND live.name NOT LIKE '_litestream_%'
  AND REPLACE(live.sql, '"', '') <> REPLACE(target.sql, '"', '')`)
	if err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	for _, c := range changed {
		if err = db.rebuildTable(ctx, tx, c); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", c.name))
		}
	}
	return nil
}

// rebuildTable creates the new version of the table under a temporary name, copies the shared columns,
// drops the old table and renames the new one into place.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, c changedObject) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table", slog.String("table", c.name),
		slog.String("live_sql", c.liveSQL), slog.String("target_sql", c.targetSQL))

	temp := c.name + "_migration_temp"
	if err := db.exec(ctx, tx, "creating temporary table",
		strings.Replace(c.targetSQL, c.name, temp, 1)); err != nil {
		return err
	}

	columns, err := queryStrings(ctx, tx, `SELECT '"' || live.name || '"'
FROM pragma_table_info(:table) AS live
JOIN pragma_table_info(:table, 'target') AS target ON target.name = live.name`, sql.Named("table", c.name))
	if err != nil {
		return errors.Wrap(err, "query shared columns")
	}
	shared := strings.Join(columns, ", ")
	if err = db.exec(ctx, tx, "copying rows",
		fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %q", temp, shared, shared, c.name)); err != nil {
		return err
	}
	if err = db.exec(ctx, tx, "dropping old table", fmt.Sprintf("DROP TABLE %q", c.name)); err != nil {
		return err
	}
	return db.exec(ctx, tx, "renaming table", fmt.Sprintf("ALTER TABLE %q RENAME TO %q", temp, c.name))
}

type objectType string

const (
	objectTrigger objectType = "trigger"
	objectIndex   objectType = "index"
)

// syncObjects drops, creates and recreates objects of typ so that they match the target schema. Indexes
// that SQLite creates for constraints have no SQL and are skipped.
func (db *Database) syncObjects(ctx context.Context, tx *sql.Tx, typ objectType) error {
	keyword := strings.ToUpper(string(typ))

	dropped, err := queryStrings(ctx, tx, `SELECT name FROM main.sqlite_schema
WHERE type = ? AND sql IS NOT NULL AND `+userObjects+`
  AND name NOT IN (SELECT name FROM target.sqlite_schema WHERE type = ?)`, typ, typ)
	if err != nil {
		return errors.Wrap(err, "query dropped")
	}
	for _, name := range dropped {
		if err = db.exec(ctx, tx, "dropping", fmt.Sprintf("DROP %s IF EXISTS %q", keyword, name)); err != nil {
			return err
		}
	}

	changed, err := queryChanged(ctx, tx, `SELECT target.name, COALESCE(live.sql, ''), target.sql
FROM target.sqlite_schema AS target
LEFT JOIN main.sqlite_schema AS live ON live.name = target.name AND live.type = target.type
WHERE target.type = ? AND target.sql IS NOT NULL AND target.name NOT LIKE 'sqlite_%'
  AND (live.sql IS NULL OR live.sql <> target.sql)`, typ)
	if err != nil {
		return errors.Wrap(err, "query changed")
	}
	for _, c := range changed {
		if c.liveSQL != "" {
			if err = db.exec(ctx, tx, "dropping changed", fmt.Sprintf("DROP %s %q", keyword, c.name)); err != nil {
				return err
			}
		}
		if err = db.exec(ctx, tx, "creating", c.targetSQL); err != nil {
			return err
		}
	}
	return nil
}

// exec logs and executes a migration statement.
func (db *Database) exec(ctx context.Context, tx *sql.Tx, msg, stmt string) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, msg, slog.String("query", stmt))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, msg, slog.String("query", stmt))
	}
	return nil
}

type changedObject struct {
	name      string
	liveSQL   string
	targetSQL string
}

func queryChanged(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]changedObject, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()
	var out []changedObject
	for rows.Next() {
		var c changedObject
		if err = rows.Scan(&c.name, &c.liveSQL, &c.targetSQL); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

// queryStrings returns the first column of every row.
func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}

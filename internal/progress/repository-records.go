package progress

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/sqlite"
)

// sqliteRecordRepository implements recordRepository.
type sqliteRecordRepository struct {
	baseRepository
	logger *slog.Logger
}

func newSQLiteRecordRepository(db *sqlite.Database, logger *slog.Logger) *sqliteRecordRepository {
	return &sqliteRecordRepository{
		baseRepository: newBaseRepository(db),
		logger:         logger,
	}
}

// List returns every record ordered by metric and date.
func (r *sqliteRecordRepository) List(ctx context.Context) ([]Record, error) {
	return r.query(ctx, `
		SELECT id, metric, recorded_on, value, unit
		FROM records
		ORDER BY metric, recorded_on, id`)
}

// ListForMetric returns the records of metric, newest first.
func (r *sqliteRecordRepository) ListForMetric(ctx context.Context, metric string) ([]Record, error) {
	return r.query(ctx, `
		SELECT id, metric, recorded_on, value, unit
		FROM records
		WHERE metric = ?
		ORDER BY recorded_on DESC, id DESC`, metric)
}

func (r *sqliteRecordRepository) query(ctx context.Context, query string, args ...any) (_ []Record, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query records")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			recordedOn string
		)
		if err = rows.Scan(&rec.ID, &rec.Metric, &recordedOn, &rec.Value, &rec.Unit); err != nil {
			return nil, errors.Wrap(err, "scan record")
		}
		if rec.RecordedOn, err = time.Parse(time.DateOnly, recordedOn); err != nil {
			return nil, errors.Wrap(err, "parse recorded_on", slog.Int("id", rec.ID))
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return records, nil
}

// Add stores rec in the same transaction that raises the goal's current value when rec beats it.
func (r *sqliteRecordRepository) Add(ctx context.Context, rec Record) (Record, bool, error) {
	var raised bool
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var current float64
		err := tx.QueryRowContext(ctx, `SELECT current FROM goals WHERE metric = ?`, rec.Metric).Scan(&current)
		if err != nil {
			return errors.Wrap(notFoundIfNoRows(err), "query goal", slog.String("metric", rec.Metric))
		}

		var id int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO records (metric, recorded_on, value, unit)
			VALUES (?, ?, ?, ?)
			RETURNING id`,
			rec.Metric, rec.RecordedOn.Format(time.DateOnly), rec.Value, rec.Unit).Scan(&id)
		if err != nil {
			return errors.Wrap(err, "insert record")
		}
		rec.ID = int(id)

		if rec.Value > current {
			if _, err = tx.ExecContext(ctx, `UPDATE goals SET current = ? WHERE metric = ?`,
				rec.Value, rec.Metric); err != nil {
				return errors.Wrap(err, "raise goal current")
			}
			raised = true
		}
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	if raised {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "new personal record",
			slog.String("metric", rec.Metric), slog.Float64("value", rec.Value))
	}
	return rec, raised, nil
}

// Delete removes the record id of metric.
func (r *sqliteRecordRepository) Delete(ctx context.Context, metric string, id int) error {
	res, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM records WHERE id = ? AND metric = ?`, id, metric)
	if err != nil {
		return errors.Wrap(err, "delete record", slog.Int("id", id))
	}
	return requireAffected(res)
}

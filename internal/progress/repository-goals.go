package progress

import (
	"context"
	"log/slog"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/sqlite"
)

// sqliteGoalRepository implements goalRepository.
type sqliteGoalRepository struct {
	baseRepository
}

func newSQLiteGoalRepository(db *sqlite.Database) *sqliteGoalRepository {
	return &sqliteGoalRepository{
		baseRepository: newBaseRepository(db),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (Goal, error) {
	var (
		goal      Goal
		updatedAt string
	)
	if err := row.Scan(&goal.Metric, &goal.Current, &goal.Target, &goal.Unit, &goal.Notes, &updatedAt); err != nil {
		return Goal{}, err //nolint:wrapcheck // wrapped by the callers
	}
	t, err := parseTimestamp(updatedAt)
	if err != nil {
		return Goal{}, err
	}
	goal.UpdatedAt = t
	return goal, nil
}

// Get retrieves the goal of metric.
func (r *sqliteGoalRepository) Get(ctx context.Context, metric string) (Goal, error) {
	goal, err := scanGoal(r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT metric, current, target, unit, notes, updated_at
		FROM goals
		WHERE metric = ?`, metric))
	if err != nil {
		return Goal{}, errors.Wrap(notFoundIfNoRows(err), "query goal", slog.String("metric", metric))
	}
	return goal, nil
}

// List returns all goals ordered by metric.
func (r *sqliteGoalRepository) List(ctx context.Context) (_ []Goal, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT metric, current, target, unit, notes, updated_at
		FROM goals
		ORDER BY metric`)
	if err != nil {
		return nil, errors.Wrap(err, "query goals")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()

	var goals []Goal
	for rows.Next() {
		var goal Goal
		if goal, err = scanGoal(rows); err != nil {
			return nil, errors.Wrap(err, "scan goal")
		}
		goals = append(goals, goal)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return goals, nil
}

// Upsert creates the goal or replaces the values of an existing goal with the same metric.
func (r *sqliteGoalRepository) Upsert(ctx context.Context, goal Goal) (Goal, error) {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO goals (metric, current, target, unit, notes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (metric) DO UPDATE SET
			current = excluded.current,
			target = excluded.target,
			unit = excluded.unit,
			notes = excluded.notes`,
		goal.Metric, goal.Current, goal.Target, goal.Unit, goal.Notes)
	if err != nil {
		return Goal{}, errors.Wrap(err, "upsert goal", slog.String("metric", goal.Metric))
	}
	// The updated_at trigger runs after the statement so the row is read back.
	return r.Get(ctx, goal.Metric)
}

// Update modifies an existing goal. updateFn reports whether it changed anything.
func (r *sqliteGoalRepository) Update(
	ctx context.Context,
	metric string,
	updateFn func(goal *Goal) (bool, error),
) error {
	goal, err := r.Get(ctx, metric)
	if err != nil {
		return errors.Wrap(err, "get goal for update")
	}

	updated, err := updateFn(&goal)
	if err != nil {
		return errors.Wrap(err, "update function")
	}
	if !updated {
		return nil
	}

	res, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE goals
		SET current = ?, target = ?, unit = ?, notes = ?
		WHERE metric = ?`,
		goal.Current, goal.Target, goal.Unit, goal.Notes, metric)
	if err != nil {
		return errors.Wrap(err, "update goal", slog.String("metric", metric))
	}
	return requireAffected(res)
}

// Delete removes the goal and, through the foreign key, its records.
func (r *sqliteGoalRepository) Delete(ctx context.Context, metric string) error {
	res, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM goals WHERE metric = ?`, metric)
	if err != nil {
		return errors.Wrap(err, "delete goal", slog.String("metric", metric))
	}
	return requireAffected(res)
}

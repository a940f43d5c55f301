package progress

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// repository contains the repositories of the progress aggregates.
type repository struct {
	goals   goalRepository
	records recordRepository
	profile profileRepository
}

type goalRepository interface {
	Get(ctx context.Context, metric string) (Goal, error)
	List(ctx context.Context) ([]Goal, error)
	Upsert(ctx context.Context, goal Goal) (Goal, error)
	Update(ctx context.Context, metric string, updateFn func(goal *Goal) (bool, error)) error
	Delete(ctx context.Context, metric string) error
}

type recordRepository interface {
	List(ctx context.Context) ([]Record, error)
	ListForMetric(ctx context.Context, metric string) ([]Record, error)
	// Add stores rec and raises the goal's current value when rec beats it. The boolean reports a new
	// personal record.
	Add(ctx context.Context, rec Record) (Record, bool, error)
	Delete(ctx context.Context, metric string, id int) error
}

type profileRepository interface {
	Get(ctx context.Context) (Profile, error)
	Set(ctx context.Context, profile Profile) error
}

// repositoryFactory creates repository instances.
type repositoryFactory struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newRepositoryFactory(db *sqlite.Database, logger *slog.Logger) *repositoryFactory {
	return &repositoryFactory{
		db:     db,
		logger: logger,
	}
}

func (f *repositoryFactory) newRepository() *repository {
	return &repository{
		goals:   newSQLiteGoalRepository(f.db),
		records: newSQLiteRecordRepository(f.db, f.logger),
		profile: newSQLiteProfileRepository(f.db),
	}
}

// baseRepository holds what every SQLite repository needs.
type baseRepository struct {
	db *sqlite.Database
}

func newBaseRepository(db *sqlite.Database) baseRepository {
	return baseRepository{db: db}
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse timestamp", slog.String("timestamp", s))
	}
	return t, nil
}

// notFoundIfNoRows maps sql.ErrNoRows to [ErrNotFound].
func notFoundIfNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// requireAffected returns [ErrNotFound] when res touched no rows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

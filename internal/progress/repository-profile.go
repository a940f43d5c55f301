package progress

import (
	"context"
	"database/sql"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/projection"
	"github.com/myrjola/liftlog/internal/sqlite"
)

// sqliteProfileRepository implements profileRepository on the single profile row.
type sqliteProfileRepository struct {
	baseRepository
}

func newSQLiteProfileRepository(db *sqlite.Database) *sqliteProfileRepository {
	return &sqliteProfileRepository{
		baseRepository: newBaseRepository(db),
	}
}

// Get returns the profile. A missing row yields the default intermediate profile.
func (r *sqliteProfileRepository) Get(ctx context.Context) (Profile, error) {
	var (
		level  string
		weight sql.NullFloat64
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT experience_level, body_weight_kg
		FROM profile
		WHERE id = 1`).Scan(&level, &weight)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{Level: projection.LevelIntermediate, BodyWeightKg: nil}, nil
	}
	if err != nil {
		return Profile{}, errors.Wrap(err, "query profile")
	}

	profile := Profile{Level: projection.ParseExperienceLevel(level), BodyWeightKg: nil}
	if weight.Valid {
		profile.BodyWeightKg = &weight.Float64
	}
	return profile, nil
}

// Set saves the profile.
func (r *sqliteProfileRepository) Set(ctx context.Context, profile Profile) error {
	var weight sql.NullFloat64
	if profile.BodyWeightKg != nil {
		weight = sql.NullFloat64{Float64: *profile.BodyWeightKg, Valid: true}
	}
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO profile (id, experience_level, body_weight_kg)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			experience_level = excluded.experience_level,
			body_weight_kg = excluded.body_weight_kg,
			updated_at = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`,
		string(profile.Level), weight)
	if err != nil {
		return errors.Wrap(err, "save profile")
	}
	return nil
}

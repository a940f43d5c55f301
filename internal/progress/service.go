package progress

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/projection"
	"github.com/myrjola/liftlog/internal/sqlite"
	"golang.org/x/sync/errgroup"
)

// overviewConcurrency bounds the projections computed in parallel by [Service.Overview].
const overviewConcurrency = 4

// Config tunes the service.
type Config struct {
	// MemoCacheBytes is the size of the projection memo. Sizes too small to hold the largest projection
	// the engine's tunables allow are raised to fit it.
	MemoCacheBytes int
	// MemoTTL is how long a memoized projection lives. Zero keeps entries until they are evicted.
	MemoTTL time.Duration
	// Observer counts memo hits and misses. It may be nil.
	Observer MemoObserver
}

// Service handles goals, records and their projections.
type Service struct {
	repo   *repository
	db     *sqlite.Database
	engine *projection.Engine
	memo   *memo
	logger *slog.Logger
}

// NewService creates a new progress service.
func NewService(db *sqlite.Database, engine *projection.Engine, logger *slog.Logger, cfg Config) *Service {
	factory := newRepositoryFactory(db, logger)
	return &Service{
		repo:   factory.newRepository(),
		db:     db,
		engine: engine,
		memo:   newMemo(cfg.MemoCacheBytes, engine.Tunables(), cfg.MemoTTL, cfg.Observer, logger),
		logger: logger,
	}
}

// Engine returns the projection engine the service uses.
func (s *Service) Engine() *projection.Engine {
	return s.engine
}

// ListGoals returns all goals ordered by metric.
func (s *Service) ListGoals(ctx context.Context) ([]Goal, error) {
	goals, err := s.repo.goals.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list goals")
	}
	return goals, nil
}

// GetGoal returns the goal of metric or [ErrNotFound].
func (s *Service) GetGoal(ctx context.Context, metric string) (Goal, error) {
	goal, err := s.repo.goals.Get(ctx, metric)
	if err != nil {
		return Goal{}, errors.Wrap(err, "get goal")
	}
	return goal, nil
}

// SaveGoal creates a goal or replaces an existing goal of the same metric. The metric is trimmed and an
// empty unit defaults to kilograms.
func (s *Service) SaveGoal(ctx context.Context, goal Goal) (Goal, error) {
	goal.Metric = strings.TrimSpace(goal.Metric)
	goal.Unit = strings.TrimSpace(goal.Unit)
	if goal.Unit == "" {
		goal.Unit = defaultUnit
	}
	if err := validateGoal(goal); err != nil {
		return Goal{}, err
	}
	saved, err := s.repo.goals.Upsert(ctx, goal)
	if err != nil {
		return Goal{}, errors.Wrap(err, "save goal")
	}
	return saved, nil
}

func validateGoal(goal Goal) error {
	switch {
	case goal.Metric == "":
		return errors.Wrap(ErrInvalidGoal, "metric is required")
	case utf8.RuneCountInString(goal.Metric) > maxMetricLength:
		return errors.Wrap(ErrInvalidGoal, "metric too long", slog.Int("max", maxMetricLength))
	case !isFinite(goal.Current) || goal.Current < 0:
		return errors.Wrap(ErrInvalidGoal, "current must be a non-negative number")
	case !isFinite(goal.Target) || goal.Target <= 0:
		return errors.Wrap(ErrInvalidGoal, "target must be a positive number")
	case utf8.RuneCountInString(goal.Unit) > maxUnitLength:
		return errors.Wrap(ErrInvalidGoal, "unit too long", slog.Int("max", maxUnitLength))
	case utf8.RuneCountInString(goal.Notes) > maxNotesLength:
		return errors.Wrap(ErrInvalidGoal, "notes too long", slog.Int("max", maxNotesLength))
	default:
		return nil
	}
}

// UpdateNotes replaces the markdown notes of a goal.
func (s *Service) UpdateNotes(ctx context.Context, metric, notes string) error {
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return errors.Wrap(ErrInvalidGoal, "notes too long", slog.Int("max", maxNotesLength))
	}
	err := s.repo.goals.Update(ctx, metric, func(goal *Goal) (bool, error) {
		if goal.Notes == notes {
			return false, nil
		}
		goal.Notes = notes
		return true, nil
	})
	if err != nil {
		return errors.Wrap(err, "update notes")
	}
	return nil
}

// DeleteGoal removes the goal and its records.
func (s *Service) DeleteGoal(ctx context.Context, metric string) error {
	if err := s.repo.goals.Delete(ctx, metric); err != nil {
		return errors.Wrap(err, "delete goal")
	}
	return nil
}

// LogRecord stores a performance for an existing goal. A zero date means today and an empty unit means the
// goal's unit. When the value beats the goal's current value the goal is raised to it and the boolean
// reports the new personal record.
func (s *Service) LogRecord(ctx context.Context, rec Record) (Record, bool, error) {
	rec.Unit = strings.TrimSpace(rec.Unit)
	if !isFinite(rec.Value) || rec.Value < 0 {
		return Record{}, false, errors.Wrap(ErrInvalidRecord, "value must be a non-negative number")
	}
	if utf8.RuneCountInString(rec.Unit) > maxUnitLength {
		return Record{}, false, errors.Wrap(ErrInvalidRecord, "unit too long", slog.Int("max", maxUnitLength))
	}
	if rec.RecordedOn.IsZero() {
		rec.RecordedOn = s.engine.Today()
	}
	if rec.Unit == "" {
		goal, err := s.repo.goals.Get(ctx, rec.Metric)
		if err != nil {
			return Record{}, false, errors.Wrap(err, "get goal")
		}
		rec.Unit = goal.Unit
	}

	saved, raised, err := s.repo.records.Add(ctx, rec)
	if err != nil {
		return Record{}, false, errors.Wrap(err, "add record")
	}
	return saved, raised, nil
}

// DeleteRecord removes a record of metric. The goal's current value is left as it is.
func (s *Service) DeleteRecord(ctx context.Context, metric string, id int) error {
	if err := s.repo.records.Delete(ctx, metric, id); err != nil {
		return errors.Wrap(err, "delete record")
	}
	return nil
}

// History returns the records of metric, newest first.
func (s *Service) History(ctx context.Context, metric string) ([]Record, error) {
	records, err := s.repo.records.ListForMetric(ctx, metric)
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	return records, nil
}

// GetProfile returns the experience level and body weight.
func (s *Service) GetProfile(ctx context.Context) (Profile, error) {
	profile, err := s.repo.profile.Get(ctx)
	if err != nil {
		return Profile{}, errors.Wrap(err, "get profile")
	}
	return profile, nil
}

// SaveProfile validates and stores the profile.
func (s *Service) SaveProfile(ctx context.Context, profile Profile) error {
	if !slices.Contains(projection.Levels(), profile.Level) {
		return errors.Wrap(ErrInvalidProfile, "unknown experience level", slog.String("level", string(profile.Level)))
	}
	if w := profile.BodyWeightKg; w != nil && (!isFinite(*w) || *w <= 0) {
		return errors.Wrap(ErrInvalidProfile, "body weight must be a positive number")
	}
	if err := s.repo.profile.Set(ctx, profile); err != nil {
		return errors.Wrap(err, "save profile")
	}
	return nil
}

// Projection estimates the goal of metric from its records and the profile.
func (s *Service) Projection(ctx context.Context, metric string) (GoalProjection, error) {
	goal, err := s.repo.goals.Get(ctx, metric)
	if err != nil {
		return GoalProjection{}, errors.Wrap(err, "get goal")
	}
	records, err := s.repo.records.ListForMetric(ctx, metric)
	if err != nil {
		return GoalProjection{}, errors.Wrap(err, "list records")
	}
	profile, err := s.repo.profile.Get(ctx)
	if err != nil {
		return GoalProjection{}, errors.Wrap(err, "get profile")
	}
	return GoalProjection{Goal: goal, Projection: s.project(ctx, goal, records, profile)}, nil
}

// Chart lays the goal's display and projected series out in a width × height area. selected is the index
// of the highlighted point or nil.
func (s *Service) Chart(ctx context.Context, metric string, width, height float64, selected *int) (Chart, error) {
	gp, err := s.Projection(ctx, metric)
	if err != nil {
		return Chart{}, err
	}
	timeline := projection.Timeline(gp.Projection.DisplaySeries, gp.Projection.ProjectedSeries)
	geometry := s.engine.MapToChartGeometry(timeline, gp.Goal.Target, width, height, selected)
	return Chart{
		Goal:       gp.Goal,
		Projection: gp.Projection,
		Timeline:   timeline,
		Geometry:   geometry,
		TargetY:    geometry.Height - gp.Goal.Target*geometry.YScale,
	}, nil
}

// Overview projects every goal. Projections run concurrently and keep the goal order.
func (s *Service) Overview(ctx context.Context) ([]GoalProjection, error) {
	goals, err := s.repo.goals.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list goals")
	}
	records, err := s.repo.records.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	profile, err := s.repo.profile.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}

	byMetric := make(map[string][]Record, len(goals))
	for _, rec := range records {
		byMetric[rec.Metric] = append(byMetric[rec.Metric], rec)
	}

	out := make([]GoalProjection, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, goal := range goals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // context error
			}
			out[i] = GoalProjection{Goal: goal, Projection: s.project(gctx, goal, byMetric[goal.Metric], profile)}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, errors.Wrap(err, "project goals")
	}
	return out, nil
}

// Export writes all goals, records and the profile into a new SQLite file in dir.
func (s *Service) Export(ctx context.Context, dir string) (string, error) {
	path, err := s.db.Export(ctx, dir)
	if err != nil {
		return "", errors.Wrap(err, "export")
	}
	return path, nil
}

func (s *Service) project(ctx context.Context, goal Goal, records []Record, profile Profile) projection.ProjectionResult {
	in := projectionInput{
		today:  s.engine.Today(),
		goal:   metricGoal(goal, records),
		level:  profile.Level,
		weight: profile.BodyWeightKg,
	}
	return s.memo.project(ctx, in, func() projection.ProjectionResult {
		return s.engine.Project(in.goal, in.level, in.weight)
	})
}

// metricGoal converts stored data into the engine's snapshot. History is ordered oldest first so that the
// same data always produces the same memo key.
func metricGoal(goal Goal, records []Record) projection.MetricGoal {
	records = slices.Clone(records)
	slices.SortFunc(records, func(a, b Record) int {
		if c := a.RecordedOn.Compare(b.RecordedOn); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	history := make([]projection.RawSample, len(records))
	for i, rec := range records {
		history[i] = projection.RawSample{
			Metric: rec.Metric,
			Date:   rec.RecordedOn.Format(time.DateOnly),
			Value:  rec.Value,
		}
	}
	return projection.MetricGoal{
		Metric:  goal.Metric,
		Current: goal.Current,
		Target:  goal.Target,
		Unit:    goal.Unit,
		History: history,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

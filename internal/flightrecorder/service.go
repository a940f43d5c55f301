// Package flightrecorder keeps a rolling runtime trace and dumps it to disk when a request misbehaves.
package flightrecorder

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"

	"github.com/myrjola/liftlog/internal/errors"
)

const (
	defaultMinAge   = 2 * time.Minute
	defaultMaxBytes = 32 * 1024 * 1024
	defaultCooldown = 30 * time.Minute
)

// Config configures the flight recorder service. Zero durations and sizes use defaults.
type Config struct {
	Logger *slog.Logger
	// Directory receives the trace files. It is created when missing.
	Directory string
	MinAge    time.Duration
	MaxBytes  uint64
	// Cooldown is the minimum time between two captures.
	Cooldown time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service manages the flight recorder.
type Service struct {
	logger      *slog.Logger
	recorder    *trace.FlightRecorder
	directory   string
	cooldown    time.Duration
	now         func() time.Time
	lastCapture atomic.Int64
}

// New creates a flight recorder service. Call [Service.Start] to begin recording.
func New(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Directory == "" {
		return nil, errors.New("traces directory is required")
	}
	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil { //nolint:mnd // rwxr-x---
		return nil, errors.Wrap(err, "create traces directory", slog.String("dir", cfg.Directory))
	}

	s := &Service{
		logger: cfg.Logger,
		recorder: trace.NewFlightRecorder(trace.FlightRecorderConfig{
			MinAge:   cmp.Or(cfg.MinAge, defaultMinAge),
			MaxBytes: cmp.Or(cfg.MaxBytes, defaultMaxBytes),
		}),
		directory:   cfg.Directory,
		cooldown:    cmp.Or(cfg.Cooldown, defaultCooldown),
		now:         cfg.Now,
		lastCapture: atomic.Int64{},
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Start begins recording.
func (s *Service) Start(ctx context.Context) error {
	if err := s.recorder.Start(); err != nil {
		return errors.Wrap(err, "start flight recorder")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("dir", s.directory), slog.Duration("cooldown", s.cooldown))
	return nil
}

// Stop ends recording.
func (s *Service) Stop(ctx context.Context) {
	s.recorder.Stop()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the recorded trace to a file named after reason. Captures within the cooldown of the
// previous one are skipped. It returns the file path and whether a trace was written.
func (s *Service) Capture(ctx context.Context, reason string) (string, bool) {
	now := s.now()
	last := s.lastCapture.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < s.cooldown {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture during cooldown",
			slog.Time("last_capture", time.Unix(0, last)))
		return "", false
	}
	if !s.lastCapture.CompareAndSwap(last, now.UnixNano()) {
		return "", false
	}

	path := filepath.Join(s.directory, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405")))
	if err := s.write(path); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to capture trace", errors.SlogError(err))
		return "", false
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace", slog.String("file", path), slog.String("reason", reason))
	return path, true
}

func (s *Service) write(path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create trace file", slog.String("file", path))
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	if _, err = s.recorder.WriteTo(file); err != nil {
		return errors.Wrap(err, "write trace", slog.String("file", path))
	}
	return nil
}

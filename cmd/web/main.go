package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/myrjola/liftlog/internal/envstruct"
	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/flightrecorder"
	"github.com/myrjola/liftlog/internal/logging"
	"github.com/myrjola/liftlog/internal/metrics"
	"github.com/myrjola/liftlog/internal/progress"
	"github.com/myrjola/liftlog/internal/projection"
	"github.com/myrjola/liftlog/internal/sqlite"
	"github.com/yuin/goldmark"
)

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	templateFS     fs.FS
	progress       *progress.Service
	metrics        *metrics.Metrics
	markdown       goldmark.Markdown
	exportDir      string
	// flightRecorder is nil unless a traces directory is configured.
	flightRecorder *flightrecorder.Service
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"LIFTLOG_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"LIFTLOG_SQLITE_URL" envDefault:"./liftlog.sqlite3"`
	// TemplatePath is the path to the directory containing the HTML templates.
	TemplatePath string `env:"LIFTLOG_TEMPLATE_PATH" envDefault:""`
	// TunablesPath is an optional YAML file overriding the projection tunables.
	TunablesPath string `env:"LIFTLOG_TUNABLES_PATH" envDefault:""`
	// Today pins the current date, formatted as 2006-01-02, for demos and tests.
	Today string `env:"LIFTLOG_TODAY" envDefault:""`
	// MemoCacheMB is the size of the projection memo in megabytes.
	MemoCacheMB int `env:"LIFTLOG_MEMO_CACHE_MB" envDefault:"8"`
	// MemoTTLSeconds is how long a memoized projection is kept.
	MemoTTLSeconds int `env:"LIFTLOG_MEMO_TTL_SECONDS" envDefault:"600"`
	// ExportDir is where data exports are staged before download. Empty means the OS temp directory.
	ExportDir string `env:"LIFTLOG_EXPORT_DIR" envDefault:""`
	// TracesDirectory enables the flight recorder, which dumps a runtime trace there when a request times out.
	TracesDirectory string `env:"LIFTLOG_TRACES_DIRECTORY" envDefault:""`
}

// loggingConfig is read before everything else so that startup failures are logged.
type loggingConfig struct {
	// LogFile is an optional path of a rotating log file.
	LogFile string `env:"LIFTLOG_LOG_FILE" envDefault:""`
	// LogLevel is debug, info, warn or error.
	LogLevel string `env:"LIFTLOG_LOG_LEVEL" envDefault:"debug"`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	var htmlTemplatePath string
	if htmlTemplatePath, err = resolveAndVerifyTemplatePath(cfg.TemplatePath); err != nil {
		return errors.Wrap(err, "resolve template path")
	}

	tunables, err := projection.LoadTunablesFile(cfg.TunablesPath)
	if err != nil {
		return errors.Wrap(err, "load tunables", slog.String("path", cfg.TunablesPath))
	}
	clock, err := newClock(cfg.Today)
	if err != nil {
		return errors.Wrap(err, "parse today", slog.String("today", cfg.Today))
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	m := metrics.New()
	engine := projection.NewEngine(tunables, clock)
	app := application{
		logger:         logger,
		sessionManager: initializeSessionManager(db),
		templateFS:     os.DirFS(htmlTemplatePath),
		progress: progress.NewService(db, engine, logger, progress.Config{
			MemoCacheBytes: cfg.MemoCacheMB * 1024 * 1024, //nolint:mnd // megabytes
			MemoTTL:        time.Duration(cfg.MemoTTLSeconds) * time.Second,
			Observer:       m,
		}),
		metrics:   m,
		markdown:  newMarkdown(),
		exportDir: cfg.ExportDir,
	}

	if cfg.TracesDirectory != "" {
		if app.flightRecorder, err = flightrecorder.New(flightrecorder.Config{ //nolint:exhaustruct // defaults
			Logger:    logger,
			Directory: cfg.TracesDirectory,
		}); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = app.flightRecorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer app.flightRecorder.Stop(context.WithoutCancel(ctx))
	}

	var handler http.Handler
	if handler, err = app.routes(); err != nil {
		return errors.Wrap(err, "routes")
	}
	if err = app.configureAndStartServer(ctx, cfg.Addr, handler); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

// newClock returns nil, meaning wall-clock time, unless today pins a date.
func newClock(today string) (func() time.Time, error) {
	if today == "" {
		return nil, nil //nolint:nilnil // nil clock means time.Now
	}
	t, err := time.Parse(time.DateOnly, today)
	if err != nil {
		return nil, errors.Wrap(err, "parse date")
	}
	return func() time.Time { return t }, nil
}

func initializeSessionManager(dbs *sqlite.Database) *scs.SessionManager {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(dbs.ReadWrite, 24*time.Hour) //nolint:mnd // day
	sessionManager.Lifetime = 30 * 24 * time.Hour                                          //nolint:mnd // a month
	sessionManager.Cookie.Persist = true
	sessionManager.Cookie.Secure = true
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	return sessionManager
}

func main() {
	ctx := context.Background()
	var logCfg loggingConfig
	if err := envstruct.Populate(&logCfg, os.LookupEnv); err != nil {
		slog.Default().LogAttrs(ctx, slog.LevelError, "invalid logging config", errors.SlogError(err))
		os.Exit(1)
	}
	logger, logFile := logging.NewLogger(os.Stdout, logging.Options{File: logCfg.LogFile, Level: logCfg.LogLevel})

	err := run(ctx, logger, os.LookupEnv)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
	}
	_ = logFile.Close()
	if err != nil {
		os.Exit(1)
	}
}

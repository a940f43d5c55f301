package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/myrjola/liftlog/internal/e2etest"
	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/logging"
	"github.com/myrjola/liftlog/internal/testhelpers"
	"golang.org/x/sync/errgroup"
)

const (
	scenarioTimeout         = 60 * time.Second
	maxConcurrentOperations = 20
	numLifters              = 10
	historyWeeks            = 26 // 6 months of weekly records
	daysPerWeek             = 7
	baseWeight              = 60.0
	weeklyGain              = 1.25
	targetGain              = 40.0
	successRateThreshold    = 95.0
	expectedArgsCount       = 2
	percentageMultiplier    = 100
)

// Lifter is a client with its own session cookie and goal metric.
type Lifter struct {
	Client *e2etest.Client
	Metric string
}

func (l *Lifter) goalPath() string {
	return "/goals/" + url.PathEscape(l.Metric)
}

func expectOK(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("unexpected status", slog.Int("status", resp.StatusCode))
	}
	return nil
}

// SetupLifters creates a client and a goal per lifter.
func SetupLifters(ctx context.Context, baseURL string, runID int64, logger *slog.Logger) ([]*Lifter, error) {
	lifters := make([]*Lifter, numLifters)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)
	for i := range numLifters {
		g.Go(func() error {
			client, err := e2etest.NewClient(baseURL)
			if err != nil {
				return errors.Wrap(err, "create client", slog.Int("lifter", i))
			}
			l := &Lifter{Client: client, Metric: fmt.Sprintf("stresstest %d-%d", runID, i)}
			if err = expectOK(client.PostForm(ctx, "/goals", url.Values{
				"metric":  {l.Metric},
				"current": {strconv.FormatFloat(baseWeight, 'f', -1, 64)},
				"target":  {strconv.FormatFloat(baseWeight+targetGain, 'f', -1, 64)},
				"unit":    {"kg"},
			})); err != nil {
				return errors.Wrap(err, "create goal", slog.String("metric", l.Metric))
			}
			lifters[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "lifters created", slog.Int("num_lifters", len(lifters)))
	return lifters, nil
}

// GenerateHistory logs a record per week so the projections take the history-based path.
func GenerateHistory(ctx context.Context, l *Lifter) error {
	start := time.Now().AddDate(0, 0, -historyWeeks*daysPerWeek)
	for week := range historyWeeks {
		date := start.AddDate(0, 0, week*daysPerWeek).Format(time.DateOnly)
		value := baseWeight + float64(week)*weeklyGain
		if err := expectOK(l.Client.PostForm(ctx, l.goalPath()+"/records", url.Values{
			"value": {strconv.FormatFloat(value, 'f', -1, 64)},
			"date":  {date},
		})); err != nil {
			return errors.Wrap(err, "log record", slog.String("date", date))
		}
	}
	return nil
}

// ProgressScenario exercises the read paths of a goal the way a lifter browsing the app would.
func ProgressScenario(ctx context.Context, l *Lifter, logger *slog.Logger) error {
	doc, err := l.Client.GetDoc(ctx, "/")
	if err != nil {
		return errors.Wrap(err, "get home")
	}
	if doc.Find(".goals .goal").Length() == 0 {
		return errors.New("home lists no goals")
	}

	var projection struct {
		Projection struct {
			Path string `json:"path"`
		} `json:"projection"`
	}
	if err = l.Client.GetJSON(ctx, "/api"+l.goalPath()+"/projection", &projection); err != nil {
		return errors.Wrap(err, "get projection")
	}
	if err = expectOK(l.Client.Get(ctx, l.goalPath()+"/chart.png")); err != nil {
		return errors.Wrap(err, "get chart")
	}
	if err = expectOK(l.Client.PostForm(ctx, l.goalPath()+"/select/0", nil)); err != nil {
		return errors.Wrap(err, "select point")
	}
	if doc, err = l.Client.GetDoc(ctx, l.goalPath()); err != nil {
		return errors.Wrap(err, "get goal")
	}
	if doc.Find(".selected-point").Length() == 0 {
		return errors.New("selected point not shown")
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "scenario completed",
		slog.String("metric", l.Metric), slog.String("path", projection.Projection.Path))
	return nil
}

// RunLoadTest runs the history generation and progress scenario for every lifter concurrently.
func RunLoadTest(ctx context.Context, lifters []*Lifter, logger *slog.Logger) error {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_lifters", len(lifters)))

	var successCount, failureCount int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)

	for _, l := range lifters {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			err := GenerateHistory(scenarioCtx, l)
			if err == nil {
				err = ProgressScenario(scenarioCtx, l, logger)
			}
			if err != nil {
				atomic.AddInt64(&failureCount, 1)
				// Failures are counted, not propagated, so the other scenarios keep running.
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.String("metric", l.Metric), errors.SlogError(err))
				return nil
			}
			atomic.AddInt64(&successCount, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "load test")
	}

	successRate := float64(successCount) / float64(len(lifters)) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount),
		slog.Int64("failed", failureCount),
		slog.Float64("success_rate", successRate))
	if successRate < successRateThreshold {
		return errors.New("success rate below threshold", slog.Float64("success_rate", successRate))
	}
	return nil
}

// Cleanup deletes the goals created by the run.
func Cleanup(ctx context.Context, lifters []*Lifter) error {
	var errs []error
	for _, l := range lifters {
		if err := expectOK(l.Client.PostForm(ctx, l.goalPath()+"/delete", nil)); err != nil {
			errs = append(errs, errors.Wrap(err, "delete goal", slog.String("metric", l.Metric)))
		}
	}
	return errors.Join(errs...)
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	baseURL := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		baseURL = "http://" + hostname
	}

	client, err := e2etest.NewClient(baseURL)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", errors.SlogError(err))
		os.Exit(1)
	}

	lifters, err := SetupLifters(ctx, baseURL, start.Unix(), logger)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to set up lifters", errors.SlogError(err))
		os.Exit(1)
	}

	loadErr := RunLoadTest(ctx, lifters, logger)
	if err = Cleanup(ctx, lifters); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "cleanup failed", errors.SlogError(err))
	}
	if loadErr != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", errors.SlogError(loadErr))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully 🙌",
		slog.Duration("total_duration", time.Since(start)))
}

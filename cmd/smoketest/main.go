package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/myrjola/liftlog/internal/e2etest"
	"github.com/myrjola/liftlog/internal/errors"
	"github.com/myrjola/liftlog/internal/logging"
	"github.com/myrjola/liftlog/internal/testhelpers"
)

// smokeGoal creates a throwaway goal, logs a record, reads its projection and deletes it again.
func smokeGoal(ctx context.Context, client *e2etest.Client, metric string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()
	path := "/goals/" + url.PathEscape(metric)

	if err = expectOK(client.PostForm(ctx, "/goals", url.Values{
		"metric": {metric}, "current": {"50"}, "target": {"60"}, "unit": {"kg"},
	})); err != nil {
		return errors.Wrap(err, "create goal")
	}
	defer func() {
		if deleteErr := expectOK(client.PostForm(ctx, path+"/delete", nil)); deleteErr != nil {
			err = errors.Join(err, errors.Wrap(deleteErr, "delete goal"))
		}
	}()

	if err = expectOK(client.PostForm(ctx, path+"/records", url.Values{"value": {"55"}})); err != nil {
		return errors.Wrap(err, "log record")
	}

	var got struct {
		Goal struct {
			Current float64 `json:"current"`
		} `json:"goal"`
		Projection struct {
			TimeToGoal string `json:"time_to_goal"`
		} `json:"projection"`
	}
	if err = client.GetJSON(ctx, "/api"+path+"/projection", &got); err != nil {
		return errors.Wrap(err, "get projection")
	}
	if got.Goal.Current != 55 { //nolint:mnd // the logged record
		return errors.New("record did not raise the goal", slog.Float64("current", got.Goal.Current))
	}
	if got.Projection.TimeToGoal == "" {
		return errors.New("projection has no time to goal")
	}
	return nil
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

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		client   *e2etest.Client
		err      error
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	baseURL := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		baseURL = "http://" + hostname
	}

	if client, err = e2etest.NewClient(baseURL); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating client", errors.SlogError(err))
		os.Exit(1)
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", errors.SlogError(err))
		os.Exit(1)
	}
	metric := fmt.Sprintf("smoketest %d", start.Unix())
	if err = smokeGoal(ctx, client, metric); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing goals", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
	os.Exit(0)
}

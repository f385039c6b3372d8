package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/uncertainty-goals/internal/model"
	"github.com/sells-group/uncertainty-goals/internal/resilience"
	"github.com/sells-group/uncertainty-goals/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "uncertainty-goals.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Store.ConnectAttempts
		retry.OnRetry = resilience.RetryLogger("postgres connect")
		st, err = resilience.DoVal(ctx, retry, func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
				MaxConns: cfg.Store.MaxConns,
				MinConns: cfg.Store.MinConns,
			})
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// recordRun stores a finished run. runErr, when set, marks the run failed.
func recordRun(ctx context.Context, st store.Store, kind model.RunKind, ref model.PlanRef, result *model.RunResult, runErr error) (string, error) {
	run, err := st.CreateRun(ctx, kind, ref)
	if err != nil {
		return "", eris.Wrap(err, "record run")
	}
	if runErr != nil {
		result = &model.RunResult{Error: runErr.Error()}
	}
	if err := st.UpdateRunResult(ctx, run.ID, result); err != nil {
		return run.ID, eris.Wrap(err, "record run result")
	}
	return run.ID, nil
}

// printer formats counts with thousands separators.
var printer = message.NewPrinter(language.English)

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/inputs"
	"github.com/sells-group/site-selection/internal/store"
)

// appEnv holds the store and input loader shared by the dashboard commands.
type appEnv struct {
	Store  *store.SQLiteStore // nil when the store could not be opened
	Loader *inputs.Loader
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the local SQLite store.
func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates the config for mode and wires the loader to the store's
// source cache. A store that cannot be opened only disables caching and the
// run log.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{}
	st, err := initStore(ctx)
	if err != nil {
		zap.L().Warn("store unavailable, running without source cache and run log", zap.Error(err))
		env.Loader = inputs.New(cfg, nil)
		return env, nil
	}
	env.Store = st
	env.Loader = inputs.New(cfg, st)
	return env, nil
}

// recordRun logs a render to the run log when the store is available.
func (e *appEnv) recordRun(ctx context.Context, run store.Run) {
	if e.Store == nil {
		return
	}
	if _, err := e.Store.RecordRun(ctx, run); err != nil {
		zap.L().Warn("record run failed", zap.String("kind", run.Kind), zap.Error(err))
	}
}

// writeTo runs write against path, or stdout when path is empty or "-".
func writeTo(path string, write func(w io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	zap.L().Info("wrote output", zap.String("path", path))
	return nil
}

// printWarnings writes warnings to stderr the way the dashboard shows them.
func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", strings.TrimSpace(msg))
	}
}

// Package cli is the levelup command line: one cobra command per
// application operation, all sharing the wiring in internal/app.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alem-hub/levelup/config"
	"github.com/alem-hub/levelup/internal/app"
	"github.com/alem-hub/levelup/internal/infrastructure/observability"
	"github.com/alem-hub/levelup/pkg/logger"
	"github.com/alem-hub/levelup/pkg/timeutil"
	"github.com/spf13/cobra"
)

// Options configures NewRootCommand.
type Options struct {
	// Environ replaces the process environment when non-nil.
	Environ map[string]string

	// Clock overrides the wall clock.
	Clock timeutil.Clock

	// Log receives structured logs. Defaults to stderr.
	Log io.Writer
}

type runtime struct {
	opts     Options
	app      *app.App
	shutdown observability.ShutdownFunc
}

// NewRootCommand builds the command tree.
func NewRootCommand(opts Options) *cobra.Command {
	rt := &runtime{opts: opts}

	root := &cobra.Command{
		Use:           "levelup",
		Short:         "Experience points, levels and daily streaks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.start(cmd)
		},
	}
	root.PersistentFlags().String("store", "", "Store driver: memory, postgres, sqlite (overrides STORE_DRIVER)")
	root.PersistentFlags().String("db", "", "SQLite path or Postgres URL, depending on --store")

	root.AddCommand(
		newMigrateCommand(rt),
		newLevelCommand(rt),
		newStreakCommand(rt),
		newPointsCommand(rt),
	)
	return root
}

// Execute runs the CLI against the process environment.
func Execute(ctx context.Context) error {
	return NewRootCommand(Options{}).ExecuteContext(ctx)
}

func (rt *runtime) start(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := rt.loadConfig(cmd)
	if err != nil {
		return err
	}

	out := rt.opts.Log
	if out == nil {
		out = os.Stderr
	}
	log := logger.New(logger.Options{
		Output: out,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.String("service", cfg.App.Name))

	rt.shutdown, err = observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Endpoint:       cfg.Observability.TracingEndpoint,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	rt.app, err = app.New(ctx, cfg, log, app.Options{Clock: rt.opts.Clock})
	if err != nil {
		_ = rt.shutdown(ctx)
		return err
	}
	return nil
}

// run adapts an operation to cobra's RunE. The application is closed
// whether or not fn fails.
func (rt *runtime) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		defer func() {
			if stopErr := rt.stop(ctx); stopErr != nil && err == nil {
				err = stopErr
			}
		}()
		return fn(ctx, cmd, args)
	}
}

func (rt *runtime) stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if rt.app != nil {
		err = rt.app.Close()
		rt.app = nil
	}
	if rt.shutdown != nil {
		if shErr := rt.shutdown(ctx); shErr != nil && err == nil {
			err = shErr
		}
		rt.shutdown = nil
	}
	return err
}

func (rt *runtime) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	environ := rt.opts.Environ
	if environ == nil {
		environ = make(map[string]string)
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				environ[k] = v
			}
		}
	} else {
		copied := make(map[string]string, len(environ))
		for k, v := range environ {
			copied[k] = v
		}
		environ = copied
	}

	// flags win over the environment
	if driver, _ := cmd.Flags().GetString("store"); driver != "" {
		environ["STORE_DRIVER"] = driver
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		// a bare --db means a sqlite file
		if environ["STORE_DRIVER"] == config.DriverPostgres {
			environ["DATABASE_URL"] = db
		} else {
			environ["STORE_DRIVER"] = config.DriverSQLite
			environ["SQLITE_PATH"] = db
		}
	}
	return config.LoadFrom(environ)
}

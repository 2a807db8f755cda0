// Package cli implements the fitctl command line client.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"example.com/fittracker/internal/bootstrap"
	"example.com/fittracker/internal/config"
	"example.com/fittracker/internal/logging"
	"example.com/fittracker/internal/stats"
	"example.com/fittracker/internal/storage/kv"
	"example.com/fittracker/internal/tracker"
)

// Version is stamped at build time.
var Version = "dev"

// StoreOpener opens the keyed store described by cfg.
type StoreOpener func(ctx context.Context, cfg config.Config) (kv.Store, func() error, error)

func openConfiguredStore(ctx context.Context, cfg config.Config) (kv.Store, func() error, error) {
	s, err := bootstrap.OpenStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return s.Store, s.Close, nil
}

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	lookuper envconfig.Lookuper
	open     StoreOpener
	now      func() time.Time

	cfg     config.Config
	tracker *tracker.Tracker
	goals   *stats.GoalEvaluator
	closeFn func() error
}

// Option configures the command tree, mainly for tests.
type Option func(*app)

// WithLookuper reads configuration from l instead of the environment.
func WithLookuper(l envconfig.Lookuper) Option {
	return func(a *app) { a.lookuper = l }
}

// WithStoreOpener replaces how storage is opened.
func WithStoreOpener(open StoreOpener) Option {
	return func(a *app) { a.open = open }
}

// WithClock overrides the current time.
func WithClock(now func() time.Time) Option {
	return func(a *app) { a.now = now }
}

// Execute runs fitctl with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) setup(ctx context.Context) error {
	var err error
	if a.lookuper != nil {
		a.cfg, err = config.LoadFrom(ctx, a.lookuper)
	} else {
		a.cfg, err = config.Load(ctx)
	}
	if err != nil {
		return err
	}
	if a.cfg.Storage.Backend == config.BackendMemory {
		// memory does not outlive a single command
		a.cfg.Storage.Backend = config.BackendFile
	}

	params := logging.LoggerSetupParams{
		LogFileName:   a.cfg.Log.File,
		LogLevel:      a.cfg.Log.Level,
		LogFormatJSON: a.cfg.Log.JSON,
	}
	if params.LogFileName == "" {
		// stdout belongs to command output
		params.LogLevel = "warn"
	}
	logging.Setup(params)

	targets, err := a.cfg.Targets()
	if err != nil {
		return err
	}
	a.goals = stats.NewGoalEvaluator(targets)

	store, closeFn, err := a.open(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.closeFn = closeFn

	a.tracker, err = bootstrap.RestoreTracker(ctx, a.cfg, store)
	return err
}

func (a *app) teardown() error {
	if a.closeFn == nil {
		return nil
	}
	return a.closeFn()
}

func (a *app) today() time.Time {
	return a.now().In(a.cfg.Location())
}

func (a *app) parseDay(value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, a.cfg.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a YYYY-MM-DD date", value)
	}
	return t, nil
}

func (a *app) requireSession() error {
	if _, ok := a.tracker.Session(); !ok {
		return fmt.Errorf("no active session, run `fitctl login --email <address>` first")
	}
	return nil
}

// NewRootCmd builds the fitctl command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	a := &app{open: openConfiguredStore, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:           "fitctl",
		Short:         "Inspect and export your workout history",
		Long:          `fitctl reads the same storage as the fittracker API and prints statistics, goal progress and CSV exports.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	rootCmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newAddCmd(a),
		newListCmd(a),
		newStatsCmd(a),
		newGoalsCmd(a),
		newExportCmd(a),
	)
	return rootCmd
}

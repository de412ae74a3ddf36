package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/deliverygate/internal/config"
	"github.com/aristath/deliverygate/internal/events"
	"github.com/aristath/deliverygate/internal/history"
	"github.com/aristath/deliverygate/internal/persistence"
	"github.com/aristath/deliverygate/internal/report"
)

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	dbPath     string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "deliverygate",
		Short:         "Track delivery gates across client workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides config)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print machine-readable JSON")

	root.AddGroup(
		&cobra.Group{ID: "views", Title: "Views & Reports:"},
		&cobra.Group{ID: "work", Title: "Working With Workflows:"},
	)

	root.AddCommand(
		newDashboardCmd(opts),
		newEvaluateCmd(opts),
		newHistoryCmd(opts),
		newShowCmd(opts),
		newImportCmd(opts),
		newStepCmd(opts),
		newCheckCmd(opts),
		newFailCmd(opts),
		newClearCmd(opts),
	)
	return root
}

// app bundles the components a command needs.
type app struct {
	cfg         *config.Config
	globalPath  string
	projectPath string
	store       *persistence.SQLiteStore
	bus         *events.EventBus
	recorder    *history.Recorder
	evaluator   *report.Evaluator
}

// openApp loads configuration and opens the store.
func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	globalPath, projectPath, err := config.DefaultPaths()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	dbPath := opts.dbPath
	if dbPath == "" {
		if dbPath, err = cfg.DatabasePath(); err != nil {
			return nil, err
		}
	}

	store, err := persistence.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus()
	recorder := history.NewRecorder(store, history.Options{
		Bus:             bus,
		RecordUnchanged: cfg.Portfolio.RecordUnchanged,
	})
	evaluator := report.NewEvaluator(report.EvaluatorConfig{
		ConcurrencyLimit: cfg.Portfolio.Concurrency,
		Retry:            report.RetryConfigFrom(cfg.Retry),
		Breaker:          report.NewBreaker("store", cfg.Breaker),
		Bus:              bus,
	}, store, recorder)

	return &app{
		cfg:         cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		store:       store,
		bus:         bus,
		recorder:    recorder,
		evaluator:   evaluator,
	}, nil
}

// Close releases the bus and the store.
func (a *app) Close() {
	a.bus.Close()
	a.store.Close()
}

// withApp adapts a command body that needs an open app to cobra's RunE.
func withApp(opts *rootOptions, run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}

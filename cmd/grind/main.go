// Package main provides the CLI entrypoint for grind.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/grind/internal/advisor"
	"github.com/verte-zerg/grind/internal/config"
	"github.com/verte-zerg/grind/internal/fit"
	"github.com/verte-zerg/grind/internal/logging"
	"github.com/verte-zerg/grind/internal/model"
	"github.com/verte-zerg/grind/internal/service"
	"github.com/verte-zerg/grind/internal/store"
)

const (
	defaultLogMode     = "quiet"
	defaultCurveWindow = 10
	defaultPlotHeight  = 10
	defaultMaxAttempts = 100000
)

var (
	globalRun                string
	globalMinSamples         int
	globalDeferred           bool
	globalPrecompute         bool
	globalLogMode            string
	globalMaxRounds          int
	globalPracticeIterations int

	segmentRef     string
	curveWindow    int
	forecastTrials int
	forecastSeed   uint64
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "grind",
		Short:         "Decide whether to practice a segment or go for a full run",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.NoArgs,
		RunE:          runAdviseCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalRun, "run", "", "run name or id (default: most recently created run)")
	flags.IntVar(&globalMinSamples, "min-samples", fit.DefaultMinSamples, "attempts needed before fitting a learning curve")
	flags.BoolVar(&globalDeferred, "deferred", false, "refit on a background worker")
	flags.BoolVar(&globalPrecompute, "precompute", true, "compute advice before publishing a refit")
	flags.StringVar(&globalLogMode, "log-mode", defaultLogMode, "log mode: dev, prod or quiet")
	flags.IntVar(&globalMaxRounds, "max-rounds", advisor.DefaultMaxRounds, "forecast round cap")
	flags.IntVar(&globalPracticeIterations, "practice-iterations", advisor.DefaultPracticeIterations, "practice attempts per forecast round cap")

	rootCmd.AddCommand(newAdviseCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newSegmentsCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newCurveCmd())
	rootCmd.AddCommand(newForecastCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// app holds what every data command needs.
type app struct {
	log   *logging.Logger
	store *store.Store
	opts  service.Options
}

func openApp(cmd *cobra.Command) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "min-samples", &globalMinSamples, fileCfg.Fit.MinSamples)
	applyIntConfig(cmd, "max-rounds", &globalMaxRounds, fileCfg.Advisor.MaxRounds)
	applyIntConfig(cmd, "practice-iterations", &globalPracticeIterations, fileCfg.Advisor.PracticeIterations)
	applyBoolConfig(cmd, "deferred", &globalDeferred, fileCfg.Service.Deferred)
	applyBoolConfig(cmd, "precompute", &globalPrecompute, fileCfg.Service.Precompute)
	applyStringConfig(cmd, "log-mode", &globalLogMode, fileCfg.Log.Mode)

	opts, err := serviceOptions()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(globalLogMode)
	if err != nil {
		return nil, err
	}

	dbPath := config.DefaultDBPath()
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	log.Debug("opened database", "path", dbPath)
	return &app{log: log, store: st, opts: opts}, nil
}

func (a *app) Close() {
	if cerr := a.store.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
	a.log.Sync()
}

func serviceOptions() (service.Options, error) {
	if globalMinSamples < 1 {
		return service.Options{}, fmt.Errorf("--min-samples must be >= 1")
	}
	if globalMaxRounds < 1 {
		return service.Options{}, fmt.Errorf("--max-rounds must be >= 1")
	}
	if globalPracticeIterations < 1 {
		return service.Options{}, fmt.Errorf("--practice-iterations must be >= 1")
	}
	mode := service.ModeSync
	if globalDeferred {
		mode = service.ModeDeferred
	}
	return service.Options{
		Mode:       mode,
		MinSamples: globalMinSamples,
		Precompute: globalPrecompute,
		Advisor: advisor.Options{
			MaxRounds:          globalMaxRounds,
			PracticeIterations: globalPracticeIterations,
		},
	}, nil
}

// resolveRun returns the --run run, or the most recently created one.
func (a *app) resolveRun(ctx context.Context) (model.Run, error) {
	if ref := strings.TrimSpace(globalRun); ref != "" {
		return a.store.ResolveRun(ctx, ref)
	}
	runs, err := a.store.ListRuns(ctx)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return model.Run{}, errors.New("no runs yet; create one with: grind run new NAME")
	}
	return runs[len(runs)-1], nil
}

// openService resolves the run and publishes its advisor.
func (a *app) openService(ctx context.Context) (*service.Service, model.Run, error) {
	run, err := a.resolveRun(ctx)
	if err != nil {
		return nil, model.Run{}, err
	}
	svc := service.New(a.store, a.log, a.opts)
	if err := svc.Open(ctx, run.ID); err != nil {
		return nil, model.Run{}, fmt.Errorf("failed to open run %s: %w", run.Name, err)
	}
	svc.Wait()
	return svc, run, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# grind configuration
# Uncomment a value to enable it. CLI flags override config values.

[fit]
# min-samples = %d            # Attempts needed before fitting a learning curve

[advisor]
# max-rounds = %d         # Forecast round cap
# practice-iterations = %d     # Practice attempts per forecast round cap

[service]
# deferred = false            # Refit on a background worker
# precompute = true           # Compute advice before publishing a refit

[log]
# mode = %q               # dev, prod or quiet
`,
		fit.DefaultMinSamples,
		advisor.DefaultMaxRounds,
		advisor.DefaultPracticeIterations,
		defaultLogMode,
	)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

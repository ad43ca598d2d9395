package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/grind/internal/advisor"
	"github.com/verte-zerg/grind/internal/model"
	"github.com/verte-zerg/grind/internal/report"
)

func newAdviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advise",
		Short: "Recommend practicing a segment or going for a full run",
		Args:  cobra.NoArgs,
		RunE:  runAdviseCmd,
	}
}

func runAdviseCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, run, err := a.openService(cmd.Context())
	if err != nil {
		return err
	}
	return printAdvice(cmd, run, svc.Advisor())
}

func printAdvice(cmd *cobra.Command, run model.Run, adv *advisor.Advisor) error {
	out := cmd.OutOrStdout()
	rec, ok := adv.Recommendation()
	if !ok {
		_, err := fmt.Fprintf(out, "Run %s has no segments. Set them with: grind segments --run %s NAME=SECONDS...\n", run.Name, run.Name)
		return err
	}
	if err := report.RenderRecommendation(out, rec, report.ShouldUseColor(out)); err != nil {
		return err
	}
	return report.RenderForecast(out, rec, nil)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new NAME",
		Short: "Create a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runNewRunCmd,
	})
	return cmd
}

func runNewRunCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.store.CreateRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created run %s (%s)\n", run.Name, run.ID)
	return err
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List runs",
		Args:  cobra.NoArgs,
		RunE:  runRunsCmd,
	}
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	runs, err := a.store.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	attempts := make(map[string]int, len(runs))
	for _, run := range runs {
		counts, err := a.store.AttemptCounts(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		for _, tally := range counts {
			attempts[run.ID] += tally.Attempts
		}
	}
	return report.RenderRuns(cmd.OutOrStdout(), runs, attempts)
}

func newSegmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segments NAME=SECONDS...",
		Short: "Set a run's segment order and durations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSegmentsCmd,
	}
}

func runSegmentsCmd(cmd *cobra.Command, args []string) error {
	segments, err := parseSegments(args)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	run, err := a.resolveRun(ctx)
	if err != nil {
		return err
	}
	if err := a.store.SetSegments(ctx, run.ID, segments); err != nil {
		return fmt.Errorf("failed to set segments: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Run %s has %d segments.\n", run.Name, len(segments))
	return err
}

// parseSegments reads NAME=SECONDS pairs in run order.
func parseSegments(args []string) ([]model.Segment, error) {
	segments := make([]model.Segment, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid segment %q: want NAME=SECONDS", arg)
		}
		seconds, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || !(seconds > 0) {
			return nil, fmt.Errorf("invalid duration for segment %s: %q", name, value)
		}
		segments = append(segments, model.Segment{ID: model.SegmentID(name), Duration: seconds})
	}
	return segments, nil
}

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record ok|fail|OUTCOMES...",
		Short: "Record attempt outcomes for a segment",
		Long:  "Record attempt outcomes in order. OUTCOMES may be ok, fail, or a string of s and f characters such as ssfs.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRecordCmd,
	}
	cmd.Flags().StringVar(&segmentRef, "segment", "", "segment name")
	_ = cmd.MarkFlagRequired("segment")
	return cmd
}

func runRecordCmd(cmd *cobra.Command, args []string) error {
	outcomes, err := parseOutcomes(args)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	svc, run, err := a.openService(ctx)
	if err != nil {
		return err
	}
	for _, success := range outcomes {
		if err := svc.Record(ctx, model.SegmentID(segmentRef), success); err != nil {
			return err
		}
	}
	svc.Wait()
	m, _ := svc.Advisor().RoomModel(model.SegmentID(segmentRef))
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d attempts on %s (%d total, p(now) %.1f%%).\n",
		len(outcomes), segmentRef, m.AttemptCount, m.CurrentProb()*100); err != nil {
		return err
	}
	return printAdvice(cmd, run, svc.Advisor())
}

// parseOutcomes reads ok/fail words and s/f strings into outcomes.
func parseOutcomes(args []string) ([]bool, error) {
	var outcomes []bool
	for _, arg := range args {
		switch strings.ToLower(strings.TrimSpace(arg)) {
		case "ok", "success", "pass":
			outcomes = append(outcomes, true)
			continue
		case "fail", "failure", "miss":
			outcomes = append(outcomes, false)
			continue
		}
		if arg == "" {
			return nil, errors.New("empty outcome")
		}
		for _, r := range strings.ToLower(arg) {
			switch r {
			case 's', '1':
				outcomes = append(outcomes, true)
			case 'f', '0':
				outcomes = append(outcomes, false)
			default:
				return nil, fmt.Errorf("invalid outcome %q: use ok, fail or a string of s/f", arg)
			}
		}
	}
	return outcomes, nil
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded attempts of a segment or of the whole run",
		Args:  cobra.NoArgs,
		RunE:  runClearCmd,
	}
	cmd.Flags().StringVar(&segmentRef, "segment", "", "segment name (default: every segment)")
	return cmd
}

func runClearCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	svc, run, err := a.openService(ctx)
	if err != nil {
		return err
	}
	if err := svc.Clear(ctx, model.SegmentID(segmentRef)); err != nil {
		return err
	}
	svc.Wait()
	target := "every segment"
	if segmentRef != "" {
		target = segmentRef
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared attempts of %s in run %s.\n", target, run.Name)
	return err
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the fitted model of every segment",
		Args:  cobra.NoArgs,
		RunE:  runModelsCmd,
	}
}

func runModelsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, _, err := a.openService(cmd.Context())
	if err != nil {
		return err
	}
	return report.RenderModels(cmd.OutOrStdout(), svc.Advisor())
}

func newCurveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Plot a segment's observed and fitted success rate",
		Args:  cobra.NoArgs,
		RunE:  runCurveCmd,
	}
	cmd.Flags().StringVar(&segmentRef, "segment", "", "segment name")
	cmd.Flags().IntVar(&curveWindow, "window", defaultCurveWindow, "moving average window")
	_ = cmd.MarkFlagRequired("segment")
	return cmd
}

func runCurveCmd(cmd *cobra.Command, _ []string) error {
	if curveWindow < 1 {
		return fmt.Errorf("--window must be >= 1")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	svc, run, err := a.openService(ctx)
	if err != nil {
		return err
	}
	id := model.SegmentID(segmentRef)
	m, ok := svc.Advisor().RoomModel(id)
	if !ok {
		return fmt.Errorf("segment %s is not part of run %s", id, run.Name)
	}
	outcomes, _, err := a.store.OutcomeHistory(ctx, run.ID, id)
	if err != nil {
		return fmt.Errorf("failed to load attempts: %w", err)
	}
	out := cmd.OutOrStdout()
	return report.RenderCurve(out, id, outcomes, m, curveWindow, report.TerminalWidth(), defaultPlotHeight, report.ShouldUseColor(out))
}

func newForecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast the time to a completed run",
		Args:  cobra.NoArgs,
		RunE:  runForecastCmd,
	}
	cmd.Flags().IntVar(&forecastTrials, "trials", 0, "Monte Carlo trials for the grind baseline (0 disables it)")
	cmd.Flags().Uint64Var(&forecastSeed, "seed", 0, "Monte Carlo seed (default: time based)")
	return cmd
}

func runForecastCmd(cmd *cobra.Command, _ []string) error {
	if forecastTrials < 0 {
		return fmt.Errorf("--trials must be >= 0")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, run, err := a.openService(cmd.Context())
	if err != nil {
		return err
	}
	adv := svc.Advisor()
	rec, ok := adv.Recommendation()
	if !ok {
		return fmt.Errorf("run %s has no segments", run.Name)
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Expected time from a fresh attempt: %s\n", report.FormatSeconds(adv.ExpectedTime())); err != nil {
		return err
	}
	var sample *advisor.Sample
	if forecastTrials > 0 {
		seed := forecastSeed
		if !cmd.Flags().Changed("seed") {
			seed = uint64(time.Now().UnixNano())
		}
		s := adv.MonteCarlo(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), forecastTrials, defaultMaxAttempts)
		a.log.Debug("monte carlo baseline", "seed", seed, "trials", s.Trials, "completed", s.Completed)
		sample = &s
	}
	return report.RenderForecast(out, rec, sample)
}

package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/grind/internal/advisor"
	"github.com/verte-zerg/grind/internal/model"
)

var (
	goStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	practiceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
)

const (
	secondsPerDay  = 24 * 60 * 60
	secondsPerYear = 365.25 * secondsPerDay
)

// FormatSeconds renders a time estimate, or "unbounded" when a clean run
// is practically impossible. Estimates past a hundred days are printed in
// days, and past a hundred years in years.
func FormatSeconds(seconds float64) string {
	switch {
	case seconds >= advisor.Unbounded || math.IsInf(seconds, 1) || math.IsNaN(seconds):
		return "unbounded"
	case seconds >= 100*secondsPerYear:
		return fmt.Sprintf("%.3g years", seconds/secondsPerYear)
	case seconds >= 100*secondsPerDay:
		return fmt.Sprintf("%.0f days", seconds/secondsPerDay)
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// RenderModels prints one row per modeled segment in run order.
func RenderModels(w io.Writer, adv *advisor.Advisor) error {
	if !adv.HasModels() {
		_, err := fmt.Fprintln(w, "No segments configured.")
		return err
	}
	bounded := adv.ExpectedTime() < advisor.Unbounded
	headers := []string{"Segment", "Duration", "Attempts", "p(now)", "beta0", "beta1", "Confidence", "Net benefit"}
	rows := make([][]string, 0, len(adv.Order()))
	for _, id := range adv.Order() {
		m, _ := adv.RoomModel(id)
		net := "n/a"
		if b, ok := adv.PracticeBenefit(id); ok && bounded {
			net = fmt.Sprintf("%+.1fs", b.Net)
		}
		rows = append(rows, []string{
			string(id),
			fmt.Sprintf("%.1fs", m.Duration),
			fmt.Sprintf("%d", m.AttemptCount),
			fmt.Sprintf("%.1f%%", m.CurrentProb()*100),
			fmt.Sprintf("%.3f", m.Beta0),
			fmt.Sprintf("%.4f", m.Beta1),
			m.Confidence.String(),
			net,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 7: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Expected time to a clean run: %s\n", FormatSeconds(adv.ExpectedTime()))
	return err
}

// RenderRecommendation prints the advice line.
func RenderRecommendation(w io.Writer, rec advisor.Recommendation, useColor bool) error {
	style := func(s lipgloss.Style, text string) string {
		if useColor {
			return s.Render(text)
		}
		return text
	}
	var line string
	if rec.Action == advisor.GoForIt {
		line = style(goStyle, "Go for a full run.")
	} else {
		line = style(practiceStyle, fmt.Sprintf("Practice %s", rec.Segment))
		detail := rec.Reason.String()
		if rec.Reason == advisor.ReasonNetBenefit {
			detail = fmt.Sprintf("%s: %s per attempt", detail, FormatSeconds(rec.NetBenefit))
		} else {
			detail = fmt.Sprintf("%s, model is %s", detail, rec.Confidence)
		}
		line += " " + style(mutedStyle, "("+detail+")")
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// RenderForecast prints both strategy forecasts and, when sample is not nil,
// the Monte Carlo grind baseline.
func RenderForecast(w io.Writer, rec advisor.Recommendation, sample *advisor.Sample) error {
	if _, err := fmt.Fprintf(w, "Forecast (%s): %s\n", advisor.StrategyGrind, FormatSeconds(rec.GrindTime)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Forecast (%s): %s\n", advisor.StrategySmart, FormatSeconds(rec.SmartTime)); err != nil {
		return err
	}
	if sample == nil || sample.Trials == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "Monte Carlo (%s): %s ± %s over %d trials, %d completed\n",
		advisor.StrategyGrind, FormatSeconds(sample.Mean), FormatSeconds(sample.StdErr), sample.Trials, sample.Completed)
	return err
}

// RenderCurve plots a segment's observed moving-average success rate
// against the fitted success curve, followed by an outcome sparkline.
func RenderCurve(w io.Writer, id model.SegmentID, outcomes []bool, m model.SuccessModel, window, totalWidth, height int, useColor bool) error {
	if len(outcomes) == 0 {
		_, err := fmt.Fprintf(w, "No attempts recorded for %s.\n", id)
		return err
	}
	fitted := make([]float64, len(outcomes))
	for i := range fitted {
		fitted[i] = m.SuccessProb(float64(i))
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	title := fmt.Sprintf("Segment %s (%d attempts, %s)", id, len(outcomes), m.Confidence)
	if err := PlotSeries(w, title, []Series{
		{Name: "Observed", Values: MovingAverage(OutcomeValues(outcomes), window)},
		{Name: "Fitted", Values: fitted},
	}, width, height, useColor); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Outcomes: %s\n", Sparkline(OutcomeValues(outcomes)))
	return err
}

// RenderRuns lists runs with their attempt totals.
func RenderRuns(w io.Writer, runs []model.Run, attempts map[string]int) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.Name,
			run.ID,
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", attempts[run.ID]),
		})
	}
	for _, line := range formatTable([]string{"Name", "ID", "Created", "Attempts"}, rows, map[int]bool{3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

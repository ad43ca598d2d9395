package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series is a named probability series for plotting. Values lie in [0, 1].
type Series struct {
	Name   string
	Values []float64
}

type lineStyle struct {
	name   string
	period int
	on     int
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisLabelTop        = "100%"
	axisLabelMid        = "50%"
	axisLabelBottom     = "0%"
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var lineStyles = []lineStyle{
	{name: "solid", period: 1, on: 1},
	{name: "dotted", period: 4, on: 1},
	{name: "dashed", period: 6, on: 3},
}

var colorCodes = []string{"\x1b[36m", "\x1b[33m", "\x1b[35m"}

// PlotSeries renders series on a shared 0-100% axis using braille cells.
// width <= 0 sizes the plot to the terminal.
func PlotSeries(w io.Writer, title string, series []Series, width, height int, useColor bool) error {
	series = filterSeries(series)
	if len(series) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(TerminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	// Two braille columns per cell.
	dotsWide := width * 2
	dotsHigh := height * 4
	seriesCells := make([][][]uint8, len(series))
	for si, s := range series {
		seriesCells[si] = makeCells(height, width)
		style := lineStyles[si%len(lineStyles)]
		values := resampleSeries(s.Values, dotsWide)
		prevX, prevY := -1, -1
		for x, v := range values {
			y := valueToRow(v, dotsHigh)
			if prevX >= 0 {
				drawLine(prevX, prevY, x, y, func(dx, dy int) {
					if style.shouldPlot(dx) {
						setBrailleDot(seriesCells[si], dx, dy)
					}
				})
			} else {
				setBrailleDot(seriesCells[si], x, y)
			}
			prevX, prevY = x, y
		}
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	labels := makeAxisLabels(height)
	labelWidth := runewidth.StringWidth(axisLabelTop)
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(labels[y], labelWidth))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, colorIdx := composeCell(seriesCells, x, y)
			ch := brailleFromMask(mask)
			if useColor && colorIdx >= 0 {
				row.WriteString(colorCodes[colorIdx%len(colorCodes)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
			} else {
				row.WriteRune(ch)
			}
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, renderLegend(series, useColor))
	return err
}

func filterSeries(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// PlotWidthFor computes a plot width that fits within the total available width.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	axisWidth := runewidth.StringWidth(axisLabelTop) + runewidth.StringWidth(axisSeparator)
	plotWidth := totalWidth - axisWidth
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether w is a terminal and NO_COLOR is unset.
func ShouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func makeAxisLabels(height int) []string {
	labels := make([]string, height)
	if height <= 0 {
		return labels
	}
	labels[0] = axisLabelTop
	if height > 2 {
		labels[height/2] = axisLabelMid
	}
	if height > 1 {
		labels[height-1] = axisLabelBottom
	}
	return labels
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return cells
}

// composeCell merges the dots of every series; the first series owning a
// dot in the cell picks its color.
func composeCell(seriesCells [][][]uint8, x, y int) (uint8, int) {
	var mask uint8
	colorIdx := -1
	for i, cells := range seriesCells {
		cellMask := cells[y][x]
		if cellMask == 0 {
			continue
		}
		if colorIdx == -1 {
			colorIdx = i
		}
		mask |= cellMask
	}
	return mask, colorIdx
}

func (ls lineStyle) shouldPlot(x int) bool {
	if ls.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%ls.period < ls.on
}

// resampleSeries stretches or averages values down to width points.
func resampleSeries(values []float64, width int) []float64 {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	out := make([]float64, width)
	if len(values) >= width {
		for i := 0; i < width; i++ {
			start := i * len(values) / width
			end := (i + 1) * len(values) / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	if len(values) == 1 || width == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	for i := 0; i < width; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(width-1)
		idx := int(math.Floor(pos))
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

// valueToRow maps a probability to a dot row, 0 being the top.
func valueToRow(v float64, height int) int {
	if height <= 1 {
		return 0
	}
	return int(math.Round((1 - clamp01(v)) * float64(height-1)))
}

func renderLegend(series []Series, useColor bool) string {
	parts := make([]string, 0, len(series))
	marker := brailleFromMask(0x01)
	for i, s := range series {
		label := fmt.Sprintf("%c %s (%s)", marker, s.Name, lineStyles[i%len(lineStyles)].name)
		if useColor {
			label = colorCodes[i%len(colorCodes)] + label + colorReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

// drawLine walks Bresenham's line between two dot coordinates.
func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func setBrailleDot(cells [][]uint8, x, y int) {
	cellY, cellX := y/4, x/2
	if x < 0 || y < 0 || cellY >= len(cells) || cellX >= len(cells[cellY]) {
		return
	}
	cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

var brailleDots = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func brailleDotMask(x, y int) uint8 {
	return brailleDots[x][y]
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}

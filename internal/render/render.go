// Package render draws built charts as PNG or SVG images.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/series"
)

// DefaultWidth is the image width when none is requested.
const DefaultWidth = 800

// ErrEmptyChart is returned for charts without any data point.
var ErrEmptyChart = errors.New("chart has no data")

// Format is an image encoding.
type Format string

// Image formats.
const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat converts s (with or without a leading dot) to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.TrimPrefix(strings.ToLower(s), ".")) {
	case FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == FormatSVG {
		return chart.SVG
	}
	return chart.PNG
}

// Render writes c to w. Zero width or height use DefaultWidth and the chart's
// configured height.
func Render(w io.Writer, c *series.Chart, f Format, width, height int) error {
	if c == nil {
		return ErrEmptyChart
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = c.Options.Height
	}
	if height <= 0 {
		height = series.ChartHeight
	}

	if c.Options.Type == series.KindBar {
		return renderBars(w, c, f, width, height)
	}
	return renderContinuous(w, c, f, width, height)
}

// PNG writes c as a PNG image.
func PNG(w io.Writer, c *series.Chart, width, height int) error {
	return Render(w, c, FormatPNG, width, height)
}

// SVG writes c as an SVG document.
func SVG(w io.Writer, c *series.Chart, width, height int) error {
	return Render(w, c, FormatSVG, width, height)
}

func renderContinuous(w io.Writer, c *series.Chart, f Format, width, height int) error {
	layers := c.Series
	if c.Options.Stacked {
		layers = stack(c.Series)
	}

	var out []chart.Series
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, s := range layers {
		if len(s.Data) == 0 {
			continue
		}
		xs, ys := xy(s.Data, c.Options.Curve == series.CurveStepline)
		for _, y := range ys {
			yMin = math.Min(yMin, y)
			yMax = math.Max(yMax, y)
		}

		color := paletteColor(c.Options.Colors, i)
		style := chart.Style{StrokeColor: color, StrokeWidth: 2}
		if c.Options.Type == series.KindArea {
			style.FillColor = paletteColor(c.Options.FillColors, i).WithAlpha(180)
		}
		out = append(out, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   style,
		})
	}
	if len(out) == 0 {
		return ErrEmptyChart
	}
	if c.Options.Stacked {
		// Draw the tallest layer first so lower layers stay visible.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	if c.Options.YMin != nil {
		yMin = *c.Options.YMin
	}

	ch := chart.Chart{
		Title:      c.Title,
		TitleStyle: chart.Style{FontColor: labelColor(c)},
		Width:      width,
		Height:     height,
		Background: chart.Style{
			FillColor: parseColor(c.Options.Background),
			Padding:   chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 12},
		},
		Canvas: chart.Style{FillColor: parseColor(c.Options.Background)},
		XAxis: chart.XAxis{
			Style:          axisStyle(c),
			ValueFormatter: blockFormatter,
		},
		YAxis: chart.YAxis{
			Style:          axisStyle(c),
			Range:          yRange(yMin, yMax),
			ValueFormatter: yFormatter(c.Options.YFormatter),
			GridMajorStyle: chart.Style{StrokeColor: parseColor(c.Options.GridBorderColor), StrokeWidth: 1},
		},
		Series: out,
	}
	if len(out) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}

	if err := ch.Render(f.provider(), w); err != nil {
		return fmt.Errorf("render %s: %w", c.Name, err)
	}
	return nil
}

func renderBars(w io.Writer, c *series.Chart, f Format, width, height int) error {
	if len(c.Bars) == 0 || len(c.Bars[0].Data) == 0 {
		return ErrEmptyChart
	}
	data := c.Bars[0].Data
	color := paletteColor(c.Options.Colors, 0)

	bars := make([]chart.Value, len(data))
	yMin, yMax := 0.0, 0.0
	for i, v := range data {
		label := strconv.Itoa(i + 1)
		if i < len(c.Options.Categories) {
			label = strconv.FormatInt(c.Options.Categories[i], 10)
		}
		bars[i] = chart.Value{
			Label: label,
			Value: v,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		}
		yMin = math.Min(yMin, v)
		yMax = math.Max(yMax, v)
	}

	slot := (width - 100) / len(bars)
	if slot < 6 {
		slot = 6
	}
	barWidth := slot * 3 / 5

	bc := chart.BarChart{
		Title:        c.Title,
		TitleStyle:   chart.Style{FontColor: labelColor(c)},
		Width:        width,
		Height:       height,
		BarWidth:     barWidth,
		BarSpacing:   slot - barWidth,
		UseBaseValue: yMin < 0,
		Background: chart.Style{
			FillColor: parseColor(c.Options.Background),
			Padding:   chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 12},
		},
		Canvas: chart.Style{FillColor: parseColor(c.Options.Background)},
		XAxis:  axisStyle(c),
		YAxis: chart.YAxis{
			Style:          axisStyle(c),
			Range:          yRange(yMin, yMax),
			ValueFormatter: yFormatter(c.Options.YFormatter),
		},
		Bars: bars,
	}

	if err := bc.Render(f.provider(), w); err != nil {
		return fmt.Errorf("render %s: %w", c.Name, err)
	}
	return nil
}

// stack turns series into cumulative layers sharing the x values of the first series.
func stack(in []domain.ChartSeries) []domain.ChartSeries {
	out := make([]domain.ChartSeries, len(in))
	var running []float64
	for i, s := range in {
		if running == nil {
			running = make([]float64, len(s.Data))
		}
		data := make([]domain.PricePoint, len(s.Data))
		for j, p := range s.Data {
			if j < len(running) {
				running[j] += p.Y
				data[j] = domain.PricePoint{X: p.X, Y: running[j]}
			} else {
				data[j] = p
			}
		}
		out[i] = domain.ChartSeries{Name: s.Name, Data: data}
	}
	return out
}

// xy splits points into coordinate slices. Stepline inserts a horizontal
// segment before every change. A single point is widened so the x range is not empty.
func xy(points []domain.PricePoint, stepline bool) ([]float64, []float64) {
	xs := make([]float64, 0, 2*len(points))
	ys := make([]float64, 0, 2*len(points))
	for i, p := range points {
		if stepline && i > 0 {
			xs = append(xs, p.X)
			ys = append(ys, points[i-1].Y)
		}
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
	}
	if xs[0] == xs[len(xs)-1] {
		xs = append(xs, xs[0]+1)
		ys = append(ys, ys[len(ys)-1])
	}
	return xs, ys
}

func yRange(lo, hi float64) *chart.ContinuousRange {
	if hi <= lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func yFormatter(f series.Formatter) chart.ValueFormatter {
	return func(v interface{}) string {
		if fv, ok := v.(float64); ok {
			return f.Format(fv)
		}
		return ""
	}
}

func blockFormatter(v interface{}) string {
	if fv, ok := v.(float64); ok {
		return strconv.FormatInt(int64(fv), 10)
	}
	return ""
}

func axisStyle(c *series.Chart) chart.Style {
	col := labelColor(c)
	return chart.Style{FontColor: col, StrokeColor: col}
}

func labelColor(c *series.Chart) drawing.Color {
	return parseColor(c.Options.LabelColor)
}

func paletteColor(colors []string, i int) drawing.Color {
	if len(colors) == 0 {
		return drawing.ColorBlack
	}
	return parseColor(colors[i%len(colors)])
}

// parseColor reads #rgb, #rrggbb and #rrggbbaa colors. Invalid input is black.
func parseColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		fallthrough
	case 6:
		hex += "ff"
	case 8:
	default:
		return drawing.ColorBlack
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return drawing.ColorBlack
	}
	return drawing.Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}

package charts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/errgroup"

	"autosales-dashboard/internal/models"
	"autosales-dashboard/internal/observability"
)

const (
	NoDataMessage = "No data available"

	defaultWidth      = 640
	defaultHeight     = 400
	defaultMaxWorkers = 4
	maxXLabels        = 12
)

type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

var ErrUnknownFormat = errors.New("unknown chart format")

// ParseFormat accepts "svg" and "png"; empty means svg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatSVG):
		return FormatSVG, nil
	case string(FormatPNG):
		return FormatPNG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml"
}

func (f Format) provider() chart.RendererProvider {
	if f == FormatPNG {
		return chart.PNG
	}
	return chart.SVG
}

// text makes a label safe for the target format. The SVG writer emits text
// nodes verbatim.
func (f Format) text(s string) string {
	if f == FormatPNG {
		return s
	}
	return html.EscapeString(s)
}

var palette = []drawing.Color{
	drawing.ColorFromHex("636efa"),
	drawing.ColorFromHex("ef553b"),
	drawing.ColorFromHex("00cc96"),
	drawing.ColorFromHex("ab63fa"),
	drawing.ColorFromHex("ffa15a"),
	drawing.ColorFromHex("19d3f3"),
	drawing.ColorFromHex("ff6692"),
	drawing.ColorFromHex("b6e880"),
	drawing.ColorFromHex("ff97ff"),
	drawing.ColorFromHex("fecb52"),
}

func colorAt(i int) drawing.Color {
	return palette[i%len(palette)]
}

// Renderer draws chart descriptors as images. It holds no mutable state and
// may be shared.
type Renderer struct {
	Width      int
	Height     int
	MaxWorkers int
	logger     *slog.Logger
}

func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		Width:      defaultWidth,
		Height:     defaultHeight,
		MaxWorkers: defaultMaxWorkers,
		logger:     logger,
	}
}

// Render draws c in the given format. Charts without data render a
// placeholder instead of failing.
func (r *Renderer) Render(c models.Chart, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch {
	case !hasData(c):
		err = r.placeholder(&buf, c.Title, format)
	case c.Kind == models.ChartLine && len(c.Points) == 1:
		err = r.bar(&buf, c, format)
	case c.Kind == models.ChartLine:
		err = r.line(&buf, c, format)
	case c.Kind == models.ChartBar:
		err = r.bar(&buf, c, format)
	case c.Kind == models.ChartPie:
		err = r.pie(&buf, c, format)
	case c.Kind == models.ChartGroupedBar:
		err = r.groupedBar(&buf, c, format)
	default:
		return nil, fmt.Errorf("render chart %d: unsupported kind %q", c.Index, c.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("render chart %d (%s): %w", c.Index, c.Kind, err)
	}
	return buf.Bytes(), nil
}

// RenderAll renders charts concurrently. The result is in input order.
func (r *Renderer) RenderAll(ctx context.Context, charts []models.Chart, format Format) ([][]byte, error) {
	ctx, span := observability.StartSpan(ctx, "charts.render_all")
	defer span.Finish(r.logger)
	span.SetTag("format", string(format))

	out := make([][]byte, len(charts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.MaxWorkers, 1))

	for i, c := range charts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := r.Render(c, format)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}
	return out, nil
}

func hasData(c models.Chart) bool {
	if len(c.Points) == 0 {
		return false
	}
	if c.Kind == models.ChartPie {
		for _, p := range c.Points {
			if p.Value > 0 {
				return true
			}
		}
		return false
	}
	return true
}

func (r *Renderer) background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

func (r *Renderer) line(buf *bytes.Buffer, c models.Chart, format Format) error {
	xs := make([]float64, len(c.Points))
	ys := make([]float64, len(c.Points))
	ticks := make([]chart.Tick, len(c.Points))
	step := labelStep(len(c.Points))

	for i, p := range c.Points {
		xs[i] = float64(i)
		ys[i] = p.Value
		ticks[i] = chart.Tick{Value: float64(i)}
		if i%step == 0 || i == len(c.Points)-1 {
			ticks[i].Label = format.text(p.Label)
		}
	}

	lo, hi := axisBounds(ys, false)
	color := colorAt(0)

	graph := chart.Chart{
		Title:      format.text(c.Title),
		Width:      r.Width,
		Height:     r.Height,
		Background: r.background(),
		XAxis: chart.XAxis{
			Name:  format.text(c.XLabel),
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  format.text(c.YLabel),
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    format.text(c.YLabel),
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: color,
					StrokeWidth: 2,
					DotColor:    color,
					DotWidth:    3,
				},
			},
		},
	}
	return graph.Render(format.provider(), buf)
}

func (r *Renderer) bar(buf *bytes.Buffer, c models.Chart, format Format) error {
	bars := make([]chart.Value, len(c.Points))
	values := make([]float64, len(c.Points))
	for i, p := range c.Points {
		values[i] = p.Value
		bars[i] = chart.Value{
			Label: format.text(p.Label),
			Value: p.Value,
			Style: chart.Style{FillColor: colorAt(0), StrokeColor: colorAt(0)},
		}
	}
	return r.renderBars(buf, c, format, bars, values)
}

// groupedBar draws one coloured bar per group. The bar height is the value and
// the label carries the x measure.
func (r *Renderer) groupedBar(buf *bytes.Buffer, c models.Chart, format Format) error {
	bars := make([]chart.Value, len(c.Points))
	values := make([]float64, len(c.Points))
	for i, p := range c.Points {
		values[i] = p.Value
		bars[i] = chart.Value{
			Label: format.text(fmt.Sprintf("%s (%.1f)", p.Label, p.X)),
			Value: p.Value,
			Style: chart.Style{FillColor: colorAt(i), StrokeColor: colorAt(i)},
		}
	}
	return r.renderBars(buf, c, format, bars, values)
}

func (r *Renderer) renderBars(buf *bytes.Buffer, c models.Chart, format Format, bars []chart.Value, values []float64) error {
	lo, hi := axisBounds(values, true)
	width := barWidth(r.Width, len(bars))

	graph := chart.BarChart{
		Title:      format.text(c.Title),
		Width:      r.Width,
		Height:     r.Height,
		Background: r.background(),
		BarWidth:   width,
		BarSpacing: max(width/2, 2),
		XAxis:      chart.Style{FontSize: 8},
		YAxis: chart.YAxis{
			Name:  format.text(c.YLabel),
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
	return graph.Render(format.provider(), buf)
}

func (r *Renderer) pie(buf *bytes.Buffer, c models.Chart, format Format) error {
	total := c.Total()
	values := make([]chart.Value, 0, len(c.Points))
	for i, p := range c.Points {
		if p.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: format.text(fmt.Sprintf("%s %.1f%%", p.Label, 100*p.Value/total)),
			Value: p.Value,
			Style: chart.Style{FillColor: colorAt(i), FontSize: 8},
		})
	}

	graph := chart.PieChart{
		Title:      format.text(c.Title),
		Width:      r.Width,
		Height:     r.Height,
		Background: r.background(),
		Values:     values,
	}
	return graph.Render(format.provider(), buf)
}

func (r *Renderer) placeholder(buf *bytes.Buffer, title string, format Format) error {
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}

	canvas, err := format.provider()(r.Width, r.Height)
	if err != nil {
		return err
	}

	frame := chart.Box{Right: r.Width, Bottom: r.Height}
	chart.Draw.Box(canvas, frame, chart.Style{
		FillColor:   chart.ColorWhite,
		StrokeColor: chart.ColorLightGray,
		StrokeWidth: 1,
	})

	if title != "" {
		chart.Draw.TextWithin(canvas, format.text(title), chart.Box{Top: 12, Left: 16, Right: r.Width - 16, Bottom: 48}, chart.Style{
			Font:                font,
			FontSize:            12,
			FontColor:           chart.ColorBlack,
			TextHorizontalAlign: chart.TextHorizontalAlignCenter,
		})
	}

	chart.Draw.TextWithin(canvas, NoDataMessage, frame, chart.Style{
		Font:                font,
		FontSize:            14,
		FontColor:           chart.ColorAlternateGray,
		TextHorizontalAlign: chart.TextHorizontalAlignCenter,
		TextVerticalAlign:   chart.TextVerticalAlignMiddle,
	})

	return canvas.Save(buf)
}

// labelStep thins categorical tick labels so at most maxXLabels are drawn.
func labelStep(n int) int {
	if n <= maxXLabels {
		return 1
	}
	return (n + maxXLabels - 1) / maxXLabels
}

func barWidth(canvas, n int) int {
	if n == 0 {
		return 40
	}
	w := (canvas - 120) / (n * 2)
	return min(max(w, 6), 60)
}

// axisBounds returns a padded, rounded value range. The range never has zero
// width, so equal values still render.
func axisBounds(values []float64, fromZero bool) (float64, float64) {
	lo, hi := math.MaxFloat64, -math.MaxFloat64
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if fromZero {
		lo = math.Min(lo, 0)
		hi = math.Max(hi, 0)
	}
	if hi <= lo {
		if lo == 0 {
			hi = 1
		} else {
			pad := math.Abs(lo) * 0.1
			lo, hi = lo-pad, hi+pad
		}
	}

	span := hi - lo
	pad := span * 0.05
	a, b := lo-pad, hi+pad
	if fromZero && lo >= 0 {
		a = 0
	}

	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}

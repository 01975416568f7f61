package render

import (
	"fmt"
	"io"
	"math"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"stratum/internal/candle"
	"stratum/internal/config"
	"stratum/internal/scale"
)

// settle is the distance (CSS px) under which an eased anchor snaps to its target.
const settle = 0.5

var markerDash = []float64{5, 5}

// Palette colors the chart elements.
type Palette struct {
	Up         drawing.Color
	Down       drawing.Color
	Grid       drawing.Color
	Label      drawing.Color
	Marker     drawing.Color
	Background drawing.Color
}

// DefaultPalette mirrors the dashboard's dark theme.
var DefaultPalette = Palette{
	Up:         drawing.Color{R: 0x10, G: 0xb9, B: 0x81, A: 255},
	Down:       drawing.Color{R: 0xef, G: 0x44, B: 0x44, A: 255},
	Grid:       drawing.Color{R: 255, G: 255, B: 255, A: 26},
	Label:      drawing.Color{R: 0x99, G: 0x99, B: 0x99, A: 255},
	Marker:     drawing.ColorWhite,
	Background: drawing.Color{R: 0x11, G: 0x18, B: 0x27, A: 255},
}

// Config enumerates every knob that distinguished the chart variants.
type Config struct {
	Padding         scale.Padding
	PaddingRatio    float64
	CandleWidth     float64
	CandleGap       float64
	GridLines       int
	SmoothingFactor float64
	AnchorMode      scale.AnchorMode
	VisibleCount    int
	FontSize        float64
	Colors          Palette
}

// DefaultConfig is the right-anchored, smoothed chart.
func DefaultConfig() Config {
	return Config{
		Padding:         scale.DefaultPadding,
		PaddingRatio:    scale.DefaultPaddingRatio,
		CandleWidth:     8,
		CandleGap:       4,
		GridLines:       6,
		SmoothingFactor: 0.3,
		AnchorMode:      scale.AnchorRight,
		VisibleCount:    candle.DefaultCapacity,
		FontSize:        10,
		Colors:          DefaultPalette,
	}
}

// ConfigFromChart converts the chart section of the application config.
func ConfigFromChart(c config.ChartConfig) Config {
	def := DefaultConfig()
	out := Config{
		Padding: scale.Padding{
			Top:    c.Padding.Top,
			Right:  c.Padding.Right,
			Bottom: c.Padding.Bottom,
			Left:   c.Padding.Left,
		},
		PaddingRatio:    c.PaddingRatio,
		CandleWidth:     c.CandleWidth,
		CandleGap:       c.CandleGap,
		GridLines:       c.GridLines,
		SmoothingFactor: c.SmoothingFactor,
		AnchorMode:      scale.AnchorMode(c.AnchorMode),
		VisibleCount:    c.VisibleCount,
		FontSize:        c.FontSize,
		Colors: Palette{
			Up:         ParseColor(c.Colors.Up, def.Colors.Up),
			Down:       ParseColor(c.Colors.Down, def.Colors.Down),
			Grid:       ParseColor(c.Colors.Grid, def.Colors.Grid),
			Label:      ParseColor(c.Colors.Label, def.Colors.Label),
			Marker:     ParseColor(c.Colors.Marker, def.Colors.Marker),
			Background: ParseColor(c.Colors.Background, def.Colors.Background),
		},
	}
	if out.CandleWidth <= 0 {
		out.CandleWidth = def.CandleWidth
	}
	if out.GridLines <= 0 {
		out.GridLines = def.GridLines
	}
	if out.VisibleCount <= 0 {
		out.VisibleCount = def.VisibleCount
	}
	if out.FontSize <= 0 {
		out.FontSize = def.FontSize
	}
	if out.AnchorMode == "" {
		out.AnchorMode = scale.AnchorRight
	}
	return out
}

// Layout describes the geometry of the last drawn frame.
type Layout struct {
	Size    Size
	Plot    scale.Plot
	Scale   scale.Context
	Index   scale.Index
	Target  float64
	Visible []candle.Candle
	Marker  float64
}

// Settled reports whether the frame was drawn with the anchor at rest.
func (l Layout) Settled() bool {
	return len(l.Visible) == 0 || l.Index.Origin == l.Target
}

// ChartRenderer draws candlestick frames and keeps the eased scroll anchor
// between them. One renderer belongs to one chart view.
type ChartRenderer struct {
	cfg Config

	anchorX   float64
	anchorSeq uint64
	hasAnchor bool
	lastSize  Size
	target    float64
}

// NewChartRenderer constructs a renderer with no scroll history.
func NewChartRenderer(cfg Config) *ChartRenderer {
	return &ChartRenderer{cfg: cfg}
}

// Config returns the renderer configuration.
func (r *ChartRenderer) Config() Config {
	return r.cfg
}

// Reset forgets the scroll anchor.
func (r *ChartRenderer) Reset() {
	r.hasAnchor = false
	r.anchorX = 0
	r.anchorSeq = 0
	r.lastSize = Size{}
	r.target = 0
}

// Settle moves the anchor onto the target of the last frame, so the next
// frame of the same candles is drawn at rest.
func (r *ChartRenderer) Settle() {
	if r.hasAnchor {
		r.anchorX = r.target
	}
}

// RenderPNG rasterises one frame at size and writes it as PNG.
func (r *ChartRenderer) RenderPNG(w io.Writer, size Size, candles []candle.Candle) (Layout, error) {
	size = size.Normalize()
	if !size.Valid() {
		return Layout{}, fmt.Errorf("invalid chart size %vx%v", size.Width, size.Height)
	}

	wpx, hpx := size.Pixels()
	rr, err := chart.PNG(wpx, hpx)
	if err != nil {
		return Layout{}, fmt.Errorf("create png renderer: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return Layout{}, fmt.Errorf("load chart font: %w", err)
	}
	rr.SetFont(font)

	layout := r.Draw(rr, size, candles)
	if err := rr.Save(w); err != nil {
		return layout, fmt.Errorf("encode png: %w", err)
	}
	return layout, nil
}

// Draw clears the canvas and paints grid, candles and the last-price marker.
func (r *ChartRenderer) Draw(c Canvas, size Size, candles []candle.Candle) Layout {
	size = size.Normalize()
	s := surface{c: c, dpr: size.DPR}
	s.fillRect(0, 0, size.Width, size.Height, r.cfg.Colors.Background)

	plot := scale.NewPlot(size.Width, size.Height, r.cfg.Padding)
	layout := Layout{Size: size, Plot: plot}
	if len(candles) == 0 {
		return layout
	}

	visible := candles
	if n := r.cfg.VisibleCount; n > 0 && len(visible) > n {
		visible = visible[len(visible)-n:]
	}
	layout.Visible = visible

	lo, hi := visible[0].Low, visible[0].High
	for _, k := range visible[1:] {
		lo = math.Min(lo, k.Low)
		hi = math.Max(hi, k.High)
	}
	ctx := scale.NewContext(lo, hi, r.cfg.PaddingRatio, plot.Top, plot.Height)
	layout.Scale = ctx

	r.drawGrid(s, plot, ctx)

	step := r.cfg.CandleWidth + r.cfg.CandleGap
	layout.Target = scale.Anchor(r.cfg.AnchorMode, plot, r.cfg.CandleWidth, step, len(visible))
	layout.Index = scale.Index{Origin: r.ease(layout.Target, visible[0].Seq, step, size), Step: step}

	half := r.cfg.CandleWidth / 2
	for i, k := range visible {
		x := layout.Index.X(i)
		if x+half < plot.Left || x-half > plot.Right() {
			continue
		}
		r.drawCandle(s, ctx, x, k)
	}

	last := visible[len(visible)-1]
	layout.Marker = ctx.Clamp(ctx.Y(last.Close))
	s.line(plot.Left, layout.Marker, plot.Right(), layout.Marker, r.cfg.Colors.Marker, 1, markerDash)
	s.c.SetStrokeDashArray(nil)
	s.text(formatPrice(last.Close), plot.Right()+5, layout.Marker+3, r.direction(last), r.cfg.FontSize, alignLeft)

	return layout
}

func (r *ChartRenderer) drawGrid(s surface, plot scale.Plot, ctx scale.Context) {
	for i := 0; i <= r.cfg.GridLines; i++ {
		y, price := ctx.GridLine(i, r.cfg.GridLines)
		s.line(plot.Left, y, plot.Right(), y, r.cfg.Colors.Grid, 1, nil)
		s.text(formatPrice(price), plot.Left-5, y+3, r.cfg.Colors.Label, r.cfg.FontSize, alignRight)
	}
}

func (r *ChartRenderer) drawCandle(s surface, ctx scale.Context, x float64, k candle.Candle) {
	color := r.direction(k)
	yHigh, yLow := ctx.Y(k.High), ctx.Y(k.Low)
	yOpen, yClose := ctx.Y(k.Open), ctx.Y(k.Close)

	s.line(x, math.Min(yHigh, yLow), x, math.Max(yHigh, yLow), color, 1, nil)

	raw := math.Abs(yOpen - yClose)
	height := math.Max(raw, 1)
	top := math.Min(yOpen, yClose)
	if raw < 1 {
		top = (yOpen+yClose)/2 - height/2
	}
	s.fillRect(x-r.cfg.CandleWidth/2, top, r.cfg.CandleWidth, height, color)
}

// ease moves the remembered anchor one step toward target. The anchor is
// tracked per candle sequence number so eviction of the oldest candle shifts
// it by one step and the remaining candles slide instead of jumping. A single
// call only covers part of the distance; the owner keeps redrawing until the
// layout is Settled.
func (r *ChartRenderer) ease(target float64, firstSeq uint64, step float64, size Size) float64 {
	factor := r.cfg.SmoothingFactor
	snap := !r.hasAnchor || factor <= 0 || size != r.lastSize || firstSeq < r.anchorSeq
	if snap {
		r.anchorX = target
	} else {
		r.anchorX += float64(firstSeq-r.anchorSeq) * step
		r.anchorX += (target - r.anchorX) * factor
		if math.Abs(target-r.anchorX) < settle {
			r.anchorX = target
		}
	}
	r.anchorSeq = firstSeq
	r.target = target
	r.hasAnchor = true
	r.lastSize = size
	return r.anchorX
}

func (r *ChartRenderer) direction(k candle.Candle) drawing.Color {
	if k.Up() {
		return r.cfg.Colors.Up
	}
	return r.cfg.Colors.Down
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

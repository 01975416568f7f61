// Package render draws candlestick charts and sparklines onto go-chart renderers.
package render

import (
	"errors"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrInsufficientData is returned when a series is too short to draw.
var ErrInsufficientData = errors.New("render: fewer than two points")

// Canvas is the subset of chart.Renderer the drawing routines need.
type Canvas interface {
	SetStrokeColor(drawing.Color)
	SetFillColor(drawing.Color)
	SetStrokeWidth(width float64)
	SetStrokeDashArray(dashArray []float64)
	SetFontColor(drawing.Color)
	SetFontSize(size float64)
	MoveTo(x, y int)
	LineTo(x, y int)
	Close()
	Stroke()
	Fill()
	Text(body string, x, y int)
	MeasureText(body string) chart.Box
}

var _ Canvas = chart.Renderer(nil)

// Size is a host container size in CSS pixels plus its device pixel ratio.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	DPR    float64 `json:"dpr"`
}

// Normalize fills a missing DPR with 1.
func (s Size) Normalize() Size {
	if s.DPR <= 0 {
		s.DPR = 1
	}
	return s
}

// Valid reports whether the size can be rasterised.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Pixels returns the device pixel dimensions.
func (s Size) Pixels() (int, int) {
	s = s.Normalize()
	return int(math.Round(s.Width * s.DPR)), int(math.Round(s.Height * s.DPR))
}

type align int

const (
	alignLeft align = iota
	alignRight
)

// surface scales CSS pixel geometry onto a device pixel canvas.
type surface struct {
	c   Canvas
	dpr float64
}

func (s surface) px(v float64) int {
	return int(math.Round(v * s.dpr))
}

func (s surface) line(x0, y0, x1, y1 float64, color drawing.Color, width float64, dash []float64) {
	s.c.SetStrokeColor(color)
	s.c.SetStrokeWidth(width * s.dpr)
	if len(dash) > 0 {
		scaled := make([]float64, len(dash))
		for i, d := range dash {
			scaled[i] = d * s.dpr
		}
		s.c.SetStrokeDashArray(scaled)
	} else {
		s.c.SetStrokeDashArray(nil)
	}
	s.c.MoveTo(s.px(x0), s.px(y0))
	s.c.LineTo(s.px(x1), s.px(y1))
	s.c.Stroke()
}

func (s surface) polyline(xs, ys []float64, color drawing.Color, width float64) {
	s.c.SetStrokeColor(color)
	s.c.SetStrokeWidth(width * s.dpr)
	s.c.SetStrokeDashArray(nil)
	s.c.MoveTo(s.px(xs[0]), s.px(ys[0]))
	for i := 1; i < len(xs); i++ {
		s.c.LineTo(s.px(xs[i]), s.px(ys[i]))
	}
	s.c.Stroke()
}

// fillRect fills at least one device pixel in each direction.
func (s surface) fillRect(x, y, w, h float64, color drawing.Color) {
	x0, y0 := s.px(x), s.px(y)
	x1, y1 := s.px(x+w), s.px(y+h)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	s.c.SetFillColor(color)
	s.c.MoveTo(x0, y0)
	s.c.LineTo(x1, y0)
	s.c.LineTo(x1, y1)
	s.c.LineTo(x0, y1)
	s.c.Close()
	s.c.Fill()
}

func (s surface) text(body string, x, y float64, color drawing.Color, size float64, a align) {
	s.c.SetFontColor(color)
	s.c.SetFontSize(size * s.dpr)
	px := s.px(x)
	if a == alignRight {
		px -= s.c.MeasureText(body).Width()
	}
	s.c.Text(body, px, s.px(y))
}

// ParseColor decodes a hex color such as "#10b981" or "fff", falling back when empty.
func ParseColor(hex string, fallback drawing.Color) drawing.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 3 && len(hex) != 6 {
		return fallback
	}
	c := drawing.ColorFromHex(hex)
	c.A = 255
	return c
}

package render

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"stratum/internal/config"
	"stratum/internal/scale"
)

// SparklineRenderer draws a single unlabeled trend polyline.
type SparklineRenderer struct {
	Box       scale.Sparkline
	Up        drawing.Color
	Down      drawing.Color
	LineWidth float64
}

// NewSparklineRenderer builds a renderer from the sparkline config section.
func NewSparklineRenderer(c config.SparklineConfig) SparklineRenderer {
	return SparklineRenderer{
		Box: scale.Sparkline{
			Width:    c.Width,
			Height:   c.Height,
			PaddingX: c.PaddingX,
			PaddingY: c.PaddingY,
		},
		Up:        ParseColor(c.Up, drawing.Color{R: 0x22, G: 0xc5, B: 0x5e, A: 255}),
		Down:      ParseColor(c.Down, DefaultPalette.Down),
		LineWidth: 1.5,
	}
}

// Draw strokes data onto c. Series shorter than two points draw nothing.
func (r SparklineRenderer) Draw(c Canvas, data []float64, positive bool) error {
	points := r.Box.Points(data)
	if points == nil {
		return ErrInsufficientData
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	color := r.Down
	if positive {
		color = r.Up
	}
	surface{c: c, dpr: 1}.polyline(xs, ys, color, r.LineWidth)
	return nil
}

// Render rasterises the sparkline with provider, typically chart.SVG or chart.PNG.
func (r SparklineRenderer) Render(w io.Writer, provider chart.RendererProvider, data []float64, positive bool) error {
	if len(data) < 2 {
		return ErrInsufficientData
	}
	rr, err := provider(int(r.Box.Width), int(r.Box.Height))
	if err != nil {
		return fmt.Errorf("create sparkline renderer: %w", err)
	}
	if err := r.Draw(rr, data, positive); err != nil {
		return err
	}
	if err := rr.Save(w); err != nil {
		return fmt.Errorf("encode sparkline: %w", err)
	}
	return nil
}

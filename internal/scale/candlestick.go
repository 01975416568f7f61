package scale

// DefaultPaddingRatio pads the price domain by 5% on each side.
const DefaultPaddingRatio = 0.05

// AnchorMode decides which end of the candle sequence is pinned.
type AnchorMode string

const (
	// AnchorRight keeps the newest candle flush with the plot's right edge.
	AnchorRight AnchorMode = "right"
	// AnchorLeft keeps the oldest candle at the plot's left edge.
	AnchorLeft AnchorMode = "left"
)

// Context is the affine price mapping for one render.
type Context struct {
	DomainMin    float64
	DomainMax    float64
	PaddedMin    float64
	PaddedMax    float64
	PaddedRange  float64
	PaddingRatio float64
	PixelOrigin  float64
	PixelExtent  float64
}

// NewContext pads [lo, hi] by ratio on each side and maps it onto the pixel
// band starting at origin (top) spanning extent pixels downward.
func NewContext(lo, hi, ratio, origin, extent float64) Context {
	pad := safeRange(lo, hi) * ratio
	ctx := Context{
		DomainMin:    lo,
		DomainMax:    hi,
		PaddedMin:    lo - pad,
		PaddedMax:    hi + pad,
		PaddingRatio: ratio,
		PixelOrigin:  origin,
		PixelExtent:  extent,
	}
	ctx.PaddedRange = ctx.PaddedMax - ctx.PaddedMin
	return ctx
}

// Y maps a price to a vertical pixel; higher prices sit nearer the top.
func (c Context) Y(price float64) float64 {
	return c.PixelOrigin + c.PixelExtent - (price-c.PaddedMin)/c.PaddedRange*c.PixelExtent
}

// Clamp bounds y to the pixel band.
func (c Context) Clamp(y float64) float64 {
	if y < c.PixelOrigin {
		return c.PixelOrigin
	}
	if max := c.PixelOrigin + c.PixelExtent; y > max {
		return max
	}
	return y
}

// GridLine returns the pixel row and price label of grid line i of lines.
func (c Context) GridLine(i, lines int) (y, price float64) {
	y = c.PixelOrigin + c.PixelExtent/float64(lines)*float64(i)
	price = c.PaddedMax - c.PaddedRange/float64(lines)*float64(i)
	return y, price
}

// Plot is the interior of a frame after padding.
type Plot struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Right edge of the plot.
func (p Plot) Right() float64 { return p.Left + p.Width }

// Bottom edge of the plot.
func (p Plot) Bottom() float64 { return p.Top + p.Height }

// NewPlot insets a width x height frame by pad.
func NewPlot(width, height float64, pad Padding) Plot {
	return Plot{
		Left:   pad.Left,
		Top:    pad.Top,
		Width:  width - pad.Left - pad.Right,
		Height: height - pad.Top - pad.Bottom,
	}
}

// Index is the linear candle index to x mapping.
type Index struct {
	Origin float64
	Step   float64
}

// X returns the centre x of candle i.
func (ix Index) X(i int) float64 {
	return ix.Origin + float64(i)*ix.Step
}

// Anchor returns the x of candle 0 for count candles under mode.
func Anchor(mode AnchorMode, plot Plot, candleWidth, step float64, count int) float64 {
	if mode == AnchorLeft {
		return plot.Left + candleWidth/2
	}
	if count < 1 {
		count = 1
	}
	return plot.Left + plot.Width - step*float64(count-1)
}

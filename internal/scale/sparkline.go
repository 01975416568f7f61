package scale

// Sparkline is the unpadded min/max mapping used for trend polylines.
type Sparkline struct {
	Width    float64
	Height   float64
	PaddingX float64
	PaddingY float64
}

// Points maps data onto the sparkline box. It returns nil for fewer than two
// values, where the geometry is undefined.
func (s Sparkline) Points(data []float64) []Point {
	if len(data) < 2 {
		return nil
	}

	lo, hi, _ := Bounds(data)
	mid := (hi + lo) / 2
	rng := safeRange(lo, hi)
	half := s.Height / 2
	span := s.Width - 2*s.PaddingX
	last := float64(len(data) - 1)

	points := make([]Point, len(data))
	for i, v := range data {
		points[i] = Point{
			X: s.PaddingX + float64(i)/last*span,
			Y: half - ((v-mid)/rng)*(half-s.PaddingY),
		}
	}
	return points
}

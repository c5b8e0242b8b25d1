package state

import (
	"math"
)

// DefaultSpacingFactor converts font size into the on-path distance between
// consecutive letters.
const DefaultSpacingFactor = 1.2

// Placer turns recorded points into letters once enough path has been drawn.
//
// Distance is accumulated between consecutive points and carries over stroke
// boundaries, so letter density follows the net drawn distance rather than
// the number of strokes. The pen-up jump between strokes is not counted.
type Placer struct {
	factor float64

	accumulated float64
	anchor      Point
	prev        Point
	hasPrev     bool
	index       int
}

// NewPlacer returns a placer using factor, or DefaultSpacingFactor if factor
// is not positive.
func NewPlacer(factor float64) *Placer {
	if factor <= 0 || math.IsNaN(factor) {
		factor = DefaultSpacingFactor
	}
	return &Placer{factor: factor}
}

// SpacingFactor returns the factor in use.
func (p *Placer) SpacingFactor() float64 {
	return p.factor
}

// Spacing returns the letter spacing for a font size.
func (p *Placer) Spacing(fontSize float64) float64 {
	return fontSize * p.factor
}

// Reset clears every accumulator and the character index.
func (p *Placer) Reset() {
	p.accumulated = 0
	p.anchor = Point{}
	p.prev = Point{}
	p.hasPrev = false
	p.index = 0
}

// Place feeds the next recorded point. It returns a letter when the
// accumulated distance reaches the spacing for style.
func (p *Placer) Place(pt Point, style Style) (Letter, bool) {
	if pt.IsNewSegment || !p.hasPrev {
		p.anchor = pt
		p.prev = pt
		p.hasPrev = true
		return Letter{}, false
	}

	p.accumulated += math.Hypot(pt.X-p.prev.X, pt.Y-p.prev.Y)
	p.prev = pt

	spacing := p.Spacing(style.FontSize)
	if spacing <= 0 || p.accumulated < spacing {
		return Letter{}, false
	}

	angle := math.Atan2(pt.Y-p.anchor.Y, pt.X-p.anchor.X)
	p.accumulated = 0
	p.anchor = pt

	runes := []rune(style.Text)
	if len(runes) == 0 {
		return Letter{}, false
	}
	ch := runes[p.index%len(runes)]
	p.index = (p.index + 1) % len(runes)

	return Letter{
		Character: string(ch),
		X:         pt.X,
		Y:         pt.Y,
		Angle:     angle,
		FontSize:  style.FontSize,
		Thickness: style.Thickness,
		Color:     style.Color,
		Border:    style.Border,
		Font:      style.Font,
		Time:      pt.T,
	}, true
}

// Replay re-derives the letter sequence for points drawn with the given
// per-stroke styles. Points before the first stroke entry use fallback.
func Replay(points []Point, strokes []StrokeInfo, factor float64, fallback Style) []Letter {
	letters, _ := NewPlacer(factor).replay(points, strokes, fallback)
	return letters
}

// replay resets p and feeds it every point, returning the letters and the
// style of the last stroke.
func (p *Placer) replay(points []Point, strokes []StrokeInfo, fallback Style) ([]Letter, Style) {
	p.Reset()
	var letters []Letter
	style := fallback
	next := 0
	for i, pt := range points {
		for next < len(strokes) && strokes[next].Start <= i {
			style = strokes[next].Style
			next++
		}
		if l, ok := p.Place(pt, style); ok {
			letters = append(letters, l)
		}
	}
	return letters, style
}

// PathLength is the drawn length of points, excluding gaps between strokes.
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		if points[i].IsNewSegment {
			continue
		}
		total += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return total
}

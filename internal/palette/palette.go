package palette

import (
	"math"
	"math/rand"
)

// DefaultColors is the series hue set, a blue to red ramp in 33 steps.
var DefaultColors = []string{
	"#2D69B3", "#3266AE", "#3764AA", "#3C61A5", "#415EA0", "#465B9C",
	"#4B5997", "#505692", "#55538E", "#5A5189", "#5F4E84", "#644B7F",
	"#69487B", "#6E4676", "#734371", "#78406D", "#7D3E68", "#823B63",
	"#87385F", "#8C355A", "#913355", "#963051", "#9B2D4C", "#A02A47",
	"#A52843", "#AA253E", "#AF2239", "#B42034", "#B91D30", "#BE1A2B",
	"#C31726", "#C81522", "#CD121D",
}

// Palette assigns a stable color to each series index. The order is fixed
// at construction, so the same index keeps its color for the palette's
// lifetime.
type Palette struct {
	colors []string
}

// New builds a palette from colors, shuffled once with rnd. A nil rnd uses
// the process-wide source.
func New(colors []string, rnd *rand.Rand) *Palette {
	p := Unshuffled(colors)
	swap := func(i, j int) { p.colors[i], p.colors[j] = p.colors[j], p.colors[i] }
	if rnd != nil {
		rnd.Shuffle(len(p.colors), swap)
	} else {
		rand.Shuffle(len(p.colors), swap)
	}
	return p
}

// Unshuffled builds a palette that keeps the given order.
func Unshuffled(colors []string) *Palette {
	cp := make([]string, len(colors))
	copy(cp, colors)
	return &Palette{colors: cp}
}

// ColorForIndex returns the color for series i, wrapping around the palette.
// Negative indexes wrap as well. An empty palette yields "".
func (p *Palette) ColorForIndex(i int) string {
	n := len(p.colors)
	if n == 0 {
		return ""
	}
	return p.colors[((i%n)+n)%n]
}

// Len returns the number of colors.
func (p *Palette) Len() int {
	return len(p.colors)
}

// Colors returns a copy of the palette order.
func (p *Palette) Colors() []string {
	cp := make([]string, len(p.colors))
	copy(cp, p.colors)
	return cp
}

// Scale is a precomputed gradient indexed by a value in [0, Steps].
type Scale struct {
	colors []RGBA
}

// NewScale interpolates steps+1 colors between from and to.
func NewScale(from, to string, steps int) (*Scale, error) {
	colors, err := Interpolate(from, to, steps)
	if err != nil {
		return nil, err
	}
	return &Scale{colors: colors}, nil
}

// MustScale is like NewScale but panics on error.
func MustScale(from, to string, steps int) *Scale {
	s, err := NewScale(from, to, steps)
	if err != nil {
		panic(err)
	}
	return s
}

// Steps returns the index of the last color.
func (s *Scale) Steps() int {
	return len(s.colors) - 1
}

// At returns the color for v, rounded and clamped to [0, Steps]. NaN maps to
// the first color.
func (s *Scale) At(v float64) RGBA {
	if math.IsNaN(v) {
		return s.colors[0]
	}
	idx := int(math.Round(math.Max(0, math.Min(float64(s.Steps()), v))))
	return s.colors[idx]
}

// Colors returns a copy of the gradient.
func (s *Scale) Colors() []RGBA {
	cp := make([]RGBA, len(s.colors))
	copy(cp, s.colors)
	return cp
}

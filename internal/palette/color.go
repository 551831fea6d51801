// Package palette derives display colors for the dashboard: linear gradients
// between two colors, a severity scale indexed by percentage, and a shuffled
// series palette for telling parallel series apart.
package palette

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

var (
	// ErrInvalidColor is returned for input that is neither #rrggbb nor rgba(r, g, b, a).
	ErrInvalidColor = errors.New("palette: invalid color")

	// ErrInvalidSteps is returned by Interpolate for steps < 1.
	ErrInvalidSteps = errors.New("palette: steps must be at least 1")
)

// RGBA is an 8-bit RGB color with a continuous alpha in [0, 1].
type RGBA struct {
	R, G, B uint8
	A       float64
}

// String formats the color as a CSS rgba() value, e.g. "rgba(123, 104, 238, 1)".
func (c RGBA) String() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// Hex formats the color as #rrggbb, dropping alpha.
func (c RGBA) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// Lipgloss returns the color as a terminal foreground/background value.
func (c RGBA) Lipgloss() lipgloss.Color {
	return lipgloss.Color(c.Hex())
}

// ParseHex parses "#rrggbb" or "rrggbb". Alpha is 1.
func ParseHex(s string) (RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 1,
	}, nil
}

// ParseColor accepts either a hex color or an rgba(r, g, b, a) value.
func ParseColor(s string) (RGBA, error) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "rgba(") {
		return ParseHex(t)
	}
	if !strings.HasSuffix(t, ")") {
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	parts := strings.Split(t[len("rgba("):len(t)-1], ",")
	if len(parts) != 4 {
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 8)
		if err != nil {
			return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		ch[i] = uint8(n)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil || a < 0 || a > 1 {
		return RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return RGBA{R: ch[0], G: ch[1], B: ch[2], A: a}, nil
}

// Interpolate returns steps+1 colors evenly spaced from a to b. RGB channels
// are rounded to the nearest integer, alpha is left continuous. The first
// entry equals a and the last equals b.
func Interpolate(a, b string, steps int) ([]RGBA, error) {
	if steps < 1 {
		return nil, ErrInvalidSteps
	}
	from, err := ParseColor(a)
	if err != nil {
		return nil, err
	}
	to, err := ParseColor(b)
	if err != nil {
		return nil, err
	}

	out := make([]RGBA, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out = append(out, RGBA{
			R: lerp8(from.R, to.R, t),
			G: lerp8(from.G, to.G, t),
			B: lerp8(from.B, to.B, t),
			A: from.A + (to.A-from.A)*t,
		})
	}
	return out, nil
}

func lerp8(a, b uint8, t float64) uint8 {
	v := math.Round(float64(a) + (float64(b)-float64(a))*t)
	return uint8(math.Max(0, math.Min(255, v)))
}

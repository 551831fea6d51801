// Package format renders metric values with SI or IEC unit prefixes.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NA is shown wherever a value is unavailable.
const NA = "N/A"

// Base selects the prefix family used by Scaled.
type Base int

const (
	Decimal Base = 1000
	Binary  Base = 1024
)

var (
	decimalPrefixes = []string{"", "K", "M", "G", "T", "P", "E", "Z"}
	binaryPrefixes  = []string{"", "Ki", "Mi", "Gi", "Ti", "Pi", "Ei", "Zi"}
)

// Scaled divides v by base until its magnitude drops below base and prints
// it with one decimal and the matching prefix, e.g. "1.5 KiB". Values past
// the Zetta range print with two decimals and a Yotta prefix. nil and NaN
// yield NA.
func Scaled(v *float64, suffix string, base Base) string {
	if v == nil || math.IsNaN(*v) {
		return NA
	}
	prefixes, yotta := decimalPrefixes, "Y"
	if base == Binary {
		prefixes, yotta = binaryPrefixes, "Yi"
	}

	x, b := *v, float64(base)
	for _, p := range prefixes {
		if math.Abs(x) < b {
			return fmt.Sprintf("%.1f %s%s", x, p, suffix)
		}
		x /= b
	}
	// Past Zetta the value stays in Y units, however large.
	return fmt.Sprintf("%.2f %s%s", x, yotta, suffix)
}

// Unit returns Scaled bound to suffix and base.
func Unit(suffix string, base Base) func(*float64) string {
	return func(v *float64) string {
		return Scaled(v, suffix, base)
	}
}

// Percent prints v as "42.0 %".
func Percent(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return NA
	}
	return fmt.Sprintf("%.1f %%", *v)
}

// Join prints values in their shortest decimal form separated by sep, so
// load averages read "12.3/5/100". A nil or empty slice yields NA.
func Join(values []float64, sep string) string {
	if len(values) == 0 {
		return NA
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, sep)
}

// Ptr returns a pointer to v. Handy for literal values passed to Scaled.
func Ptr[T any](v T) *T {
	return &v
}

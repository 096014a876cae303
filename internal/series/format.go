package series

import (
	"math"
	"strconv"
)

// Formatter names a y-axis label format understood by every renderer.
type Formatter string

// Axis label formats.
const (
	FormatMultiplier Formatter = "multiplier" // x1.05
	FormatUSDApprox  Formatter = "usd_approx" // ~$2.64m
	FormatCount      Formatter = "count"      // 85k
)

// abbreviations are ordered by magnitude.
var abbreviations = []struct {
	limit  float64
	suffix string
}{
	{1, ""},
	{1e3, "k"},
	{1e6, "m"},
	{1e9, "b"},
	{1e12, "t"},
}

// FormatAbbrev formats v with a magnitude suffix and a fixed number of decimals,
// e.g. 2641564.95 with 2 decimals is "2.64m" and 85000 with 0 decimals is "85k".
// A value that rounds up to 1000 of one suffix moves to the next: 999999 is "1.00m".
func FormatAbbrev(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	abs := math.Abs(v)
	i := 0
	for i+1 < len(abbreviations) && abs >= abbreviations[i+1].limit {
		i++
	}
	s := strconv.FormatFloat(v/abbreviations[i].limit, 'f', decimals, 64)
	if i+1 < len(abbreviations) {
		if r, err := strconv.ParseFloat(s, 64); err == nil && math.Abs(r) >= 1000 {
			i++
			s = strconv.FormatFloat(v/abbreviations[i].limit, 'f', decimals, 64)
		}
	}
	if s == "-0" || (len(s) > 1 && s[0] == '-' && isZero(s[1:])) {
		s = s[1:]
	}
	return s + abbreviations[i].suffix
}

func isZero(s string) bool {
	for _, c := range s {
		if c != '0' && c != '.' {
			return false
		}
	}
	return true
}

// Format renders v according to f.
func (f Formatter) Format(v float64) string {
	switch f {
	case FormatMultiplier:
		return "x" + FormatAbbrev(v, 2)
	case FormatUSDApprox:
		return "~$" + FormatAbbrev(v, 2)
	case FormatCount:
		return FormatAbbrev(v, 0)
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CompactThreshold is the magnitude above which prices are shown as grouped
// integers instead of significant-figure decimals.
const CompactThreshold = 1000

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatCompactNumber renders n for the price line: values above
// CompactThreshold in magnitude become a grouped integer ("2,000"), smaller
// ones keep five significant figures ("1.2346"). Whole numbers keep a
// trailing ".0" so small prices always read as decimals.
func FormatCompactNumber(n float64) string {
	if math.Abs(n) > CompactThreshold {
		return FormatInt(int(n))
	}
	v, _ := strconv.ParseFloat(strconv.FormatFloat(n, 'g', 5, 64), 64)
	if v != 0 && (math.Abs(v) < 1e-4 || math.IsInf(v, 0)) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// PercentageDiff returns the change from previous to current in percent.
// Equal values give 0 and a zero previous value gives +Inf.
func PercentageDiff(current, previous float64) float64 {
	if current == previous {
		return 0
	}
	if previous == 0 {
		return math.Inf(1)
	}
	return (current - previous) / previous * 100
}

// FormatDelta renders an absolute price change, signed, to two significant
// figures.
func FormatDelta(d float64) string {
	return fmt.Sprintf("%+.2g", d)
}

// FormatPercent renders a percentage change, signed, to two decimals.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%+.2f", p)
}

// FormatChange is the delta line shown under the symbol, e.g. "+1.5 (+0.84%)".
func FormatChange(latest, previous float64) string {
	return fmt.Sprintf("%s (%s%%)", FormatDelta(latest-previous), FormatPercent(PercentageDiff(latest, previous)))
}

// FormatStamp renders the data timestamp line, e.g. "9:05 AM, 3 Jan 2024".
// The hour is the unpadded 24-hour clock followed by the AM/PM marker.
func FormatStamp(t time.Time) string {
	return fmt.Sprintf("%d:%02d %s, %s", t.Hour(), t.Minute(), t.Format("PM"), t.Format("2 Jan 2006"))
}

// FormatVolume formats a traded volume with B/M/K suffixes.
func FormatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatPrice formats a price with two decimals, or "-" for zero.
func FormatPrice(p float64) string {
	if p == 0 || math.IsNaN(p) {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

package textutil

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// SingleLine collapses line breaks and tabs so s renders on one row.
func SingleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", "", "\t", " ").Replace(s)
}

// FitWidth truncates s to at most width terminal cells, marking the cut with
// "...". Wide runes (CJK, emoji) count as two cells.
func FitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = SingleLine(s)
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// PadRight fits s to exactly width cells.
func PadRight(s string, width int) string {
	s = FitWidth(s, width)
	return runewidth.FillRight(s, width)
}

// FormatBytes renders a byte count as "512 B", "1.5 KB" and so on.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

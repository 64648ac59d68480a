package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	"github.com/wesm/mboxbrowser/internal/search"
	"github.com/wesm/mboxbrowser/internal/session"
)

// highlightTerms applies highlight styling to all occurrences of the
// query's plain terms in text. Matching is case-insensitive.
func highlightTerms(text, searchQuery string) string {
	if searchQuery == "" || text == "" {
		return text
	}
	terms := extractSearchTerms(searchQuery)
	if len(terms) == 0 {
		return text
	}
	return applyHighlight(text, terms)
}

// extractSearchTerms returns the displayable terms of a query. Queries that
// do not parse highlight nothing.
func extractSearchTerms(queryStr string) []string {
	q, err := search.Parse(queryStr)
	if err != nil {
		return nil
	}
	var terms []string
	terms = append(terms, q.TextTerms...)
	terms = append(terms, q.BodyTerms...)
	terms = append(terms, q.FromAddrs...)
	terms = append(terms, q.ToAddrs...)
	terms = append(terms, q.SubjectTerms...)

	seen := make(map[string]bool, len(terms))
	filtered := terms[:0]
	for _, t := range terms {
		if t != "" && !seen[t] {
			seen[t] = true
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// applyHighlight wraps case-insensitive occurrences of any term with
// highlightStyle. It works on runes so lowercasing that changes byte length
// cannot shift the match positions.
func applyHighlight(text string, terms []string) string {
	textRunes := []rune(text)
	lowerRunes := []rune(strings.ToLower(text))
	if len(lowerRunes) != len(textRunes) {
		return text
	}

	type interval struct{ start, end int }
	var intervals []interval
	for _, term := range terms {
		tr := []rune(strings.ToLower(term))
		if len(tr) == 0 {
			continue
		}
		for i := 0; i <= len(lowerRunes)-len(tr); i++ {
			if string(lowerRunes[i:i+len(tr)]) == string(tr) {
				intervals = append(intervals, interval{i, i + len(tr)})
				i += len(tr) - 1
			}
		}
	}
	if len(intervals) == 0 {
		return text
	}

	// Few intervals per line: insertion sort, then merge.
	for i := 1; i < len(intervals); i++ {
		for j := i; j > 0 && intervals[j].start < intervals[j-1].start; j-- {
			intervals[j], intervals[j-1] = intervals[j-1], intervals[j]
		}
	}
	merged := []interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if iv.start <= last.end {
			last.end = max(last.end, iv.end)
		} else {
			merged = append(merged, iv)
		}
	}

	var sb strings.Builder
	prev := 0
	for _, iv := range merged {
		sb.WriteString(string(textRunes[prev:iv.start]))
		sb.WriteString(highlightStyle.Render(string(textRunes[iv.start:iv.end])))
		prev = iv.end
	}
	sb.WriteString(string(textRunes[prev:]))
	return sb.String()
}

// padRight pads s with spaces to fill width terminal cells, truncating
// ANSI-aware when it is wider.
func padRight(s string, width int) string {
	sw := lipgloss.Width(s)
	if sw >= width {
		return ansi.Truncate(s, width, "")
	}
	return s + strings.Repeat(" ", width-sw)
}

// formatAddress renders "Name <addr>" or the bare address.
func formatAddress(name, addr string) string {
	switch {
	case name != "" && addr != "":
		return fmt.Sprintf("%s <%s>", name, addr)
	case name != "":
		return name
	default:
		return addr
	}
}

// formatAddresses formats a slice of addresses as a comma-separated string.
func formatAddresses(addrs []session.EmailAddress) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, formatAddress(a.Name, a.Address))
	}
	return strings.Join(parts, ", ")
}

// sender is the list column for an entry: the display name when present.
func sender(e session.EmailEntry) string {
	if e.FromName != "" {
		return e.FromName
	}
	return e.FromAddress
}

// shortDate renders the RFC 3339 date of an entry as YYYY-MM-DD HH:MM.
func shortDate(rfc3339 string) string {
	if len(rfc3339) < 16 {
		return rfc3339
	}
	return rfc3339[:10] + " " + rfc3339[11:16]
}

// wrapText wraps text to fit within width terminal cells, preferring to
// break at spaces.
func wrapText(text string, width int) []string {
	if width <= 0 {
		width = 80
	}

	var result []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.ReplaceAll(line, "\t", "    ")
		if runewidth.StringWidth(line) <= width {
			result = append(result, line)
			continue
		}

		runes := []rune(line)
		for len(runes) > 0 {
			currentWidth, breakAt, lastSpace := 0, 0, -1
			for i, r := range runes {
				rw := runewidth.RuneWidth(r)
				if currentWidth+rw > width {
					break
				}
				currentWidth += rw
				breakAt = i + 1
				if r == ' ' {
					lastSpace = i
				}
			}

			if lastSpace > breakAt/2 && breakAt < len(runes) {
				breakAt = lastSpace
			}
			if breakAt == 0 {
				// A single rune wider than the line.
				breakAt = 1
			}

			result = append(result, string(runes[:breakAt]))
			runes = runes[breakAt:]
			for len(runes) > 0 && runes[0] == ' ' {
				runes = runes[1:]
			}
		}
	}
	return result
}

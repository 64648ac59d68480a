// Package search provides Gmail-like search query parsing and evaluation
// over an MBOX index.
package search

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/wesm/mboxbrowser/internal/mboxerr"
)

// Query represents a parsed search query with all supported filters.
// String terms are lowercased; all matching is case-insensitive.
type Query struct {
	TextTerms     []string   // Free text: metadata or body
	BodyTerms     []string   // body: filters (body only)
	FromAddrs     []string   // from: filters
	ToAddrs       []string   // to: filters
	CcAddrs       []string   // cc: filters
	SubjectTerms  []string   // subject: filters
	Labels        []string   // label: filters (exact)
	HasAttachment *bool      // has:attachment
	BeforeDate    *time.Time // exclusive upper bound
	AfterDate     *time.Time // inclusive lower bound
	LargerThan    *int64     // larger: filter (raw message bytes)
	SmallerThan   *int64     // smaller: filter (raw message bytes)
}

// IsEmpty returns true if the query has no search criteria.
func (q *Query) IsEmpty() bool {
	return len(q.TextTerms) == 0 &&
		len(q.BodyTerms) == 0 &&
		len(q.FromAddrs) == 0 &&
		len(q.ToAddrs) == 0 &&
		len(q.CcAddrs) == 0 &&
		len(q.SubjectTerms) == 0 &&
		len(q.Labels) == 0 &&
		q.HasAttachment == nil &&
		q.BeforeDate == nil &&
		q.AfterDate == nil &&
		q.LargerThan == nil &&
		q.SmallerThan == nil
}

// NeedsBody reports whether evaluating q may require reading message bodies.
func (q *Query) NeedsBody() bool {
	return len(q.TextTerms) > 0 || len(q.BodyTerms) > 0
}

func (q *Query) setBefore(t time.Time) {
	if q.BeforeDate == nil || t.Before(*q.BeforeDate) {
		q.BeforeDate = &t
	}
}

func (q *Query) setAfter(t time.Time) {
	if q.AfterDate == nil || t.After(*q.AfterDate) {
		q.AfterDate = &t
	}
}

// operatorFn handles a parsed operator:value pair by applying it to the query.
type operatorFn func(q *Query, value string, now time.Time) error

// operators maps operator names to their handler functions.
var operators = map[string]operatorFn{
	"from": func(q *Query, v string, _ time.Time) error {
		q.FromAddrs = append(q.FromAddrs, strings.ToLower(v))
		return nil
	},
	"to": func(q *Query, v string, _ time.Time) error {
		q.ToAddrs = append(q.ToAddrs, strings.ToLower(v))
		return nil
	},
	"cc": func(q *Query, v string, _ time.Time) error {
		q.CcAddrs = append(q.CcAddrs, strings.ToLower(v))
		return nil
	},
	"subject": func(q *Query, v string, _ time.Time) error {
		q.SubjectTerms = append(q.SubjectTerms, strings.ToLower(v))
		return nil
	},
	"body": func(q *Query, v string, _ time.Time) error {
		q.BodyTerms = append(q.BodyTerms, strings.ToLower(v))
		return nil
	},
	"label": addLabel,
	"l":     addLabel,
	"has": func(q *Query, v string, _ time.Time) error {
		if low := strings.ToLower(v); low == "attachment" || low == "attachments" {
			b := true
			q.HasAttachment = &b
			return nil
		}
		return mboxerr.QuerySyntax("unsupported has: value %q", v)
	},
	"before": func(q *Query, v string, _ time.Time) error {
		t, err := parseDate(v)
		if err != nil {
			return err
		}
		q.setBefore(t)
		return nil
	},
	"after": func(q *Query, v string, _ time.Time) error {
		t, err := parseDate(v)
		if err != nil {
			return err
		}
		q.setAfter(t)
		return nil
	},
	"date": func(q *Query, v string, _ time.Time) error {
		start, end, err := parseDateRange(v)
		if err != nil {
			return err
		}
		q.setAfter(start)
		q.setBefore(end)
		return nil
	},
	"older_than": func(q *Query, v string, now time.Time) error {
		t, err := parseRelativeDate(v, now)
		if err != nil {
			return err
		}
		q.setBefore(t)
		return nil
	},
	"newer_than": func(q *Query, v string, now time.Time) error {
		t, err := parseRelativeDate(v, now)
		if err != nil {
			return err
		}
		q.setAfter(t)
		return nil
	},
	"larger": func(q *Query, v string, _ time.Time) error {
		size, err := parseSize(v)
		if err != nil {
			return err
		}
		q.LargerThan = &size
		return nil
	},
	"smaller": func(q *Query, v string, _ time.Time) error {
		size, err := parseSize(v)
		if err != nil {
			return err
		}
		q.SmallerThan = &size
		return nil
	},
}

func addLabel(q *Query, v string, _ time.Time) error {
	q.Labels = append(q.Labels, strings.ToLower(v))
	return nil
}

// Parser holds configuration for query parsing.
type Parser struct {
	Now func() time.Time // Time source (mockable for testing)
}

// NewParser creates a Parser with default settings.
func NewParser() *Parser {
	return &Parser{Now: func() time.Time { return time.Now().UTC() }}
}

// Parse parses a Gmail-like search query string into a Query object.
//
// Supported operators:
//   - from:, to:, cc: - address filters (name or address substring)
//   - subject: - subject text search
//   - body: - body-only text search
//   - label: or l: - label filter
//   - has:attachment - attachment filter
//   - before:, after: - date filters (YYYY-MM-DD or YYYY/MM/DD)
//   - date: - a single day, or start..end inclusive
//   - older_than:, newer_than: - relative date filters (e.g., 7d, 2w, 1m, 1y)
//   - larger:, smaller: - size filters (e.g., 5M, 100K)
//   - Bare words and "quoted phrases" - free text search
//
// Unknown operators are treated as free text. Errors are mboxerr.ErrQuerySyntax.
func (p *Parser) Parse(queryStr string) (*Query, error) {
	q := &Query{}
	now := time.Now().UTC()
	if p.Now != nil {
		now = p.Now()
	}
	tokens, err := tokenize(queryStr)
	if err != nil {
		return nil, err
	}

	for _, token := range tokens {
		if isQuotedPhrase(token) {
			q.TextTerms = append(q.TextTerms, strings.ToLower(unquote(token)))
			continue
		}

		if idx := strings.Index(token, ":"); idx > 0 {
			op := strings.ToLower(token[:idx])
			if handler, ok := operators[op]; ok {
				value := strings.TrimSpace(unquote(token[idx+1:]))
				if value == "" {
					return nil, mboxerr.QuerySyntax("operator %s: has no value", op)
				}
				if err := handler(q, value, now); err != nil {
					return nil, err
				}
				continue
			}
		}

		q.TextTerms = append(q.TextTerms, strings.ToLower(token))
	}

	if q.IsEmpty() {
		return nil, mboxerr.QuerySyntax("empty query")
	}
	return q, nil
}

// Parse is a convenience function that parses using default settings.
func Parse(queryStr string) (*Query, error) {
	return NewParser().Parse(queryStr)
}

// unquote removes surrounding double quotes from a string if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// isQuotedPhrase returns true if the token is a double-quoted phrase.
func isQuotedPhrase(token string) bool {
	return len(token) > 2 && token[0] == '"' && token[len(token)-1] == '"'
}

// tokenize splits a query string, preserving quoted phrases and operator:value pairs.
// Handles cases like subject:"foo bar" where the operator and quoted value should stay together.
func tokenize(queryStr string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inQuotes := false
	// Track if we just saw a colon (for op:"value" handling)
	afterColon := false
	// Track if this quoted section started as op:"value" (quote immediately after colon)
	opQuoted := false

	for _, char := range queryStr {
		switch {
		case char == '"' && !inQuotes:
			inQuotes = true
			opQuoted = afterColon
			if !afterColon && current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			if afterColon {
				current.WriteRune(char)
			}
			afterColon = false
		case char == '"' && inQuotes:
			inQuotes = false
			if opQuoted {
				current.WriteRune(char)
				tokens = append(tokens, current.String())
				current.Reset()
			} else if current.Len() > 0 {
				// Standalone quoted phrase (may contain colons, but not op:"value")
				tokens = append(tokens, "\""+current.String()+"\"")
				current.Reset()
			}
			opQuoted = false
		case unicode.IsSpace(char) && !inQuotes:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			afterColon = false
		default:
			current.WriteRune(char)
			afterColon = (char == ':')
		}
	}

	if inQuotes {
		return nil, mboxerr.QuerySyntax("unterminated quote")
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
}

// parseDate parses date strings like YYYY-MM-DD or YYYY/MM/DD as midnight UTC.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, mboxerr.QuerySyntax("invalid date %q (want YYYY-MM-DD)", value)
}

// parseDateRange parses "D" as that whole day and "A..B" as A through B
// inclusive. The returned end is exclusive.
func parseDateRange(value string) (start, end time.Time, err error) {
	from, to, isRange := strings.Cut(value, "..")
	if !isRange {
		to = from
	}
	if start, err = parseDate(from); err != nil {
		return time.Time{}, time.Time{}, err
	}
	last, err := parseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, mboxerr.QuerySyntax("date range %q ends before it starts", value)
	}
	return start, last.AddDate(0, 0, 1), nil
}

var relativeDateRe = regexp.MustCompile(`^(\d+)([dwmy])$`)

// parseRelativeDate parses relative dates like 7d, 2w, 1m, 1y relative to now.
func parseRelativeDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	match := relativeDateRe.FindStringSubmatch(value)
	if match == nil {
		return time.Time{}, mboxerr.QuerySyntax("invalid relative date %q (want e.g. 7d, 2w, 1m, 1y)", value)
	}

	amount, err := strconv.Atoi(match[1])
	if err != nil {
		return time.Time{}, mboxerr.QuerySyntax("invalid relative date %q", value)
	}

	switch match[2] {
	case "d":
		return now.AddDate(0, 0, -amount), nil
	case "w":
		return now.AddDate(0, 0, -amount*7), nil
	case "m":
		return now.AddDate(0, -amount, 0), nil
	default:
		return now.AddDate(-amount, 0, 0), nil
	}
}

var sizeSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"KB", 1024},
	{"MB", 1024 * 1024},
	{"GB", 1024 * 1024 * 1024},
	{"K", 1024},
	{"M", 1024 * 1024},
	{"G", 1024 * 1024 * 1024},
}

// parseSize parses size strings like 5M, 100K, 1G into bytes.
func parseSize(value string) (int64, error) {
	value = strings.TrimSpace(strings.ToUpper(value))

	for _, s := range sizeSuffixes {
		if strings.HasSuffix(value, s.suffix) {
			numStr := value[:len(value)-len(s.suffix)]
			if num, err := strconv.ParseFloat(numStr, 64); err == nil && num >= 0 {
				return int64(num * float64(s.mult)), nil
			}
			return 0, mboxerr.QuerySyntax("invalid size %q", value)
		}
	}

	// Plain number (bytes)
	if num, err := strconv.ParseInt(value, 10, 64); err == nil && num >= 0 {
		return num, nil
	}
	return 0, mboxerr.QuerySyntax("invalid size %q", value)
}

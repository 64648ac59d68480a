package search

import (
	"errors"
	"testing"
	"time"

	"github.com/wesm/mboxbrowser/internal/mboxerr"
)

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func boolPtr(v bool) *bool           { return &v }
func i64Ptr(v int64) *int64          { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func mustParse(t *testing.T, query string) *Query {
	t.Helper()
	q, err := Parse(query)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	return q
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Query
	}{
		// Basic Operators
		{
			name:  "from operator",
			query: "from:alice@example.com",
			want:  Query{FromAddrs: []string{"alice@example.com"}},
		},
		{
			name:  "to operator lowercased",
			query: "to:Bob@Example.com",
			want:  Query{ToAddrs: []string{"bob@example.com"}},
		},
		{
			name:  "cc operator",
			query: "cc:carol",
			want:  Query{CcAddrs: []string{"carol"}},
		},
		{
			name:  "multiple from",
			query: "from:alice@example.com from:bob@example.com",
			want:  Query{FromAddrs: []string{"alice@example.com", "bob@example.com"}},
		},
		{
			name:  "bare text",
			query: "Hello world",
			want:  Query{TextTerms: []string{"hello", "world"}},
		},
		{
			name:  "quoted phrase",
			query: `"hello world"`,
			want:  Query{TextTerms: []string{"hello world"}},
		},
		{
			name:  "body operator",
			query: `body:invoice body:"due date"`,
			want:  Query{BodyTerms: []string{"invoice", "due date"}},
		},
		{
			name:  "mixed operators and text",
			query: "from:alice@example.com meeting notes",
			want: Query{
				FromAddrs: []string{"alice@example.com"},
				TextTerms: []string{"meeting", "notes"},
			},
		},
		{
			name:  "unknown operator is free text",
			query: "foo:bar",
			want:  Query{TextTerms: []string{"foo:bar"}},
		},
		{
			name:  "tabs separate tokens",
			query: "alpha\tbeta",
			want:  Query{TextTerms: []string{"alpha", "beta"}},
		},

		// Quoted Operator Values
		{
			name:  "subject with quoted phrase",
			query: `subject:"Meeting Notes"`,
			want:  Query{SubjectTerms: []string{"meeting notes"}},
		},
		{
			name:  "label with quoted value containing spaces",
			query: `label:"My Important Label"`,
			want:  Query{Labels: []string{"my important label"}},
		},
		{
			name:  "mixed quoted and unquoted",
			query: `subject:urgent subject:"very important" search term`,
			want: Query{
				SubjectTerms: []string{"urgent", "very important"},
				TextTerms:    []string{"search", "term"},
			},
		},

		// Quoted Phrases With Colons
		{
			name:  "quoted phrase with time",
			query: `"meeting at 10:30"`,
			want:  Query{TextTerms: []string{"meeting at 10:30"}},
		},
		{
			name:  "quoted colon phrase mixed with real operator",
			query: `from:alice@example.com "subject:not an operator"`,
			want: Query{
				FromAddrs: []string{"alice@example.com"},
				TextTerms: []string{"subject:not an operator"},
			},
		},
		{
			name:  "apostrophe is not a quote",
			query: "don't panic",
			want:  Query{TextTerms: []string{"don't", "panic"}},
		},

		// Labels
		{
			name:  "multiple labels",
			query: "label:INBOX l:work",
			want:  Query{Labels: []string{"inbox", "work"}},
		},

		// Has Attachment
		{
			name:  "has attachment",
			query: "has:attachment",
			want:  Query{HasAttachment: boolPtr(true)},
		},
		{
			name:  "has attachments plural",
			query: "has:Attachments",
			want:  Query{HasAttachment: boolPtr(true)},
		},

		// Dates
		{
			name:  "after and before dates",
			query: "after:2024-01-15 before:2024/06/30",
			want: Query{
				AfterDate:  timePtr(utcDate(2024, 1, 15)),
				BeforeDate: timePtr(utcDate(2024, 6, 30)),
			},
		},
		{
			name:  "date single day",
			query: "date:2024-03-10",
			want: Query{
				AfterDate:  timePtr(utcDate(2024, 3, 10)),
				BeforeDate: timePtr(utcDate(2024, 3, 11)),
			},
		},
		{
			name:  "date range inclusive",
			query: "date:2024-01-01..2024-01-31",
			want: Query{
				AfterDate:  timePtr(utcDate(2024, 1, 1)),
				BeforeDate: timePtr(utcDate(2024, 2, 1)),
			},
		},
		{
			name:  "tightest bounds win",
			query: "after:2024-01-01 after:2024-02-01 before:2024-12-01 before:2024-06-01",
			want: Query{
				AfterDate:  timePtr(utcDate(2024, 2, 1)),
				BeforeDate: timePtr(utcDate(2024, 6, 1)),
			},
		},

		// Sizes
		{
			name:  "larger than 5M",
			query: "larger:5M",
			want:  Query{LargerThan: i64Ptr(5 * 1024 * 1024)},
		},
		{
			name:  "smaller than 100KB",
			query: "smaller:100KB",
			want:  Query{SmallerThan: i64Ptr(100 * 1024)},
		},
		{
			name:  "plain bytes",
			query: "larger:2048",
			want:  Query{LargerThan: i64Ptr(2048)},
		},

		// Complex Query
		{
			name:  "complex query",
			query: `from:alice@example.com to:bob@example.com subject:meeting has:attachment after:2024-01-01 "project report"`,
			want: Query{
				FromAddrs:     []string{"alice@example.com"},
				ToAddrs:       []string{"bob@example.com"},
				SubjectTerms:  []string{"meeting"},
				TextTerms:     []string{"project report"},
				HasAttachment: boolPtr(true),
				AfterDate:     timePtr(utcDate(2024, 1, 1)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.query)
			assertQueryEqual(t, *got, tt.want)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"whitespace only", "   \t "},
		{"empty quoted phrase", `""`},
		{"unterminated quote", `"hello world`},
		{"unterminated operator quote", `subject:"hello`},
		{"operator without value", "from:"},
		{"operator with empty quotes", `subject:""`},
		{"invalid before date", "before:yesterday"},
		{"invalid after date", "after:2024-13-01"},
		{"invalid date range", "date:2024-01-01..soon"},
		{"reversed date range", "date:2024-02-01..2024-01-01"},
		{"invalid relative date", "newer_than:7x"},
		{"unsupported has", "has:userlabels"},
		{"invalid size", "larger:big"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.query)
			if err == nil {
				t.Fatalf("Parse(%q) = %+v, want error", tt.query, q)
			}
			if !errors.Is(err, mboxerr.ErrQuerySyntax) {
				t.Errorf("Parse(%q) error = %v, want ErrQuerySyntax", tt.query, err)
			}
		})
	}
}

func TestParse_RelativeDates(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	p := &Parser{Now: func() time.Time { return now }}

	tests := []struct {
		query string
		want  Query
	}{
		{"newer_than:7d", Query{AfterDate: timePtr(now.AddDate(0, 0, -7))}},
		{"newer_than:2w", Query{AfterDate: timePtr(now.AddDate(0, 0, -14))}},
		{"older_than:1m", Query{BeforeDate: timePtr(now.AddDate(0, -1, 0))}},
		{"older_than:1Y", Query{BeforeDate: timePtr(now.AddDate(-1, 0, 0))}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := p.Parse(tt.query)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			assertQueryEqual(t, *q, tt.want)
		})
	}
}

func TestQuery_NeedsBody(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"from:alice@example.com", false},
		{"has:attachment label:inbox", false},
		{"hello", true},
		{"body:invoice", true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q := mustParse(t, tt.query)
			if q.NeedsBody() != tt.want {
				t.Errorf("NeedsBody(%q): got %v, want %v", tt.query, q.NeedsBody(), tt.want)
			}
		})
	}
}

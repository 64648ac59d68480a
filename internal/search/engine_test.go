package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/wesm/mboxbrowser/internal/index"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/model"
	testemail "github.com/wesm/mboxbrowser/internal/testutil/email"
	"github.com/wesm/mboxbrowser/internal/testutil/mboxtest"
)

// assertQueryEqual compares two Query structs, treating nil slices and empty
// slices as equivalent.
func assertQueryEqual(t *testing.T, got, want Query) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Query mismatch (-want +got):\n%s", diff)
	}
}

func quietEngine(workers int) *Engine {
	return NewEngine(Options{
		Workers: workers,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// fixture writes a small mailbox and returns its path and sorted index:
//
//	0 mar  alice -> bob     "Quarterly report"  body mentions invoice, Work label, attachment
//	1 feb  bob   -> alice   "Lunch?"            HTML-only body mentions pizza
//	2 jan  carol -> dave    "Status"            body mentions invoice and pizza, cc alice
func fixture(t *testing.T) (string, []model.IndexEntry) {
	t.Helper()
	path := mboxtest.WriteFile(t, "search.mbox",
		mboxtest.Raw(testemail.NewMessage().
			From("Carol <carol@example.com>").To("dave@example.com").Cc("alice@example.com").
			Subject("Status").Date("Mon, 15 Jan 2024 09:00:00 +0000").
			Body("The invoice is attached. Pizza on Friday.").Bytes()),
		mboxtest.Raw(testemail.NewMessage().
			From("Alice <alice@example.com>").To("bob@example.com").
			Subject("Quarterly report").Date("Fri, 15 Mar 2024 09:00:00 +0000").
			Labels("Work", "Inbox").
			Body("Please review the invoice before Monday.").
			WithAttachment("q1.pdf", "application/pdf", []byte("%PDF")).Bytes()),
		mboxtest.Raw(testemail.NewMessage().
			From("bob@example.com").To("alice@example.com").
			Subject("Lunch?").Date("Thu, 15 Feb 2024 09:00:00 +0000").
			HTML("<p>How about <b>PIZZA</b>?</p>").HTMLOnly().Bytes()),
	)
	entries, err := index.Build(context.Background(), path, index.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("index.Build: %v", err)
	}
	index.SortByDate(entries)
	return path, entries
}

func TestExecute(t *testing.T) {
	path, entries := fixture(t)
	engine := quietEngine(2)

	tests := []struct {
		query string
		want  []int
	}{
		{"from:alice", []int{0}},
		{"to:alice", []int{1}},
		{"cc:alice", []int{2}},
		{"subject:REPORT", []int{0}},
		{"label:work", []int{0}},
		{"l:INBOX", []int{0}},
		{"label:wor", nil},
		{"has:attachment", []int{0}},
		{"after:2024-02-01", []int{0, 1}},
		{"before:2024-02-15", []int{2}},
		{"date:2024-02-15", []int{1}},
		{"date:2024-01-01..2024-02-15", []int{1, 2}},
		{"invoice", []int{0, 2}},
		{"pizza", []int{1, 2}},
		{"alice pizza", []int{1, 2}},
		{"body:alice", nil},
		{"body:invoice from:carol", []int{2}},
		{`"review the invoice"`, []int{0}},
		{"quarterly invoice", []int{0}},
		{"nothing-matches-this", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, got, err := engine.Execute(context.Background(), path, entries, tt.query, nil)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("matches mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecute_MetadataQueriesDoNoIO(t *testing.T) {
	_, entries := fixture(t)
	missing := filepath.Join(t.TempDir(), "gone.mbox")

	for _, query := range []string{"from:alice", "has:attachment", "label:work"} {
		_, got, err := quietEngine(1).Execute(context.Background(), missing, entries, query, nil)
		if err != nil {
			t.Errorf("Execute(%q) touched the file: %v", query, err)
		}
		if len(got) != 1 || got[0] != 0 {
			t.Errorf("Execute(%q) = %v, want [0]", query, got)
		}
	}

	_, _, err := quietEngine(1).Execute(context.Background(), missing, entries, "invoice", nil)
	if !errors.Is(err, mboxerr.ErrNotFound) {
		t.Errorf("body query on missing file: error = %v, want ErrNotFound", err)
	}
}

func TestExecute_Progress(t *testing.T) {
	path, entries := fixture(t)

	var (
		mu    sync.Mutex
		calls []Progress
	)
	_, _, err := quietEngine(3).Execute(context.Background(), path, entries, "body:invoice", func(p Progress) {
		mu.Lock()
		calls = append(calls, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(calls) != len(entries) {
		t.Fatalf("got %d progress calls, want %d", len(calls), len(entries))
	}
	for i, p := range calls {
		if p.Scanned != i+1 || p.Total != len(entries) {
			t.Errorf("call %d = %+v", i, p)
		}
	}
}

func TestExecute_UnreadableMessageIsNonMatch(t *testing.T) {
	path, entries := fixture(t)
	entries = slices.Clone(entries)
	entries[0].Length += 1 << 20 // beyond the end of the file

	_, got, err := quietEngine(2).Execute(context.Background(), path, entries, "invoice", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if diff := cmp.Diff([]int{2}, got); diff != "" {
		t.Errorf("matches mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_Errors(t *testing.T) {
	path, entries := fixture(t)

	_, _, err := quietEngine(1).Execute(context.Background(), path, entries, `"unterminated`, nil)
	if !errors.Is(err, mboxerr.ErrQuerySyntax) {
		t.Errorf("syntax error = %v, want ErrQuerySyntax", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = quietEngine(1).Execute(ctx, path, entries, "invoice", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("canceled search error = %v, want context.Canceled", err)
	}
}

func TestExecute_EmptyIndex(t *testing.T) {
	_, got, err := quietEngine(1).Execute(context.Background(), "unused", nil, "anything", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no matches", got)
	}
}

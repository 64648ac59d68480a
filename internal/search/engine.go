package search

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/model"
	"github.com/wesm/mboxbrowser/internal/store"
)

// Progress reports how many messages the body scan has read so far.
type Progress struct {
	Scanned int
	Total   int
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Workers bounds concurrent body reads. Defaults to runtime.NumCPU().
	Workers int
	Parser  *Parser
	Logger  *slog.Logger
}

// Engine evaluates queries against an index snapshot.
type Engine struct {
	workers int
	parser  *Parser
	logger  *slog.Logger
}

// NewEngine returns an Engine configured by opts.
func NewEngine(opts Options) *Engine {
	e := &Engine{workers: opts.Workers, parser: opts.Parser, logger: opts.Logger}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}
	if e.parser == nil {
		e.parser = NewParser()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Execute parses text and returns the sequence numbers of the matching
// entries in ascending order. entries must be ordered by Sequence. Queries
// that only touch metadata never open path; the others read candidate bodies
// from path on a bounded worker pool. progress, if non-nil, is called once per
// body read and never concurrently.
//
// A body that cannot be parsed is a non-match. I/O errors abort the search.
func (e *Engine) Execute(ctx context.Context, path string, entries []model.IndexEntry, text string, progress func(Progress)) (*Query, []int, error) {
	q, err := e.parser.Parse(text)
	if err != nil {
		return nil, nil, err
	}

	matched := make([]bool, len(entries))
	var pending []scanJob
	for i := range entries {
		if !q.matchesMetadata(&entries[i]) {
			continue
		}
		if !q.NeedsBody() {
			matched[i] = true
			continue
		}
		rest := q.unmatchedText(&entries[i])
		if len(rest) == 0 && len(q.BodyTerms) == 0 {
			matched[i] = true
			continue
		}
		pending = append(pending, scanJob{pos: i, terms: append(rest, q.BodyTerms...)})
	}

	if len(pending) > 0 {
		if err := e.scanBodies(ctx, path, entries, pending, matched, progress); err != nil {
			return nil, nil, err
		}
	}

	var seqs []int
	for i, ok := range matched {
		if ok {
			seqs = append(seqs, entries[i].Sequence)
		}
	}
	return q, seqs, nil
}

type scanJob struct {
	pos   int
	terms []string // all must occur in the body
}

func (e *Engine) scanBodies(ctx context.Context, path string, entries []model.IndexEntry, pending []scanJob, matched []bool, progress func(Progress)) error {
	workers := min(e.workers, len(pending))

	var (
		mu      sync.Mutex
		scanned int
	)
	done := func() {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		scanned++
		progress(Progress{Scanned: scanned, Total: len(pending)})
	}

	jobs := make(chan scanJob)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, j := range pending {
			select {
			case jobs <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range workers {
		g.Go(func() error {
			s, err := store.Open(path)
			if err != nil {
				return err
			}
			defer s.Close()

			for j := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				entry := entries[j.pos]
				msg, err := s.Parse(entry)
				if err != nil {
					if errors.Is(err, mboxerr.ErrMboxFormat) {
						e.logger.Warn("search: skipping unparseable message",
							"sequence", entry.Sequence, "error", err)
						done()
						continue
					}
					return err
				}
				// Each position is written by exactly one worker.
				matched[j.pos] = containsAll(msg.SearchableText(), j.terms)
				done()
			}
			return nil
		})
	}

	return g.Wait()
}

// matchesMetadata evaluates every filter that the index alone can answer.
func (q *Query) matchesMetadata(e *model.IndexEntry) bool {
	for _, term := range q.FromAddrs {
		if !addressContains(e.From, term) {
			return false
		}
	}
	for _, term := range q.ToAddrs {
		if !anyAddressContains(e.To, term) {
			return false
		}
	}
	for _, term := range q.CcAddrs {
		if !anyAddressContains(e.Cc, term) {
			return false
		}
	}
	if len(q.SubjectTerms) > 0 {
		subject := strings.ToLower(e.Subject)
		if !containsAll(subject, q.SubjectTerms) {
			return false
		}
	}
	for _, label := range q.Labels {
		if !hasLabel(e.Labels, label) {
			return false
		}
	}
	if q.HasAttachment != nil && e.HasAttachments != *q.HasAttachment {
		return false
	}
	if q.AfterDate != nil && e.Date.Before(*q.AfterDate) {
		return false
	}
	if q.BeforeDate != nil && !e.Date.Before(*q.BeforeDate) {
		return false
	}
	if q.LargerThan != nil && e.Length <= *q.LargerThan {
		return false
	}
	if q.SmallerThan != nil && e.Length >= *q.SmallerThan {
		return false
	}
	return true
}

// unmatchedText returns the free text terms that do not occur in the
// entry's subject or addresses.
func (q *Query) unmatchedText(e *model.IndexEntry) []string {
	if len(q.TextTerms) == 0 {
		return nil
	}
	hay := metadataText(e)
	var rest []string
	for _, term := range q.TextTerms {
		if !strings.Contains(hay, term) {
			rest = append(rest, term)
		}
	}
	return rest
}

func metadataText(e *model.IndexEntry) string {
	var b strings.Builder
	b.WriteString(e.Subject)
	writeAddr := func(a model.Address) {
		b.WriteByte('\n')
		b.WriteString(a.Name)
		b.WriteByte('\n')
		b.WriteString(a.Address)
	}
	writeAddr(e.From)
	for _, a := range e.To {
		writeAddr(a)
	}
	for _, a := range e.Cc {
		writeAddr(a)
	}
	return strings.ToLower(b.String())
}

func addressContains(a model.Address, term string) bool {
	return strings.Contains(strings.ToLower(a.Address), term) ||
		strings.Contains(strings.ToLower(a.Name), term)
}

func anyAddressContains(addrs []model.Address, term string) bool {
	for _, a := range addrs {
		if addressContains(a, term) {
			return true
		}
	}
	return false
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, want) {
			return true
		}
	}
	return false
}

func containsAll(hay string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}

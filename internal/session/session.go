// Package session holds the state of one opened MBOX file and exposes the
// browsing, fetching and search operations used by the CLI, the HTTP API,
// the MCP server and the TUI.
//
// A Session is safe for concurrent use. Browsing and fetch operations hold a
// single lock for their duration; Search copies out what it needs under the
// lock and scans without it; Open builds the new index without the lock and
// swaps it in only once everything succeeded.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/wesm/mboxbrowser/internal/cache"
	"github.com/wesm/mboxbrowser/internal/index"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/model"
	"github.com/wesm/mboxbrowser/internal/search"
	"github.com/wesm/mboxbrowser/internal/store"
)

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 500

// Options configures a Session. The zero value is usable.
type Options struct {
	// Index configures index builds. Its Progress and Logger fields are
	// set by the session.
	Index index.Options

	// Cache, if set, persists built indexes between opens.
	Cache *cache.Cache

	SearchWorkers      int
	DefaultSearchLimit int

	OnIndexProgress  func(IndexProgress)
	OnSearchProgress func(search.Progress)

	Logger *slog.Logger
}

// state is replaced as a whole; entries are never modified once published.
type state struct {
	path    string
	entries []model.IndexEntry
	store   *store.Store
	labels  []LabelCount
}

// Session is a mailbox session. It starts closed.
type Session struct {
	opts   Options
	logger *slog.Logger
	engine *search.Engine

	openMu sync.Mutex // serializes Open
	mu     sync.Mutex // guards st
	st     *state     // nil when closed
}

// New returns a closed session.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultSearchLimit <= 0 {
		opts.DefaultSearchLimit = DefaultSearchLimit
	}
	return &Session{
		opts:   opts,
		logger: opts.Logger,
		engine: search.NewEngine(search.Options{
			Workers: opts.SearchWorkers,
			Logger:  opts.Logger,
		}),
	}
}

// Open indexes the MBOX file at path and makes it the current file. Any
// previously open file stays browsable until the new index is ready. If Open
// fails the session is left closed.
func (s *Session) Open(ctx context.Context, path string) (*MboxStats, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	next, err := s.load(ctx, path)
	if err != nil {
		s.swap(nil)
		return nil, err
	}
	s.swap(next)
	return next.stats(), nil
}

func (s *Session) load(ctx context.Context, path string) (*state, error) {
	entries, err := s.buildIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	index.SortByDate(entries)

	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &state{
		path:    path,
		entries: entries,
		store:   st,
		labels:  countLabels(entries),
	}, nil
}

// buildIndex returns the entries of path in file order, from the cache when
// it holds a current copy.
func (s *Session) buildIndex(ctx context.Context, path string) ([]model.IndexEntry, error) {
	var (
		key    cache.Key
		useKey bool
	)
	if s.opts.Cache != nil {
		if k, err := cache.KeyFor(path, s.opts.Index.Fingerprint()); err == nil {
			key, useKey = k, true
			entries, ok, err := s.opts.Cache.Load(ctx, key)
			switch {
			case err != nil:
				s.logger.Warn("index cache load failed", "path", path, "error", err)
			case ok:
				s.logger.Debug("index loaded from cache", "path", path, "messages", len(entries))
				s.reportIndexProgress(index.Progress{BytesRead: key.Size, TotalBytes: key.Size, Percent: 100})
				return entries, nil
			}
		}
	}

	opts := s.opts.Index
	opts.Logger = s.logger
	if s.opts.OnIndexProgress != nil {
		opts.Progress = s.reportIndexProgress
	}
	entries, err := index.Build(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	if useKey {
		if err := s.opts.Cache.Save(ctx, key, entries); err != nil {
			s.logger.Warn("index cache save failed", "path", path, "error", err)
		}
	}
	return entries, nil
}

func (s *Session) reportIndexProgress(p index.Progress) {
	if s.opts.OnIndexProgress == nil {
		return
	}
	s.opts.OnIndexProgress(IndexProgress{BytesRead: p.BytesRead, TotalBytes: p.TotalBytes, Percent: p.Percent})
}

// swap publishes next (nil closes the session) and releases the previous
// store.
func (s *Session) swap(next *state) {
	s.mu.Lock()
	prev := s.st
	s.st = next
	s.mu.Unlock()

	if prev != nil {
		if err := prev.store.Close(); err != nil {
			s.logger.Warn("close previous store", "path", prev.path, "error", err)
		}
	}
}

// current returns the open state or a validation error. Callers hold s.mu.
func (s *Session) current() (*state, error) {
	if s.st == nil {
		return nil, mboxerr.Validation("No MBOX file is currently open")
	}
	return s.st, nil
}

func (st *state) entry(seq int) (*model.IndexEntry, error) {
	if seq < 0 || seq >= len(st.entries) {
		return nil, mboxerr.Validation("Invalid email index: %d", seq)
	}
	return &st.entries[seq], nil
}

func (st *state) stats() *MboxStats {
	withAttachments := 0
	for i := range st.entries {
		if st.entries[i].HasAttachments {
			withAttachments++
		}
	}
	return &MboxStats{
		Path:                 st.path,
		TotalMessages:        len(st.entries),
		TotalWithAttachments: withAttachments,
		Labels:               append([]LabelCount{}, st.labels...),
	}
}

// IsOpen reports whether a file is open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st != nil
}

// Stats returns the summary of the open file.
func (s *Session) Stats() (*MboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	return st.stats(), nil
}

// GetEmails returns the entries in [offset, offset+limit). An offset at or
// past the end yields an empty slice.
func (s *Session) GetEmails(offset, limit int) ([]EmailEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	if offset < 0 || limit < 0 {
		return nil, mboxerr.Validation("offset and limit must not be negative (offset=%d, limit=%d)", offset, limit)
	}

	total := len(st.entries)
	if offset >= total {
		return []EmailEntry{}, nil
	}
	end := total
	if limit < total-offset {
		end = offset + limit
	}
	out := make([]EmailEntry, 0, end-offset)
	for i := offset; i < end; i++ {
		out = append(out, newEmailEntry(&st.entries[i]))
	}
	return out, nil
}

// GetEmailCount returns the number of indexed messages, 0 when closed.
func (s *Session) GetEmailCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return 0
	}
	return len(s.st.entries)
}

// GetEmailBody parses and returns the message at seq.
func (s *Session) GetEmailBody(seq int) (*EmailBody, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	e, err := st.entry(seq)
	if err != nil {
		return nil, err
	}
	body, err := st.store.GetMessage(*e)
	if err != nil {
		return nil, err
	}
	return newEmailBody(body), nil
}

// GetEmailsByLabel returns the entries carrying label (case-insensitive,
// exact) in index order.
func (s *Session) GetEmailsByLabel(label string) ([]EmailEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	out := []EmailEntry{}
	for i := range st.entries {
		for _, l := range st.entries[i].Labels {
			if strings.EqualFold(l, label) {
				out = append(out, newEmailEntry(&st.entries[i]))
				break
			}
		}
	}
	return out, nil
}

// GetAttachment re-parses the message at seq and returns the decoded
// content of its attachment at position idx.
func (s *Session) GetAttachment(seq, idx int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.current()
	if err != nil {
		return nil, err
	}
	e, err := st.entry(seq)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, mboxerr.Validation("Invalid attachment index %d for email %d", idx, seq)
	}
	data, err := st.store.GetAttachment(*e, model.AttachmentMeta{PartIndex: idx})
	if errors.Is(err, mboxerr.ErrNotFound) {
		return nil, mboxerr.Validation("Invalid attachment index %d for email %d", idx, seq)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GetLabels returns label counts ordered by count descending, ties by first
// occurrence in index order. It is empty when closed.
func (s *Session) GetLabels() []LabelCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return []LabelCount{}
	}
	return append([]LabelCount{}, s.st.labels...)
}

// Search evaluates query against the open file and returns at most limit
// matches in index order; limit <= 0 selects the default. The lock is only
// held while the index snapshot is taken.
func (s *Session) Search(ctx context.Context, query string, limit int) (*SearchResults, error) {
	s.mu.Lock()
	st, err := s.current()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	// Published entries are immutable, so sharing the slice is a snapshot.
	path, entries := st.path, st.entries
	s.mu.Unlock()

	if limit <= 0 {
		limit = s.opts.DefaultSearchLimit
	}

	_, seqs, err := s.engine.Execute(ctx, path, entries, query, s.opts.OnSearchProgress)
	if err != nil {
		return nil, err
	}

	res := &SearchResults{TotalCount: len(seqs), Emails: []EmailEntry{}}
	for _, seq := range seqs[:min(limit, len(seqs))] {
		res.Emails = append(res.Emails, newEmailEntry(&entries[seq]))
	}
	return res, nil
}

// SearchAsync runs Search on its own goroutine and delivers one outcome.
func (s *Session) SearchAsync(ctx context.Context, query string, limit int) <-chan SearchOutcome {
	ch := make(chan SearchOutcome, 1)
	go func() {
		res, err := s.Search(ctx, query, limit)
		ch <- SearchOutcome{Results: res, Err: err}
	}()
	return ch
}

// Close discards the open file. Closing a closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	prev := s.st
	s.st = nil
	s.mu.Unlock()

	if prev == nil {
		return nil
	}
	return prev.store.Close()
}

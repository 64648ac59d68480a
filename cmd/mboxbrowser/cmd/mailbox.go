package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/wesm/mboxbrowser/internal/cache"
	"github.com/wesm/mboxbrowser/internal/index"
	"github.com/wesm/mboxbrowser/internal/session"
)

// newSession builds a closed session configured from config.toml. progress
// receives indexing updates; nil disables them.
func newSession(progress *indexProgress) *session.Session {
	opts := session.Options{
		Index: index.Options{
			Strict:          cfg.Index.StrictSeparators,
			LabelHeaders:    cfg.Index.LabelHeaders,
			SkipMalformed:   cfg.Index.SkipMalformed,
			MaxMessageBytes: cfg.Index.MaxMessageBytes,
		},
		SearchWorkers:      cfg.Search.Workers,
		DefaultSearchLimit: cfg.Search.DefaultLimit,
		Logger:             logger,
	}
	if cfg.Index.Cache {
		c, err := cache.Open(cfg.Index.CacheDir)
		if err != nil {
			logger.Warn("index cache disabled", "dir", cfg.Index.CacheDir, "error", err)
		} else {
			opts.Cache = c
		}
	}
	if progress != nil {
		opts.OnIndexProgress = progress.OnProgress
	}
	return session.New(opts)
}

// openMailbox opens path in a new session, reporting indexing progress on
// stderr. The caller closes the session.
func openMailbox(ctx context.Context, path string) (*session.Session, *session.MboxStats, error) {
	progress := newIndexProgress(os.Stderr)
	sess := newSession(progress)
	stats, err := sess.Open(ctx, path)
	progress.Done()
	if err != nil {
		return nil, nil, err
	}
	return sess, stats, nil
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// indexProgress reports indexing progress to the terminal. Non-terminal
// outputs only get a line when indexing takes noticeably long.
type indexProgress struct {
	w         io.Writer
	tty       bool
	startTime time.Time
	lastPrint time.Time
	printed   bool
}

func newIndexProgress(f *os.File) *indexProgress {
	return &indexProgress{w: f, tty: isTTY(f), startTime: time.Now()}
}

func (p *indexProgress) OnProgress(ip session.IndexProgress) {
	if ip.TotalBytes <= 0 {
		return
	}
	elapsed := time.Since(p.startTime)
	if elapsed < 500*time.Millisecond || time.Since(p.lastPrint) < 500*time.Millisecond {
		return
	}
	p.lastPrint = time.Now()
	p.printed = true

	status := fmt.Sprintf("  Indexing %s %.1f%%  %s  %s",
		progressBar(ip.Percent, 30), ip.Percent, formatBytesPair(ip.BytesRead, ip.TotalBytes), formatDuration(elapsed))
	if p.tty {
		fmt.Fprintf(p.w, "\r\033[K%s", status)
	} else {
		fmt.Fprintln(p.w, status)
	}
}

// Done clears the progress line.
func (p *indexProgress) Done() {
	if p.printed && p.tty {
		fmt.Fprint(p.w, "\r\033[K")
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatBytesPair(done, total int64) string {
	const mb = 1 << 20
	return fmt.Sprintf("%.1f/%.1f MB", float64(done)/mb, float64(total)/mb)
}

func progressBar(pct float64, width int) string {
	filled := min(max(int(pct/100*float64(width)), 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

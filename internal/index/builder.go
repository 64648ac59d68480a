// Package index builds the in-memory message index of an MBOX file: one
// lightweight metadata entry per message, located by byte offset and length.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/wesm/mboxbrowser/internal/mbox"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/model"
)

const (
	// DefaultProgressInterval is how many bytes are read between progress reports.
	DefaultProgressInterval = 1 << 20
	// DefaultMaxMessageBytes bounds the header block kept per message.
	DefaultMaxMessageBytes = 128 << 20
)

// Progress reports how far a build has read into the file.
type Progress struct {
	BytesRead  int64
	TotalBytes int64
	Percent    float64
}

// Options configures Build. The zero value is usable.
type Options struct {
	// Strict requires the envelope line to carry a parseable date.
	Strict bool

	// LabelHeaders lists the headers labels are read from.
	// Defaults to DefaultLabelHeaders.
	LabelHeaders []string

	// SkipMalformed drops messages whose headers cannot be parsed instead of
	// indexing them as placeholders.
	SkipMalformed bool

	// Progress, if set, is called at most every ProgressInterval bytes and
	// once when the build finishes.
	Progress         func(Progress)
	ProgressInterval int64

	MaxMessageBytes int64

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if len(o.LabelHeaders) == 0 {
		o.LabelHeaders = DefaultLabelHeaders
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Fingerprint identifies the options that affect which entries Build
// produces. Two Options with equal fingerprints index a file identically.
func (o Options) Fingerprint() string {
	o = o.withDefaults()
	h := sha256.New()
	fmt.Fprintf(h, "strict=%t\nskip=%t\nmax=%d\n", o.Strict, o.SkipMalformed, o.MaxMessageBytes)
	for _, name := range o.LabelHeaders {
		fmt.Fprintf(h, "label=%s\n", strings.ToLower(name))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Build reads the MBOX file at path once and returns one entry per message
// in file order. Sequence holds the file position; callers that want the
// browsing order call SortByDate.
//
// Build fails with mboxerr.ErrNotFound when path does not exist,
// mboxerr.ErrIO when it cannot be read, and mboxerr.ErrMboxFormat when a
// non-empty file contains no envelope line at all.
func Build(ctx context.Context, path string, opts Options) ([]model.IndexEntry, error) {
	opts = opts.withDefaults()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, mboxerr.NotFound("%s", path)
		}
		return nil, mboxerr.IO(err, "open %s", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, mboxerr.IO(err, "stat %s", path)
	}
	if st.IsDir() {
		return nil, mboxerr.IO(errors.New("is a directory"), "open %s", path)
	}
	total := st.Size()

	var scan partScanner
	r := mbox.NewReaderWithMaxMessageBytes(f, opts.MaxMessageBytes)
	r.SetStrict(opts.Strict)
	r.SetHeaderOnly(scan.line)

	entries := make([]model.IndexEntry, 0, 1024)
	var malformed int
	nextReport := opts.ProgressInterval

	report := func(read int64) {
		if opts.Progress == nil {
			return
		}
		p := Progress{BytesRead: read, TotalBytes: total, Percent: 100}
		if total > 0 {
			p.Percent = float64(read) / float64(total) * 100
		}
		opts.Progress(p)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scan.reset()
		msg, err := r.Next()
		if err == io.EOF {
			break
		}

		var headerErr error
		switch {
		case errors.Is(err, mbox.ErrMessageTooLarge):
			headerErr = err
		case err != nil:
			return nil, mboxerr.IO(err, "read %s", path)
		}

		e := model.IndexEntry{
			Sequence: len(entries),
			Offset:   msg.Offset,
			Length:   msg.Length,
		}
		if headerErr == nil {
			headerErr = fillFromHeader(&e, msg.Raw, msg.FromLine, opts.LabelHeaders)
		}
		if headerErr != nil {
			malformed++
			if opts.SkipMalformed {
				opts.Logger.Warn("skipping message with unparseable headers",
					"offset", msg.Offset, "error", headerErr)
				continue
			}
			opts.Logger.Warn("indexing placeholder for message with unparseable headers",
				"offset", msg.Offset, "error", headerErr)
			e = placeholder(e.Sequence, msg)
		}

		if !e.HasAttachments {
			e.HasAttachments = scan.found || topLevelAttachment(msg.Raw)
		}
		entries = append(entries, e)

		if off := r.Offset(); off >= nextReport {
			report(off)
			for nextReport <= off {
				nextReport += opts.ProgressInterval
			}
		}
	}

	if len(entries) == 0 && malformed == 0 && total > 0 {
		return nil, mboxerr.MboxFormat(nil, "no message separator found in %s", path)
	}
	report(total)

	opts.Logger.Debug("index built", "path", path, "messages", len(entries), "malformed", malformed, "bytes", total)
	return entries, nil
}

// placeholder is the entry recorded for a message whose headers could not be
// parsed: location intact, empty envelope fields, sentinel date.
func placeholder(seq int, msg *mbox.Message) model.IndexEntry {
	return model.IndexEntry{
		Sequence: seq,
		Offset:   msg.Offset,
		Length:   msg.Length,
		Date:     model.SentinelDate,
	}
}

// topLevelAttachment covers single-part messages whose only part is itself
// an attachment.
func topLevelAttachment(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	h, err := readHeader(raw)
	if err != nil {
		return false
	}
	return isAttachment(&h.Header)
}

// Package store reads individual messages out of an MBOX file by byte range.
package store

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/wesm/mboxbrowser/internal/mbox"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/mime"
	"github.com/wesm/mboxbrowser/internal/model"
)

// Store provides random access to the messages of one MBOX file.
// It is not safe for concurrent use.
type Store struct {
	path string
	f    *os.File
	size int64
}

// Open opens the MBOX file at path for reading.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, mboxerr.NotFound("%s", path)
		}
		return nil, mboxerr.IO(err, "open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mboxerr.IO(err, "stat %s", path)
	}
	if st.IsDir() {
		f.Close()
		return nil, mboxerr.IO(errors.New("is a directory"), "open %s", path)
	}
	return &Store{path: path, f: f, size: st.Size()}, nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string { return s.path }

// readRange returns the RFC 5322 bytes of entry: the envelope line removed
// and mboxrd quoting undone.
func (s *Store) readRange(entry model.IndexEntry) ([]byte, error) {
	if s.f == nil {
		return nil, mboxerr.IO(os.ErrClosed, "read %s", s.path)
	}
	if entry.Offset < 0 || entry.Length < 0 || entry.Offset > s.size || entry.Length > s.size-entry.Offset {
		return nil, mboxerr.MboxFormat(nil, "message %d: range [%d, +%d) outside file of %d bytes",
			entry.Sequence, entry.Offset, entry.Length, s.size)
	}

	buf := make([]byte, entry.Length)
	n, err := s.f.ReadAt(buf, entry.Offset)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		if errors.Is(err, io.EOF) {
			return nil, mboxerr.MboxFormat(err, "message %d: short read (%d of %d bytes)", entry.Sequence, n, len(buf))
		}
		return nil, mboxerr.IO(err, "read %s", s.path)
	}

	_, rest := mbox.SplitEnvelope(buf)
	return mbox.Unescape(rest), nil
}

// Parse reads and parses the message located by entry.
func (s *Store) Parse(entry model.IndexEntry) (*mime.Message, error) {
	raw, err := s.readRange(entry)
	if err != nil {
		return nil, err
	}
	msg, err := mime.Parse(raw)
	if err != nil {
		return nil, mboxerr.MboxFormat(err, "message %d", entry.Sequence)
	}
	return msg, nil
}

// GetMessage returns the parsed body of the message located by entry.
func (s *Store) GetMessage(entry model.IndexEntry) (*model.MailBody, error) {
	msg, err := s.Parse(entry)
	if err != nil {
		return nil, err
	}
	return &msg.Body, nil
}

// GetAttachment re-parses the message located by entry and returns the
// decoded content of the attachment at meta.PartIndex.
func (s *Store) GetAttachment(entry model.IndexEntry, meta model.AttachmentMeta) ([]byte, error) {
	msg, err := s.Parse(entry)
	if err != nil {
		return nil, err
	}
	data, err := msg.AttachmentContent(meta.PartIndex)
	if err != nil {
		if errors.Is(err, mime.ErrNoSuchAttachment) {
			return nil, mboxerr.NotFound("message %d: attachment %d", entry.Sequence, meta.PartIndex)
		}
		return nil, mboxerr.MboxFormat(err, "message %d: attachment %d", entry.Sequence, meta.PartIndex)
	}
	return data, nil
}

// Close releases the file handle. Calling Close more than once is a no-op.
func (s *Store) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return mboxerr.IO(err, "close %s", s.path)
	}
	return nil
}

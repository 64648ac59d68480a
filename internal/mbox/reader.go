// Package mbox implements a streaming reader for MBOX files.
//
// A message starts at a Unix "From " envelope line that sits at the start of
// the file or directly after a blank line. Body lines that begin with "From "
// (or with one or more leading '>' followed by "From ") are commonly escaped by
// prefixing an additional '>' (mboxrd). When reading, we unescape by removing a
// single leading '>' from any line that matches ^>+From . This can mutate
// literal ">From " lines in pure mboxo exports; call (*Reader).SetUnescapeFrom(false)
// to disable unescaping if needed.
//
// The reader tracks absolute byte offsets so callers can record where each
// message lives and later read it back with a single positioned read.
package mbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const defaultMaxLineBytes = 32 << 20 // 32 MiB

var ErrMessageTooLarge = errors.New("mbox message exceeds max size")

// Message is a single message from an MBOX file.
type Message struct {
	// FromLine is the separator line (without trailing newline).
	FromLine string

	// Offset is the stream offset of the first byte of the separator line.
	Offset int64

	// Length is the number of bytes from Offset up to the next separator line
	// (or end of stream), separator included.
	Length int64

	// Raw is the RFC 5322 message bytes (headers + body). The separator line
	// is not included. Lines may use either LF or CRLF endings depending on
	// the source file. In header-only mode Raw holds the header block and its
	// terminating blank line.
	Raw []byte
}

// LineFunc receives body lines in header-only mode. The slice is only valid
// for the duration of the call.
type LineFunc func(line []byte)

type offsetReader struct {
	r io.Reader
	n int64
}

func (o *offsetReader) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	o.n += int64(n)
	return n, err
}

// Reader reads messages from an MBOX stream.
// It is safe for large files: it reads one message at a time.
type Reader struct {
	or *offsetReader
	br *bufio.Reader

	// nextFromLine is the already-read separator line for the next message, if any.
	nextFromLine   string
	nextFromOffset int64
	hasNextFrom    bool
	eof            bool

	// prevBlank is true when the previous line was empty or at start of stream.
	prevBlank bool

	maxMessageBytes int64
	maxLineBytes    int
	lineTruncated   bool // set by readLineBytes
	unescapeFrom    bool
	strict          bool

	headerOnly bool
	onBodyLine LineFunc
}

// NewReader creates a new MBOX reader.
func NewReader(r io.Reader) *Reader {
	or := &offsetReader{r: r}
	// If the underlying reader is seekable (e.g. *os.File), initialize the counter
	// from the current position so offsets remain absolute after a prior Seek().
	if s, ok := r.(io.Seeker); ok {
		if off, err := s.Seek(0, io.SeekCurrent); err == nil {
			or.n = off
		}
	}
	return &Reader{
		or:           or,
		br:           bufio.NewReaderSize(or, 64<<10),
		maxLineBytes: defaultMaxLineBytes,
		unescapeFrom: true,
		prevBlank:    true,
	}
}

// NewReaderWithMaxMessageBytes creates a new MBOX reader that rejects messages
// larger than maxMessageBytes. If maxMessageBytes <= 0, no limit is enforced.
func NewReaderWithMaxMessageBytes(r io.Reader, maxMessageBytes int64) *Reader {
	rd := NewReader(r)
	rd.maxMessageBytes = maxMessageBytes
	return rd
}

// SetUnescapeFrom controls whether the reader performs mboxrd-style unescaping
// of ^>+From  lines. The default is true.
func (r *Reader) SetUnescapeFrom(enabled bool) {
	r.unescapeFrom = enabled
}

// SetStrict makes separator detection additionally require a parseable
// ctime-like date on the "From " line.
func (r *Reader) SetStrict(enabled bool) {
	r.strict = enabled
}

// SetHeaderOnly makes Next keep only the header block of each message in
// Message.Raw. Body lines are passed to fn (which may be nil) instead of being
// retained.
func (r *Reader) SetHeaderOnly(fn LineFunc) {
	r.headerOnly = true
	r.onBodyLine = fn
}

// Offset reports the current logical read offset (bytes consumed) within the
// underlying stream, accounting for buffered data.
func (r *Reader) Offset() int64 {
	return r.or.n - int64(r.br.Buffered())
}

// NextFromOffset reports the stream offset of the next message's "From " line.
// Valid only after a successful Next() call (or Offset() at end-of-file).
func (r *Reader) NextFromOffset() int64 {
	if r.hasNextFrom {
		return r.nextFromOffset
	}
	// If there is no buffered "From " line, the next message would start at the
	// current offset (either EOF or we haven't found the first separator yet).
	return r.Offset()
}

// Next returns the next message from the MBOX stream.
// Returns io.EOF when there are no more messages. When the message exceeds the
// size limit, Next returns ErrMessageTooLarge together with a Message that has
// Offset and Length set and no Raw bytes. A header line, or in full mode any
// line, longer than 32 MiB is treated the same way.
func (r *Reader) Next() (*Message, error) {
	if r.eof {
		return nil, io.EOF
	}

	// Find the separator line for the next message, if we don't already have it.
	if !r.hasNextFrom {
		for {
			lineStart := r.Offset()
			line, err := r.readLineBytes()
			if err != nil && err != io.EOF {
				return nil, err
			}
			if r.isSeparator(line) {
				r.nextFromLine = string(bytes.TrimRight(line, "\r\n"))
				r.nextFromOffset = lineStart
				r.hasNextFrom = true
				r.prevBlank = false
				break
			}
			r.prevBlank = isBlankLine(line)
			if err == io.EOF {
				r.eof = true
				return nil, io.EOF
			}
		}
	}

	// Consume the next separator and start collecting this message.
	fromLine := r.nextFromLine
	start := r.nextFromOffset
	end := start
	r.hasNextFrom = false

	var raw bytes.Buffer
	var rawBytes int64
	tooLarge := false
	longLine := false
	inBody := false

	for {
		lineStart := r.Offset()
		line, err := r.readLineBytes()
		if r.lineTruncated && !(r.headerOnly && inBody) {
			longLine, tooLarge = true, true
		}
		if len(line) > 0 {
			if r.isSeparator(line) {
				// Found the next message separator; stash it for the next call.
				r.nextFromLine = string(bytes.TrimRight(line, "\r\n"))
				r.nextFromOffset = lineStart
				r.hasNextFrom = true
				r.prevBlank = false
				end = lineStart
				break
			}
			blank := isBlankLine(line)
			r.prevBlank = blank

			b := line
			if r.unescapeFrom {
				b = unescapeFromBytes(line)
			}

			switch {
			case r.headerOnly && inBody:
				if r.onBodyLine != nil {
					r.onBodyLine(b)
				}
			case !tooLarge:
				if r.maxMessageBytes > 0 && rawBytes+int64(len(b)) > r.maxMessageBytes {
					tooLarge = true
				} else {
					raw.Write(b)
					rawBytes += int64(len(b))
				}
			}
			if blank {
				inBody = true
			}
		}

		if err != nil {
			if err == io.EOF {
				r.eof = true
				end = r.Offset()
				break
			}
			return nil, err
		}
	}

	msg := &Message{
		FromLine: fromLine,
		Offset:   start,
		Length:   end - start,
	}
	if longLine {
		return msg, fmt.Errorf("%w: line longer than %d bytes", ErrMessageTooLarge, r.maxLineBytes)
	}
	if tooLarge {
		// The message is still located so callers can record or skip it.
		return msg, fmt.Errorf("%w: limit %d bytes", ErrMessageTooLarge, r.maxMessageBytes)
	}

	// Empty message bodies are unusual but possible; return them anyway.
	msg.Raw = raw.Bytes()
	return msg, nil
}

func (r *Reader) readLineBytes() ([]byte, error) {
	// ReadSlice returns bufio.ErrBufferFull when the buffer fills before finding
	// the delimiter. Keep consuming; bytes past maxLineBytes are dropped and
	// the line is flagged as truncated.
	r.lineTruncated = false
	var out []byte
	n := 0
	for {
		b, err := r.br.ReadSlice('\n')
		if room := r.maxLineBytes - len(out); room > 0 {
			out = append(out, b[:min(len(b), room)]...)
		}
		n += len(b)
		if n > r.maxLineBytes {
			r.lineTruncated = true
		}
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF:
			return out, io.EOF
		case len(out) > 0:
			return out, err
		default:
			return nil, err
		}
	}
}

func (r *Reader) isSeparator(line []byte) bool {
	if !r.prevBlank || !bytes.HasPrefix(line, fromPrefix) {
		return false
	}
	if !r.strict {
		return true
	}
	return isFromSeparatorLine(line)
}

var fromPrefix = []byte("From ")

// isFromSeparatorLine checks whether line (with or without trailing newline)
// looks like an mbox "From " separator carrying a ctime-like date.
func isFromSeparatorLine(line []byte) bool {
	if !bytes.HasPrefix(line, fromPrefix) {
		return false
	}
	_, ok := EnvelopeDate(string(line))
	return ok
}

func isBlankLine(line []byte) bool {
	return len(bytes.TrimRight(line, "\r\n")) == 0
}

// unescapeFromBytes removes a single leading '>' from any line that matches
// ^>+From  (mboxrd unquoting). This also works for mboxo where only ">From "
// appears for originally "From " lines.
func unescapeFromBytes(line []byte) []byte {
	if len(line) == 0 || line[0] != '>' {
		return line
	}

	// Count leading '>' characters.
	i := 0
	for i < len(line) && line[i] == '>' {
		i++
	}
	// Check if the remainder begins with "From ".
	if i < len(line) && bytes.HasPrefix(line[i:], fromPrefix) {
		return line[1:]
	}
	return line
}

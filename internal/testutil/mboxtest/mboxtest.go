// Package mboxtest writes MBOX fixture files for tests.
package mboxtest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	gombox "github.com/emersion/go-mbox"
)

// DefaultEnvelopeDate is used for messages without an explicit envelope date.
var DefaultEnvelopeDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Message is one fixture message. Raw is the RFC 5322 content without an
// envelope line; body lines starting with "From " are escaped by the writer.
type Message struct {
	Sender string
	Date   time.Time
	Raw    []byte
}

// Raw wraps raw message bytes with default envelope values.
func Raw(raw []byte) Message {
	return Message{Raw: raw}
}

// Bytes renders msgs as an MBOX stream.
func Bytes(tb testing.TB, msgs ...Message) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := gombox.NewWriter(&buf)
	for i, m := range msgs {
		sender := m.Sender
		if sender == "" {
			sender = "MAILER-DAEMON"
		}
		date := m.Date
		if date.IsZero() {
			date = DefaultEnvelopeDate.Add(time.Duration(i) * time.Second)
		}
		mw, err := w.CreateMessage(sender, date)
		if err != nil {
			tb.Fatalf("create message %d: %v", i, err)
		}
		raw := m.Raw
		if !bytes.HasSuffix(raw, []byte("\n")) {
			raw = append(bytes.Clone(raw), '\n')
		}
		// Separators must follow a blank line.
		raw = append(bytes.Clone(raw), '\n')
		if _, err := mw.Write(raw); err != nil {
			tb.Fatalf("write message %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("close mbox writer: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes msgs as an MBOX file named name inside a fresh temp
// directory and returns its path.
func WriteFile(tb testing.TB, name string, msgs ...Message) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, Bytes(tb, msgs...), 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteRaw writes data verbatim and returns its path.
func WriteRaw(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Count returns the number of messages go-mbox finds in data. Tests use it as
// an independent oracle for boundary detection.
func Count(tb testing.TB, data []byte) int {
	tb.Helper()
	r := gombox.NewReader(bytes.NewReader(data))
	n := 0
	for {
		_, err := r.NextMessage()
		if err != nil {
			break
		}
		n++
	}
	return n
}

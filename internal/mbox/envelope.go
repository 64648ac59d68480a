package mbox

import (
	"bytes"
	"strings"
	"time"
)

// SplitEnvelope separates a raw MBOX slice into its "From " envelope line
// (without line ending) and the remaining RFC 5322 bytes. If raw does not
// start with an envelope line, fromLine is empty and rest is raw.
func SplitEnvelope(raw []byte) (fromLine string, rest []byte) {
	if !bytes.HasPrefix(raw, fromPrefix) {
		return "", raw
	}
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return string(bytes.TrimRight(raw, "\r")), nil
	}
	return string(bytes.TrimRight(raw[:i], "\r")), raw[i+1:]
}

// Unescape applies mboxrd unquoting to every line of raw, returning a new
// slice. Lines matching ^>+From  lose one leading '>'.
func Unescape(raw []byte) []byte {
	if !bytes.Contains(raw, []byte(">From ")) {
		return raw
	}
	out := make([]byte, 0, len(raw))
	for len(raw) > 0 {
		var line []byte
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			line, raw = raw[:i+1], raw[i+1:]
		} else {
			line, raw = raw, nil
		}
		out = append(out, unescapeFromBytes(line)...)
	}
	return out
}

// EnvelopeDate extracts the date from a "From sender date" envelope line.
// It returns false when the line carries no recognizable date.
func EnvelopeDate(fromLine string) (time.Time, bool) {
	fields := strings.Fields(fromLine)
	if len(fields) < 3 || fields[0] != "From" {
		return time.Time{}, false
	}
	return parseCtime(fields[2:])
}

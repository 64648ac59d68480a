package index

import (
	"bytes"
	"strings"

	"github.com/emersion/go-message"
)

// partScanner detects attachments from body lines without decoding any
// payload. It watches for multipart delimiter lines ("--boundary") followed
// by a MIME part header block and inspects that block's Content-Type and
// Content-Disposition.
type partScanner struct {
	found        bool
	afterDelim   bool
	inPartHeader bool
	hdr          bytes.Buffer
}

func (s *partScanner) reset() {
	s.found = false
	s.afterDelim = false
	s.inPartHeader = false
	s.hdr.Reset()
}

func (s *partScanner) line(line []byte) {
	if s.found {
		return
	}
	trimmed := bytes.TrimRight(line, "\r\n")

	if s.inPartHeader {
		if len(trimmed) == 0 {
			s.inPartHeader = false
			if headerIsAttachment(s.hdr.Bytes()) {
				s.found = true
			}
			s.hdr.Reset()
			return
		}
		s.hdr.Write(trimmed)
		s.hdr.WriteString("\r\n")
		return
	}

	if s.afterDelim {
		s.afterDelim = false
		if looksLikeHeaderLine(trimmed) {
			s.inPartHeader = true
			s.hdr.Write(trimmed)
			s.hdr.WriteString("\r\n")
			return
		}
	}

	if len(trimmed) > 2 && trimmed[0] == '-' && trimmed[1] == '-' && trimmed[2] != ' ' && !bytes.HasSuffix(trimmed, []byte("--")) {
		s.afterDelim = true
	}
}

// looksLikeHeaderLine reports whether line starts with a MIME header name.
func looksLikeHeaderLine(line []byte) bool {
	i := bytes.IndexByte(line, ':')
	if i <= 0 {
		return false
	}
	return strings.HasPrefix(strings.ToLower(string(line[:i])), "content-")
}

// headerIsAttachment reports whether a part header block describes an
// attachment: an explicit attachment disposition, or a file name on a part
// that is not marked inline.
func headerIsAttachment(block []byte) bool {
	h, err := readHeader(block)
	if err != nil {
		return false
	}
	return isAttachment(&h.Header)
}

func isAttachment(h *message.Header) bool {
	disp, dparams, _ := h.ContentDisposition()
	disp = strings.ToLower(disp)
	if disp == "attachment" {
		return true
	}
	if disp == "inline" {
		return false
	}
	if dparams["filename"] != "" {
		return true
	}
	_, cparams, _ := h.ContentType()
	return cparams["name"] != ""
}

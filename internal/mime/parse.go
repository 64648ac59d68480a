// Package mime provides MIME message parsing using enmime.
package mime

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/wesm/mboxbrowser/internal/model"
	"github.com/wesm/mboxbrowser/internal/textutil"
)

// ErrNoSuchAttachment is returned by AttachmentContent for an index outside
// the attachment list of the parse.
var ErrNoSuchAttachment = errors.New("no such attachment")

// ErrUndecodable marks a part whose content could not be decoded: an
// unknown Content-Transfer-Encoding, or content enmime had to drop.
var ErrUndecodable = errors.New("undecodable MIME part")

// Message is a parsed email message. Body.Attachments and the decoded
// attachment contents share the same positional index. Inline parts are not
// attachments.
type Message struct {
	Body model.MailBody

	parts    []*enmime.Part
	partErrs []error
}

// Parse parses raw RFC 5322 data (no mbox envelope line) into a Message.
// A panic inside the MIME parser is reported as an error, and so is an
// undecodable body or container part (ErrUndecodable). An undecodable
// attachment only fails AttachmentContent for that attachment.
func Parse(raw []byte) (msg *Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = fmt.Errorf("mime parser panicked: %v", r)
		}
	}()

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read envelope: %s", textutil.FirstLine(err.Error()))
	}

	msg = &Message{}
	msg.Body.RawHeaders = textutil.EnsureUTF8(string(HeaderBlock(raw)))

	if hasTextPart(env.Root) {
		text := textutil.EnsureUTF8(env.Text)
		msg.Body.Text = &text
	}
	if env.HTML != "" {
		h := textutil.EnsureUTF8(env.HTML)
		msg.Body.HTML = &h
	}

	attachments := attachmentParts(env.Root)
	isAttachment := make(map[*enmime.Part]bool, len(attachments))
	for _, part := range attachments {
		isAttachment[part] = true
	}
	if env.Root != nil {
		for _, part := range env.Root.DepthMatchAll(func(p *enmime.Part) bool { return !isAttachment[p] }) {
			if err := decodeError(part); err != nil {
				return nil, err
			}
		}
	}

	for _, part := range attachments {
		msg.Body.Attachments = append(msg.Body.Attachments, model.AttachmentMeta{
			Filename:    textutil.EnsureUTF8(part.FileName),
			ContentType: part.ContentType,
			Size:        int64(len(part.Content)),
			PartIndex:   len(msg.parts),
		})
		msg.parts = append(msg.parts, part)
		msg.partErrs = append(msg.partErrs, decodeError(part))
	}

	return msg, nil
}

// AttachmentContent returns the decoded bytes of the attachment at index i.
func (m *Message) AttachmentContent(i int) ([]byte, error) {
	if i < 0 || i >= len(m.parts) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoSuchAttachment, i, len(m.parts))
	}
	if err := m.partErrs[i]; err != nil {
		return nil, err
	}
	return m.parts[i].Content, nil
}

// decodeError reports the first problem that left part's content undecoded
// or incomplete. Charset and header warnings are tolerated.
func decodeError(part *enmime.Part) error {
	for _, e := range part.Errors {
		if e.Name == enmime.ErrorContentEncoding || (e.Severe && e.Name != enmime.ErrorPlainTextFromHTML) {
			id := part.PartID
			if id == "" {
				id = "0"
			}
			return fmt.Errorf("%w: part %s: %s: %s", ErrUndecodable, id, e.Name, e.Detail)
		}
	}
	return nil
}

// SearchableText returns the plain text body followed by the HTML body with
// markup removed, lowercased for substring matching.
func (m *Message) SearchableText() string {
	var b strings.Builder
	if m.Body.Text != nil {
		b.WriteString(*m.Body.Text)
	}
	if m.Body.HTML != nil {
		b.WriteByte('\n')
		b.WriteString(StripHTML(*m.Body.HTML))
	}
	return strings.ToLower(b.String())
}

// HeaderBlock returns the header section of raw, up to but not including the
// blank line that terminates it. The whole input is returned when there is no
// blank line.
func HeaderBlock(raw []byte) []byte {
	pos := 0
	for pos < len(raw) {
		line := raw[pos:]
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i+1]
		}
		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			return raw[:pos]
		}
		pos += len(line)
	}
	return raw
}

// attachmentParts returns the non-inline attachment leaves of the MIME tree
// in depth-first (structural) order: parts with an attachment disposition,
// and parts carrying a file name that are not marked inline. Text parts that
// are really body content are never attachments.
func attachmentParts(root *enmime.Part) []*enmime.Part {
	if root == nil {
		return nil
	}
	return root.DepthMatchAll(func(p *enmime.Part) bool {
		if p.FirstChild != nil || isBodyPart(p) {
			return false
		}
		switch baseType(p.Disposition) {
		case "attachment":
			return true
		case "inline":
			return false
		default:
			return p.FileName != ""
		}
	})
}

// hasTextPart reports whether the message has a real text/plain body part.
// enmime synthesizes Envelope.Text from HTML when there is none.
func hasTextPart(root *enmime.Part) bool {
	if root == nil {
		return false
	}
	return root.DepthMatchFirst(func(p *enmime.Part) bool {
		return baseType(p.ContentType) == "text/plain" && isBodyPart(p)
	}) != nil
}

func baseType(v string) string {
	v = strings.ToLower(v)
	if idx := strings.Index(v, ";"); idx >= 0 {
		v = v[:idx]
	}
	return strings.TrimSpace(v)
}

// isBodyPart returns true if the part should be treated as body content
// rather than an attachment: text/plain and text/html parts without a
// filename and without explicit Content-Disposition: attachment.
func isBodyPart(part *enmime.Part) bool {
	contentType := baseType(part.ContentType)
	if contentType != "text/plain" && contentType != "text/html" {
		return false
	}
	if part.FileName != "" {
		return false
	}
	// Handle parameters like "attachment; filename=x"
	if baseType(part.Disposition) == "attachment" {
		return false
	}
	return true
}

// dateFormats lists common email date formats for ParseDate.
var dateFormats = []string{
	time.RFC1123Z,                           // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,                            // "Mon, 02 Jan 2006 15:04:05 MST"
	"Mon, 2 Jan 2006 15:04:05 -0700",        // Single-digit day
	"Mon, 2 Jan 2006 15:04:05 MST",          // Single-digit day with named TZ
	"Mon, 2 Jan 2006 15:04 -0700",           // No seconds
	"2 Jan 2006 15:04:05 -0700",             // No weekday
	"2 Jan 2006 15:04:05 MST",               // No weekday, named TZ
	"02 Jan 2006 15:04:05 -0700",            // No weekday, zero-padded
	"02 Jan 2006 15:04:05 MST",              // No weekday, zero-padded, named TZ
	time.RFC822Z,                            // "02 Jan 06 15:04 -0700"
	time.RFC822,                             // "02 Jan 06 15:04 MST"
	time.RFC850,                             // "Monday, 02-Jan-06 15:04:05 MST"
	time.ANSIC,                              // "Mon Jan _2 15:04:05 2006"
	time.UnixDate,                           // "Mon Jan _2 15:04:05 MST 2006"
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)", // With parenthesized TZ
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",  // Single-digit day with paren TZ
	time.RFC3339,                            // "2006-01-02T15:04:05Z07:00" (ISO 8601)
	"2006-01-02 15:04:05 -0700",             // SQL-like format
	"2006-01-02 15:04:05",                   // SQL-like without TZ
}

// ParseDate attempts to parse a Date header value in various formats.
// It returns the time in UTC and false when no format matches.
func ParseDate(s string) (time.Time, bool) {
	// Normalize whitespace efficiently: split on whitespace runs and rejoin
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}

	// Strip trailing timezone name in parentheses like "(UTC)" or "(PST)"
	// but keep the numeric offset for parsing
	baseStr := s
	if idx := strings.LastIndex(s, "("); idx > 0 {
		baseStr = strings.TrimSpace(s[:idx])
	}

	for _, candidate := range []string{baseStr, s} {
		for _, format := range dateFormats {
			if t, err := time.Parse(format, candidate); err == nil {
				return t.UTC(), true
			}
		}
		if baseStr == s {
			break
		}
	}
	return time.Time{}, false
}

// Block tags that should create line breaks when stripped
var blockTagRe = regexp.MustCompile(`(?i)<(/?)(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|ul|ol|dl|dt|dd)[^>]*>`)

// Patterns for content-stripping tags (each needs separate pattern due to Go regex limitations)
var scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
var styleTagRe = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
var headTagRe = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags, decodes entities, and normalizes whitespace.
// Block elements are converted to line breaks for readable plain text output.
func StripHTML(rawHTML string) string {
	text := scriptTagRe.ReplaceAllString(rawHTML, "")
	text = styleTagRe.ReplaceAllString(text, "")
	text = headTagRe.ReplaceAllString(text, "")

	text = blockTagRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")

	// Decode HTML entities (&nbsp;, &amp;, &#160;, etc.)
	text = html.UnescapeString(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00A0", " ")

	// Collapse multiple spaces on the same line (but preserve newlines)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(text)
}

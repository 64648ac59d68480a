// Package email provides test helpers for constructing raw RFC 5322 email
// messages.
package email

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Attachment represents a MIME attachment for the builder.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte // raw bytes; will be base64-encoded
	Inline      bool
}

// MessageBuilder constructs MIME messages with a fluent API.
// By default, messages use \n line endings matching Go raw string literals.
type MessageBuilder struct {
	from        string
	to          string
	cc          string
	subject     string
	date        string
	contentType string
	body        string
	html        string
	headerKeys  []string
	headerVals  []string
	attachments []Attachment
	boundary    string
	crlf        bool // if true, use \r\n line endings
	noSubject   bool
	noText      bool
}

// NewMessage creates a MessageBuilder with sensible defaults.
func NewMessage() *MessageBuilder {
	return &MessageBuilder{
		from:     "sender@example.com",
		to:       "recipient@example.com",
		date:     "Mon, 01 Jan 2024 12:00:00 +0000",
		subject:  "Test Message",
		body:     "This is a test message body.",
		boundary: "boundary123",
	}
}

// From sets the From header. An empty value omits it.
func (b *MessageBuilder) From(v string) *MessageBuilder { b.from = v; return b }

// To sets the To header. An empty value omits it.
func (b *MessageBuilder) To(v string) *MessageBuilder { b.to = v; return b }

// Cc sets the Cc header.
func (b *MessageBuilder) Cc(v string) *MessageBuilder { b.cc = v; return b }

// Subject sets the Subject header. Use NoSubject() to omit it entirely.
func (b *MessageBuilder) Subject(v string) *MessageBuilder { b.subject = v; b.noSubject = false; return b }

// NoSubject omits the Subject header from the output.
func (b *MessageBuilder) NoSubject() *MessageBuilder { b.noSubject = true; return b }

// Date sets the Date header. An empty value omits it.
func (b *MessageBuilder) Date(v string) *MessageBuilder { b.date = v; return b }

// ContentType overrides the Content-Type header (for single-part messages).
func (b *MessageBuilder) ContentType(v string) *MessageBuilder { b.contentType = v; return b }

// Body sets the plain text body.
func (b *MessageBuilder) Body(v string) *MessageBuilder { b.body = v; b.noText = false; return b }

// HTML adds a text/html alternative. Combined with HTMLOnly the message
// carries no text/plain part at all.
func (b *MessageBuilder) HTML(v string) *MessageBuilder { b.html = v; return b }

// HTMLOnly drops the text/plain part.
func (b *MessageBuilder) HTMLOnly() *MessageBuilder { b.noText = true; return b }

// Header adds an arbitrary header.
func (b *MessageBuilder) Header(key, value string) *MessageBuilder {
	b.headerKeys = append(b.headerKeys, key)
	b.headerVals = append(b.headerVals, value)
	return b
}

// Labels sets an X-Gmail-Labels header with the given comma separated labels.
func (b *MessageBuilder) Labels(labels ...string) *MessageBuilder {
	return b.Header("X-Gmail-Labels", strings.Join(labels, ","))
}

// Boundary sets the multipart boundary string.
func (b *MessageBuilder) Boundary(v string) *MessageBuilder { b.boundary = v; return b }

// WithAttachment adds an attachment to the message.
func (b *MessageBuilder) WithAttachment(filename, contentType string, data []byte) *MessageBuilder {
	b.attachments = append(b.attachments, Attachment{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
	})
	return b
}

// WithInline adds an inline part with a file name (e.g. an embedded image).
func (b *MessageBuilder) WithInline(filename, contentType string, data []byte) *MessageBuilder {
	b.attachments = append(b.attachments, Attachment{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		Inline:      true,
	})
	return b
}

// CRLF switches to \r\n line endings (RFC 5322 compliant).
func (b *MessageBuilder) CRLF() *MessageBuilder { b.crlf = true; return b }

// Bytes builds the complete MIME message.
func (b *MessageBuilder) Bytes() []byte {
	nl := "\n"
	if b.crlf {
		nl = "\r\n"
	}

	var s strings.Builder

	if b.from != "" {
		s.WriteString("From: " + b.from + nl)
	}
	if b.to != "" {
		s.WriteString("To: " + b.to + nl)
	}
	if b.cc != "" {
		s.WriteString("Cc: " + b.cc + nl)
	}
	if !b.noSubject {
		s.WriteString("Subject: " + b.subject + nl)
	}
	if b.date != "" {
		s.WriteString("Date: " + b.date + nl)
	}

	for i, k := range b.headerKeys {
		s.WriteString(k + ": " + b.headerVals[i] + nl)
	}

	textPart := func() {
		s.WriteString(`Content-Type: text/plain; charset="utf-8"` + nl)
		s.WriteString(nl)
		s.WriteString(b.body + nl)
	}
	htmlPart := func() {
		s.WriteString(`Content-Type: text/html; charset="utf-8"` + nl)
		s.WriteString(nl)
		s.WriteString(b.html + nl)
	}
	// bodyParts writes the body as a single part or a nested alternative.
	bodyParts := func() {
		switch {
		case b.html == "":
			textPart()
		case b.noText:
			htmlPart()
		default:
			alt := b.boundary + "-alt"
			s.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", alt) + nl)
			s.WriteString(nl)
			s.WriteString("--" + alt + nl)
			textPart()
			s.WriteString("--" + alt + nl)
			htmlPart()
			s.WriteString("--" + alt + "--" + nl)
		}
	}

	s.WriteString("MIME-Version: 1.0" + nl)
	switch {
	case len(b.attachments) > 0:
		s.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", b.boundary) + nl)
		s.WriteString(nl)

		s.WriteString("--" + b.boundary + nl)
		bodyParts()

		for _, att := range b.attachments {
			s.WriteString("--" + b.boundary + nl)
			ct := att.ContentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			disp := "attachment"
			if att.Inline {
				disp = "inline"
			}
			s.WriteString(fmt.Sprintf("Content-Type: %s; name=%q", ct, att.Filename) + nl)
			s.WriteString(fmt.Sprintf("Content-Disposition: %s; filename=%q", disp, att.Filename) + nl)
			s.WriteString("Content-Transfer-Encoding: base64" + nl)
			s.WriteString(nl)
			s.WriteString(base64.StdEncoding.EncodeToString(att.Data) + nl)
		}

		s.WriteString("--" + b.boundary + "--" + nl)
	case b.contentType != "":
		s.WriteString("Content-Type: " + b.contentType + nl)
		s.WriteString(nl)
		s.WriteString(b.body + nl)
	default:
		bodyParts()
	}

	return []byte(s.String())
}

package index

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset" // register non-UTF-8 decoders for RFC 2047 words
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/wesm/mboxbrowser/internal/mbox"
	"github.com/wesm/mboxbrowser/internal/mime"
	"github.com/wesm/mboxbrowser/internal/model"
	"github.com/wesm/mboxbrowser/internal/textutil"
)

// DefaultLabelHeaders are the headers labels are read from when
// Options.LabelHeaders is empty.
var DefaultLabelHeaders = []string{"X-Gmail-Labels", "X-Labels", "X-Keywords", "X-Folder"}

// readHeader parses a header block. The block does not need to carry its
// terminating blank line.
func readHeader(raw []byte) (*gomail.Header, error) {
	if !bytes.HasSuffix(raw, []byte("\n\n")) && !bytes.HasSuffix(raw, []byte("\r\n\r\n")) {
		raw = append(bytes.Clone(raw), "\r\n\r\n"...)
	}
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, err
	}
	h := gomail.Header{}
	h.Header.Header = th
	return &h, nil
}

// fillFromHeader copies envelope metadata from the header block into e.
func fillFromHeader(e *model.IndexEntry, raw []byte, fromLine string, labelHeaders []string) error {
	h, err := readHeader(raw)
	if err != nil {
		return fmt.Errorf("parse header: %w", err)
	}

	if from := addressList(h, "From"); len(from) > 0 {
		e.From = from[0]
	}
	e.To = addressList(h, "To")
	e.Cc = addressList(h, "Cc")

	// Subject returns the raw value alongside a decoding error.
	subject, _ := h.Subject()
	e.Subject = textutil.EnsureUTF8(strings.TrimSpace(subject))

	if id, err := h.MessageID(); err == nil {
		e.MessageID = id
	} else {
		e.MessageID = strings.Trim(h.Get("Message-Id"), "<> \t")
	}

	e.Date = headerDate(h, fromLine)
	e.Labels = labels(h, labelHeaders)
	return nil
}

// headerDate resolves the message date: Date header, then a lenient parse
// of the same header, then the envelope line, then the sentinel.
func headerDate(h *gomail.Header, fromLine string) time.Time {
	if t, err := h.Date(); err == nil && !t.IsZero() {
		return t.UTC()
	}
	if t, ok := mime.ParseDate(h.Get("Date")); ok {
		return t
	}
	if t, ok := mbox.EnvelopeDate(fromLine); ok {
		return t.UTC()
	}
	return model.SentinelDate
}

// addressList parses an address header. When the list as a whole is not
// RFC 5322 compliant each comma separated item is parsed on its own, and
// items that still fail are kept verbatim.
func addressList(h *gomail.Header, key string) []model.Address {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return nil
	}

	if list, err := h.AddressList(key); err == nil {
		out := make([]model.Address, 0, len(list))
		for _, a := range list {
			out = append(out, model.Address{
				Name:    textutil.EnsureUTF8(a.Name),
				Address: textutil.EnsureUTF8(a.Address),
			})
		}
		return out
	}

	var out []model.Address
	for _, item := range splitList(raw) {
		if a, err := gomail.ParseAddress(item); err == nil {
			out = append(out, model.Address{
				Name:    textutil.EnsureUTF8(a.Name),
				Address: textutil.EnsureUTF8(a.Address),
			})
			continue
		}
		out = append(out, looseAddress(item))
	}
	return out
}

// looseAddress recovers what it can from an address that failed to parse.
func looseAddress(item string) model.Address {
	item = textutil.EnsureUTF8(item)
	if lt := strings.LastIndex(item, "<"); lt >= 0 {
		if gt := strings.Index(item[lt:], ">"); gt > 0 {
			return model.Address{
				Name:    strings.Trim(strings.TrimSpace(item[:lt]), `"`),
				Address: strings.TrimSpace(item[lt+1 : lt+gt]),
			}
		}
	}
	if strings.Contains(item, "@") {
		return model.Address{Address: item}
	}
	return model.Address{Name: item}
}

// labels collects classification tokens from every configured header, in
// header order. Duplicates are kept.
func labels(h *gomail.Header, keys []string) []string {
	var out []string
	for _, key := range keys {
		fields := h.FieldsByKey(key)
		for fields.Next() {
			v, err := fields.Text()
			if err != nil {
				v = fields.Value()
			}
			for _, l := range splitList(v) {
				out = append(out, textutil.EnsureUTF8(l))
			}
		}
	}
	return out
}

// splitList splits a comma separated header value. Items may be double
// quoted, in which case commas inside the quotes do not split. Empty items
// are dropped and surrounding quotes are removed.
func splitList(v string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
		escaped bool
	)
	flush := func() {
		item := strings.TrimSpace(cur.String())
		cur.Reset()
		if len(item) >= 2 && item[0] == '"' && item[len(item)-1] == '"' && !strings.Contains(item[1:len(item)-1], `"`) {
			item = strings.TrimSpace(item[1 : len(item)-1])
		}
		if item != "" {
			out = append(out, item)
		}
	}
	for _, r := range v {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return out
}

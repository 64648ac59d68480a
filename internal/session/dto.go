package session

import (
	"time"

	"github.com/wesm/mboxbrowser/internal/model"
)

// EmailEntry is the browsing record of one indexed message.
type EmailEntry struct {
	Index          int            `json:"index"`
	Offset         int64          `json:"offset"`
	Length         int64          `json:"length"`
	Date           string         `json:"date"`
	FromName       string         `json:"from_name"`
	FromAddress    string         `json:"from_address"`
	To             []EmailAddress `json:"to"`
	Cc             []EmailAddress `json:"cc"`
	Subject        string         `json:"subject"`
	MessageID      string         `json:"message_id,omitempty"`
	HasAttachments bool           `json:"has_attachments"`
	Labels         []string       `json:"labels"`
}

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// EmailBody is the parsed content of one message.
type EmailBody struct {
	Text        *string          `json:"text"`
	HTML        *string          `json:"html"`
	RawHeaders  string           `json:"raw_headers"`
	Attachments []AttachmentInfo `json:"attachments"`
}

type AttachmentInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	PartIndex   int    `json:"part_index"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// MboxStats summarizes an opened file.
type MboxStats struct {
	Path                 string       `json:"path"`
	TotalMessages        int          `json:"total_messages"`
	TotalWithAttachments int          `json:"total_with_attachments"`
	Labels               []LabelCount `json:"labels"`
}

// IndexProgress reports how far indexing has read into the file.
type IndexProgress struct {
	BytesRead  int64   `json:"bytes_read"`
	TotalBytes int64   `json:"total_bytes"`
	Percent    float64 `json:"percent"`
}

// SearchResults holds at most the requested number of matches in index
// order. TotalCount is the number of matches before truncation.
type SearchResults struct {
	Emails     []EmailEntry `json:"emails"`
	TotalCount int          `json:"total_count"`
}

// SearchOutcome is delivered by SearchAsync.
type SearchOutcome struct {
	Results *SearchResults
	Err     error
}

func newEmailEntry(e *model.IndexEntry) EmailEntry {
	return EmailEntry{
		Index:          e.Sequence,
		Offset:         e.Offset,
		Length:         e.Length,
		Date:           e.Date.UTC().Format(time.RFC3339),
		FromName:       e.From.Name,
		FromAddress:    e.From.Address,
		To:             newAddresses(e.To),
		Cc:             newAddresses(e.Cc),
		Subject:        e.Subject,
		MessageID:      e.MessageID,
		HasAttachments: e.HasAttachments,
		Labels:         append([]string{}, e.Labels...),
	}
}

func newAddresses(addrs []model.Address) []EmailAddress {
	out := make([]EmailAddress, len(addrs))
	for i, a := range addrs {
		out[i] = EmailAddress{Name: a.Name, Address: a.Address}
	}
	return out
}

func newEmailBody(b *model.MailBody) *EmailBody {
	out := &EmailBody{
		Text:        b.Text,
		HTML:        b.HTML,
		RawHeaders:  b.RawHeaders,
		Attachments: make([]AttachmentInfo, len(b.Attachments)),
	}
	for i, a := range b.Attachments {
		out.Attachments[i] = AttachmentInfo{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			PartIndex:   a.PartIndex,
		}
	}
	return out
}

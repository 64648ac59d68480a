// Package model holds the envelope and body types shared by the index
// builder, the message store and the search engine.
package model

import (
	"slices"
	"time"
)

// SentinelDate is assigned to messages that carry neither a parseable Date
// header nor a parseable envelope date. It sorts after every real date.
var SentinelDate = time.Unix(0, 0).UTC()

// Address is an email address with an optional display name.
type Address struct {
	Name    string
	Address string
}

// IsZero reports whether both fields are empty.
func (a Address) IsZero() bool {
	return a.Name == "" && a.Address == ""
}

// IndexEntry is the lightweight metadata record for one message in an MBOX
// file. Only Sequence changes after the index is built.
type IndexEntry struct {
	// Sequence is the dense position of the entry in the sorted index.
	Sequence int

	// Offset and Length locate the raw message, envelope line included.
	Offset int64
	Length int64

	Date           time.Time
	From           Address
	To             []Address
	Cc             []Address
	Subject        string
	MessageID      string
	HasAttachments bool

	// Labels are classification tokens taken from headers such as
	// X-Gmail-Labels. Order is not significant; duplicates are kept.
	Labels []string
}

// Clone returns a deep copy of e.
func (e IndexEntry) Clone() IndexEntry {
	e.To = slices.Clone(e.To)
	e.Cc = slices.Clone(e.Cc)
	e.Labels = slices.Clone(e.Labels)
	return e
}

// MailBody is the fully parsed content of one message. It is produced per
// call and never cached.
type MailBody struct {
	Text        *string
	HTML        *string
	RawHeaders  string
	Attachments []AttachmentMeta
}

// AttachmentMeta describes one attachment of a parsed body. PartIndex is the
// position of the attachment within that parse only; it is not stable across
// parses of different entries.
type AttachmentMeta struct {
	Filename    string
	ContentType string
	Size        int64
	PartIndex   int
}

package index

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/model"
	testemail "github.com/wesm/mboxbrowser/internal/testutil/email"
	"github.com/wesm/mboxbrowser/internal/testutil/mboxtest"
)

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func mustBuild(t *testing.T, path string, opts Options) []model.IndexEntry {
	t.Helper()
	entries, err := Build(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("Build(%s): %v", path, err)
	}
	return entries
}

func TestBuild_BoundaryAddressing(t *testing.T) {
	msgs := []mboxtest.Message{
		mboxtest.Raw(testemail.NewMessage().Subject("one").Body("first body\nFrom the desk of nobody\n").Bytes()),
		mboxtest.Raw(testemail.NewMessage().Subject("two").Body("second body").Bytes()),
		mboxtest.Raw(testemail.NewMessage().Subject("three").WithAttachment("a.bin", "", []byte("xyz")).Bytes()),
	}
	data := mboxtest.Bytes(t, msgs...)
	path := mboxtest.WriteRaw(t, "boundary.mbox", data)

	entries := mustBuild(t, path, quietOptions())
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if oracle := mboxtest.Count(t, data); oracle != len(entries) {
		t.Errorf("go-mbox sees %d messages, index has %d", oracle, len(entries))
	}

	var end int64
	for i, e := range entries {
		if e.Sequence != i {
			t.Errorf("entry %d: Sequence = %d", i, e.Sequence)
		}
		if e.Offset != end {
			t.Errorf("entry %d: Offset = %d, want %d (spans must be contiguous)", i, e.Offset, end)
		}
		if !bytes.HasPrefix(data[e.Offset:], []byte("From ")) {
			t.Errorf("entry %d: byte range does not start with an envelope line", i)
		}
		end = e.Offset + e.Length
	}
	if end != int64(len(data)) {
		t.Errorf("last entry ends at %d, file is %d bytes", end, len(data))
	}

	wantSubjects := []string{"one", "two", "three"}
	for i, e := range entries {
		if e.Subject != wantSubjects[i] {
			t.Errorf("entry %d: Subject = %q, want %q", i, e.Subject, wantSubjects[i])
		}
	}
}

func TestBuild_HeaderFields(t *testing.T) {
	raw := testemail.NewMessage().
		From(`"Alice Example" <alice@example.com>`).
		To("bob@example.com, Carol <carol@example.com>").
		Cc("dave@example.com").
		Subject("=?ISO-8859-1?Q?Caf=E9?= meeting").
		Date("Tue, 02 Jan 2024 10:00:00 +0200").
		Header("Message-ID", "<abc123@example.com>").
		Header("X-Gmail-Labels", `Inbox,"Work, Important",Inbox`).
		Header("X-Folder", "Archive").
		Bytes()
	path := mboxtest.WriteFile(t, "headers.mbox", mboxtest.Raw(raw))

	entries := mustBuild(t, path, quietOptions())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	got := entries[0]

	want := model.IndexEntry{
		Offset:    got.Offset,
		Length:    got.Length,
		Date:      time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
		From:      model.Address{Name: "Alice Example", Address: "alice@example.com"},
		To:        []model.Address{{Address: "bob@example.com"}, {Name: "Carol", Address: "carol@example.com"}},
		Cc:        []model.Address{{Address: "dave@example.com"}},
		Subject:   "Café meeting",
		MessageID: "abc123@example.com",
		Labels:    []string{"Inbox", "Work, Important", "Inbox", "Archive"},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_DateFallback(t *testing.T) {
	envelope := time.Date(2022, 5, 6, 7, 8, 9, 0, time.UTC)
	withEnvelope := mboxtest.Message{
		Date: envelope,
		Raw:  testemail.NewMessage().Date("").Subject("envelope").Bytes(),
	}
	lenient := mboxtest.Raw(testemail.NewMessage().Date("2021-03-04 05:06:07").Subject("lenient").Bytes())
	path := mboxtest.WriteFile(t, "dates.mbox", withEnvelope, lenient)

	entries := mustBuild(t, path, quietOptions())
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !entries[0].Date.Equal(envelope) {
		t.Errorf("envelope fallback: Date = %v, want %v", entries[0].Date, envelope)
	}
	if want := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC); !entries[1].Date.Equal(want) {
		t.Errorf("lenient parse: Date = %v, want %v", entries[1].Date, want)
	}

	// No Date header and no date on the envelope line.
	bare := mboxtest.WriteRaw(t, "bare.mbox", []byte("From nobody\nSubject: undated\n\nbody\n"))
	entries = mustBuild(t, bare, quietOptions())
	if len(entries) != 1 || !entries[0].Date.Equal(model.SentinelDate) {
		t.Fatalf("want one entry with sentinel date, got %+v", entries)
	}
}

func TestBuild_HasAttachments(t *testing.T) {
	msgs := []mboxtest.Message{
		mboxtest.Raw(testemail.NewMessage().Body("plain").Bytes()),
		mboxtest.Raw(testemail.NewMessage().WithAttachment("report.pdf", "application/pdf", []byte("%PDF-1.4")).Bytes()),
		mboxtest.Raw(testemail.NewMessage().WithInline("logo.png", "image/png", []byte("png")).Bytes()),
		mboxtest.Raw(testemail.NewMessage().Body("plain").HTML("<p>rich</p>").Bytes()),
		mboxtest.Raw([]byte("From: a@example.com\nContent-Type: application/pdf; name=\"x.pdf\"\nContent-Transfer-Encoding: base64\n\nJVBERg==\n")),
	}
	path := mboxtest.WriteFile(t, "attachments.mbox", msgs...)

	entries := mustBuild(t, path, quietOptions())
	want := []bool{false, true, false, false, true}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.HasAttachments != want[i] {
			t.Errorf("entry %d: HasAttachments = %v, want %v", i, e.HasAttachments, want[i])
		}
	}
}

func TestBuild_MalformedHeaders(t *testing.T) {
	data := strings.Join([]string{
		"From a@example.com Mon Jan 1 00:00:00 2024",
		"this line is not a header",
		"",
		"body",
		"",
		"From b@example.com Mon Jan 1 00:00:01 2024",
		"Subject: fine",
		"",
		"body",
		"",
	}, "\n")
	path := mboxtest.WriteRaw(t, "malformed.mbox", []byte(data))

	entries := mustBuild(t, path, quietOptions())
	if len(entries) != 2 {
		t.Fatalf("placeholder policy: got %d entries, want 2", len(entries))
	}
	ph := entries[0]
	if ph.Subject != "" || !ph.From.IsZero() || !ph.Date.Equal(model.SentinelDate) {
		t.Errorf("placeholder has envelope fields: %+v", ph)
	}
	if ph.Offset != 0 || ph.Length != int64(strings.Index(data, "From b@")) {
		t.Errorf("placeholder location = (%d,%d)", ph.Offset, ph.Length)
	}
	if entries[1].Subject != "fine" {
		t.Errorf("second entry Subject = %q", entries[1].Subject)
	}

	opts := quietOptions()
	opts.SkipMalformed = true
	entries = mustBuild(t, path, opts)
	if len(entries) != 1 || entries[0].Subject != "fine" || entries[0].Sequence != 0 {
		t.Fatalf("skip policy: got %+v", entries)
	}
}

func TestBuild_OversizedHeaderBecomesPlaceholder(t *testing.T) {
	raw := testemail.NewMessage().Header("X-Big", strings.Repeat("x", 4096)).Bytes()
	path := mboxtest.WriteFile(t, "big.mbox", mboxtest.Raw(raw), mboxtest.Raw(testemail.NewMessage().Subject("small").Bytes()))

	opts := quietOptions()
	opts.MaxMessageBytes = 1024
	entries := mustBuild(t, path, opts)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Subject != "" || entries[1].Subject != "small" {
		t.Errorf("subjects = %q, %q", entries[0].Subject, entries[1].Subject)
	}
}

func TestBuild_OverlongHeaderLineBecomesPlaceholder(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a 33 MiB mailbox")
	}
	raw := testemail.NewMessage().Header("X-Huge", strings.Repeat("x", 33<<20)).Bytes()
	path := mboxtest.WriteFile(t, "huge-line.mbox", mboxtest.Raw(raw), mboxtest.Raw(testemail.NewMessage().Subject("after").Bytes()))

	entries := mustBuild(t, path, quietOptions())
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Subject != "" || !entries[0].Date.Equal(model.SentinelDate) {
		t.Errorf("entry 0 is not a placeholder: %+v", entries[0])
	}
	if entries[1].Subject != "after" || entries[1].Offset != entries[0].Offset+entries[0].Length {
		t.Errorf("entry 1 = %+v", entries[1])
	}
}

func TestBuild_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Build(context.Background(), dir+"/missing.mbox", quietOptions())
	if !errors.Is(err, mboxerr.ErrNotFound) {
		t.Errorf("missing file: err = %v, want ErrNotFound", err)
	}

	notMbox := mboxtest.WriteRaw(t, "plain.txt", []byte("Subject: hi\n\nnot an mbox\n"))
	_, err = Build(context.Background(), notMbox, quietOptions())
	if !errors.Is(err, mboxerr.ErrMboxFormat) {
		t.Errorf("no separator: err = %v, want ErrMboxFormat", err)
	}

	_, err = Build(context.Background(), dir, quietOptions())
	if !errors.Is(err, mboxerr.ErrIO) {
		t.Errorf("directory: err = %v, want ErrIO", err)
	}

	empty := mboxtest.WriteRaw(t, "empty.mbox", nil)
	entries, err := Build(context.Background(), empty, quietOptions())
	if err != nil || len(entries) != 0 {
		t.Errorf("empty file: entries=%d err=%v, want 0, nil", len(entries), err)
	}
}

func TestBuild_ContextCanceled(t *testing.T) {
	path := mboxtest.WriteFile(t, "ctx.mbox", mboxtest.Raw(testemail.NewMessage().Bytes()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, path, quietOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBuild_Progress(t *testing.T) {
	var msgs []mboxtest.Message
	for i := 0; i < 50; i++ {
		msgs = append(msgs, mboxtest.Raw(testemail.NewMessage().Body(strings.Repeat("filler ", 100)).Bytes()))
	}
	path := mboxtest.WriteFile(t, "progress.mbox", msgs...)
	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	var reports []Progress
	opts := quietOptions()
	opts.ProgressInterval = 4096
	opts.Progress = func(p Progress) { reports = append(reports, p) }
	mustBuild(t, path, opts)

	if len(reports) < 2 {
		t.Fatalf("got %d progress reports, want several", len(reports))
	}
	for i := 1; i < len(reports); i++ {
		if reports[i].BytesRead < reports[i-1].BytesRead {
			t.Errorf("progress went backwards: %+v then %+v", reports[i-1], reports[i])
		}
	}
	last := reports[len(reports)-1]
	if last.BytesRead != st.Size() || last.TotalBytes != st.Size() || last.Percent != 100 {
		t.Errorf("final report = %+v, want complete", last)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Inbox", []string{"Inbox"}},
		{"Inbox, Sent ,Starred", []string{"Inbox", "Sent", "Starred"}},
		{`"a, b",c`, []string{"a, b", "c"}},
		{" , ,", nil},
		{`"Doe, John" <j@example.com>, k@example.com`, []string{`"Doe, John" <j@example.com>`, "k@example.com"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitList(tt.in), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("splitList(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestOptions_Fingerprint(t *testing.T) {
	base := Options{}.Fingerprint()

	same := []Options{
		{LabelHeaders: DefaultLabelHeaders},
		{MaxMessageBytes: DefaultMaxMessageBytes},
		{ProgressInterval: 1, Logger: slog.Default()},
		{LabelHeaders: []string{"x-gmail-labels", "x-labels", "x-keywords", "x-folder"}},
	}
	for _, o := range same {
		if got := o.Fingerprint(); got != base {
			t.Errorf("Fingerprint(%+v) differs from the defaults", o)
		}
	}

	different := map[string]Options{
		"strict":         {Strict: true},
		"skip malformed": {SkipMalformed: true},
		"max bytes":      {MaxMessageBytes: 1024},
		"label headers":  {LabelHeaders: []string{"X-Other"}},
	}
	for name, o := range different {
		if o.Fingerprint() == base {
			t.Errorf("%s: Fingerprint matches the defaults", name)
		}
	}
}

package email

import (
	"strings"
	"testing"
)

func TestPlainMessage(t *testing.T) {
	got := string(NewMessage().Body("Hello world.").Bytes())

	want := strings.Join([]string{
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Test Message",
		"Date: Mon, 01 Jan 2024 12:00:00 +0000",
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		"Hello world.",
		"",
	}, "\n")

	if got != want {
		t.Errorf("plain message mismatch.\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestOmittedHeaders(t *testing.T) {
	got := string(NewMessage().NoSubject().Date("").From("").Bytes())
	for _, h := range []string{"Subject:", "Date:", "From:"} {
		if strings.Contains(got, h) {
			t.Errorf("expected no %s header, got:\n%s", h, got)
		}
	}
}

func TestMultipartMessage(t *testing.T) {
	got := string(NewMessage().
		Body("See attached.").
		Boundary("BOUND").
		WithAttachment("test.txt", "text/plain", []byte("file data")).
		WithInline("logo.png", "image/png", []byte{0x89, 'P', 'N', 'G'}).
		Bytes())

	if !strings.Contains(got, "Content-Type: multipart/mixed; boundary=\"BOUND\"\n") {
		t.Fatalf("missing multipart/mixed header:\n%s", got)
	}
	if !strings.HasSuffix(got, "--BOUND--\n") {
		t.Errorf("message does not end with the closing boundary:\n%s", got)
	}

	// Preamble, body, attachment, inline, epilogue.
	parts := strings.Split(got, "--BOUND")
	if len(parts) != 5 {
		t.Fatalf("got %d boundary-separated sections, want 5:\n%s", len(parts), got)
	}
	tests := []struct {
		name   string
		part   string
		checks []string
	}{
		{"body", parts[1], []string{`Content-Type: text/plain`, "See attached."}},
		{"attachment", parts[2], []string{
			`Content-Type: text/plain; name="test.txt"`,
			`Content-Disposition: attachment; filename="test.txt"`,
			"Content-Transfer-Encoding: base64",
			"ZmlsZSBkYXRh",
		}},
		{"inline", parts[3], []string{
			`Content-Type: image/png; name="logo.png"`,
			`Content-Disposition: inline; filename="logo.png"`,
			"Content-Transfer-Encoding: base64",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := -1
			for _, c := range tt.checks {
				i := strings.Index(tt.part, c)
				if i < 0 {
					t.Fatalf("part missing %q\ngot:\n%s", c, tt.part)
				}
				if i < last {
					t.Errorf("%q out of order", c)
				}
				last = i
			}
		})
	}
}

func TestAlternativeMessage(t *testing.T) {
	got := string(NewMessage().Body("plain").HTML("<p>rich</p>").Boundary("B").Bytes())
	for _, c := range []string{
		`multipart/alternative; boundary="B-alt"`,
		"text/plain",
		"<p>rich</p>",
		"--B-alt--",
	} {
		if !strings.Contains(got, c) {
			t.Errorf("missing %q in:\n%s", c, got)
		}
	}

	htmlOnly := string(NewMessage().HTML("<p>rich</p>").HTMLOnly().Bytes())
	if strings.Contains(htmlOnly, "text/plain") {
		t.Errorf("HTMLOnly message should not carry a text part:\n%s", htmlOnly)
	}
}

func TestHeaderOrderAndLabels(t *testing.T) {
	got := string(NewMessage().
		Header("X-First", "1").
		Labels("Inbox", "Work").
		Header("X-Third", "3").
		Bytes())

	i1 := strings.Index(got, "X-First: 1")
	i2 := strings.Index(got, "X-Gmail-Labels: Inbox,Work")
	i3 := strings.Index(got, "X-Third: 3")

	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("missing headers in output:\n%s", got)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Errorf("headers not in insertion order: positions %d, %d, %d", i1, i2, i3)
	}
}

func TestCRLF(t *testing.T) {
	got := NewMessage().CRLF().WithAttachment("a.bin", "", []byte("x")).Bytes()
	for i, b := range got {
		if b == '\n' && (i == 0 || got[i-1] != '\r') {
			t.Fatalf("bare \\n at byte %d; expected all line endings to be \\r\\n", i)
		}
	}
}

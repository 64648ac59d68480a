package cmd

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/session"
	"github.com/wesm/mboxbrowser/internal/testutil"
	testemail "github.com/wesm/mboxbrowser/internal/testutil/email"
	"github.com/wesm/mboxbrowser/internal/testutil/mboxtest"
)

// writeFixture writes a three-message MBOX. Newest first:
//
//	0  alice  "Quarterly report"  Work   report.pdf
//	1  bob    "Lunch"             Inbox
//	2  carol  "Old news"          Work   HTML only
func writeFixture(t *testing.T) string {
	t.Helper()
	return mboxtest.WriteFile(t, "cli.mbox",
		mboxtest.Raw(testemail.NewMessage().
			From("Alice <alice@example.com>").To("team@example.com").Subject("Quarterly report").
			Date("Mon, 04 Mar 2024 09:00:00 +0000").Labels("Work").
			Body("numbers attached").
			WithAttachment("report.pdf", "application/pdf", []byte("%PDF-1.4 fake")).Bytes()),
		mboxtest.Raw(testemail.NewMessage().
			From("bob@example.com").Subject("Lunch").
			Date("Thu, 01 Feb 2024 12:00:00 +0000").Labels("Inbox").
			Body("pizza?").Bytes()),
		mboxtest.Raw(testemail.NewMessage().
			From("carol@example.com").Subject("Old news").
			Date("Tue, 02 Jan 2024 08:00:00 +0000").Labels("Work").
			HTML("<p>archived <b>notes</b></p>").HTMLOnly().Bytes()),
	)
}

// resetFlags restores command flag variables between runs of the shared
// rootCmd.
func resetFlags() {
	cfgFile, homeDir, verbose = "", "", false
	statsJSON, labelsJSON = false, false
	listOffset, listLimit, listLabel, listJSON = 0, 50, "", false
	showJSON, showHeaders, showHTML = false, false, false
	searchLimit, searchJSON = 0, false
	exportAttachmentOutput, exportAttachmentJSON, exportAttachmentBase64, exportAttachmentZip = "", false, false, ""
}

// runCLI executes the root command with an isolated home directory and
// returns what it wrote to stdout.
//
// NOTE: uses the package-level rootCmd; do not add t.Parallel().
func runCLI(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	// cobra only hands the root context to subcommands that have none, so
	// clear what an earlier run left behind.
	for _, c := range rootCmd.Commands() {
		c.SetContext(nil) //nolint:staticcheck
	}
	err := ExecuteContext(t.Context())
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, home, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", s, err)
	}
	return v
}

func subjects(entries []session.EmailEntry) []string {
	out := []string{}
	for _, e := range entries {
		out = append(out, e.Subject)
	}
	return out
}

// Each subtest's context is cancelled when it ends; later runs of the same
// subcommand must not inherit it.
func TestCommandsRunInSequence(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()
	for i := range 3 {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			out := mustRun(t, home, "stats", path)
			testutil.AssertContainsAll(t, out, "Messages:         3")
		})
	}
}

func TestStatsCommand(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()

	out := mustRun(t, home, "stats", path)
	testutil.AssertContainsAll(t, out, "Messages:         3", "With attachments: 1", "Labels:           2")

	stats := decodeJSON[session.MboxStats](t, mustRun(t, home, "stats", "--json", path))
	want := []session.LabelCount{{Label: "Work", Count: 2}, {Label: "Inbox", Count: 1}}
	if diff := cmp.Diff(want, stats.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	dbs, _ := filepath.Glob(filepath.Join(home, "cache", "*.db"))
	if len(dbs) != 1 {
		t.Errorf("expected one cached index in %s, found %v", home, dbs)
	}
}

func TestListCommand(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()

	out := mustRun(t, home, "list", path)
	testutil.AssertContainsAll(t, out, "INDEX", "Quarterly report", "Lunch", "Old news", "Showing 3 of 3 messages")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"paged", []string{"--offset", "1", "--limit", "1"}, []string{"Lunch"}},
		{"label", []string{"--label", "work"}, []string{"Quarterly report", "Old news"}},
		{"label paged", []string{"--label", "Work", "--offset", "1"}, []string{"Old news"}},
		{"past end", []string{"--offset", "10"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"list", "--json", path}, tt.args...)
			got := decodeJSON[[]session.EmailEntry](t, mustRun(t, home, args...))
			if diff := cmp.Diff(tt.want, subjects(got)); diff != "" {
				t.Errorf("subjects mismatch (-want +got):\n%s", diff)
			}
		})
	}

	for _, args := range [][]string{{"--limit=-1"}, {"--label", "work", "--offset=-2"}} {
		_, err := runCLI(t, home, append([]string{"list", path}, args...)...)
		testutil.AssertErrorKind(t, err, mboxerr.ErrValidation)
	}
}

func TestLabelsCommand(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()

	out := mustRun(t, home, "labels", path)
	testutil.AssertContainsAll(t, out, "LABEL", "Work", "Inbox")
	if strings.Index(out, "Work") > strings.Index(out, "Inbox") {
		t.Errorf("labels not ordered by count:\n%s", out)
	}
}

func TestShowCommand(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()

	t.Run("text", func(t *testing.T) {
		out := mustRun(t, home, "show", path, "0")
		testutil.AssertContainsAll(t, out,
			"Subject: Quarterly report",
			"From:    Alice <alice@example.com>",
			"To:      team@example.com",
			"[0] report.pdf (application/pdf",
			"numbers attached")
	})

	t.Run("html only", func(t *testing.T) {
		out := mustRun(t, home, "show", path, "2")
		testutil.AssertContainsAll(t, out, "archived notes")
		out = mustRun(t, home, "show", "--html", path, "2")
		testutil.AssertContainsAll(t, out, "<b>notes</b>")
	})

	t.Run("raw headers", func(t *testing.T) {
		out := mustRun(t, home, "show", "--headers", path, "1")
		testutil.AssertContainsAll(t, out, "Subject: Lunch", "X-Gmail-Labels: Inbox")
	})

	t.Run("json", func(t *testing.T) {
		msg := decodeJSON[struct {
			Subject string             `json:"subject"`
			Body    session.EmailBody `json:"body"`
		}](t, mustRun(t, home, "show", "--json", path, "0"))
		if msg.Subject != "Quarterly report" || len(msg.Body.Attachments) != 1 {
			t.Errorf("unexpected message: %+v", msg)
		}
	})

	t.Run("bad index", func(t *testing.T) {
		for _, arg := range []string{"3", "99", "abc"} {
			_, err := runCLI(t, home, "show", path, arg)
			testutil.AssertErrorKind(t, err, mboxerr.ErrValidation)
		}
	})
}

func TestSearchCommand(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()

	out := mustRun(t, home, "search", path, "pizza")
	testutil.AssertContainsAll(t, out, "Lunch", "Showing 1 of 1 results")

	res := decodeJSON[session.SearchResults](t, mustRun(t, home, "search", "--json", "--limit", "1", path, "label:work"))
	if res.TotalCount != 2 || len(res.Emails) != 1 {
		t.Errorf("total %d, returned %d; want 2 and 1", res.TotalCount, len(res.Emails))
	}

	out = mustRun(t, home, "search", path, "from:nobody")
	testutil.AssertContainsAll(t, out, "No messages found.")

	_, err := runCLI(t, home, "search", path, `subject:"open`)
	testutil.AssertErrorKind(t, err, mboxerr.ErrQuerySyntax)
}

func TestExportAttachmentCommand(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()

	t.Run("to file", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "report.pdf")
		mustRun(t, home, "export-attachment", path, "0", "0", "-o", dst)
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(got) != "%PDF-1.4 fake" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("stdout", func(t *testing.T) {
		out := mustRun(t, home, "export-attachment", path, "0", "0")
		if out != "%PDF-1.4 fake" {
			t.Errorf("stdout = %q", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		resp := decodeJSON[struct {
			Filename string `json:"filename"`
			Data     string `json:"data_base64"`
		}](t, mustRun(t, home, "export-attachment", "--json", path, "0", "0"))
		data, _ := base64.StdEncoding.DecodeString(resp.Data)
		if resp.Filename != "report.pdf" || string(data) != "%PDF-1.4 fake" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("zip", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "all.zip")
		out := mustRun(t, home, "export-attachment", "--zip", dst, path, "0")
		testutil.AssertContainsAll(t, out, "Exported 1 attachment(s)")
		zr, err := zip.OpenReader(dst)
		if err != nil {
			t.Fatalf("open zip: %v", err)
		}
		defer zr.Close()
		if len(zr.File) != 1 || zr.File[0].Name != "report.pdf" {
			t.Errorf("zip entries = %v", zr.File)
		}
	})

	t.Run("errors", func(t *testing.T) {
		_, err := runCLI(t, home, "export-attachment", path, "0", "1")
		testutil.AssertErrorKind(t, err, mboxerr.ErrValidation)
		if _, err := runCLI(t, home, "export-attachment", path, "0"); err == nil {
			t.Error("expected error without attachment number or --zip")
		}
		if _, err := runCLI(t, home, "export-attachment", "--json", "--base64", path, "0", "0"); err == nil {
			t.Error("expected error for --json with --base64")
		}
		if _, err := runCLI(t, home, "export-attachment", "--zip", filepath.Join(t.TempDir(), "x.zip"), path, "1"); err == nil {
			t.Error("expected error for a message without attachments")
		}
	})
}

func TestOpenErrors(t *testing.T) {
	home := t.TempDir()

	_, err := runCLI(t, home, "stats", filepath.Join(t.TempDir(), "missing.mbox"))
	testutil.AssertErrorKind(t, err, mboxerr.ErrNotFound)

	garbage := mboxtest.WriteRaw(t, "garbage.mbox", []byte("this is not an mbox file\n"))
	_, err = runCLI(t, home, "stats", garbage)
	testutil.AssertErrorKind(t, err, mboxerr.ErrMboxFormat)
}

func TestConfigFileApplies(t *testing.T) {
	path, home := writeFixture(t), t.TempDir()
	conf := filepath.Join(home, "config.toml")
	if err := os.WriteFile(conf, []byte("[index]\ncache = false\nlabel_headers = [\"X-Folder\"]\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out := mustRun(t, home, "labels", path)
	testutil.AssertContainsAll(t, out, "No labels found.")

	if dbs, _ := filepath.Glob(filepath.Join(home, "cache", "*.db")); len(dbs) != 0 {
		t.Errorf("cache disabled but found %v", dbs)
	}
}

func TestVersionCommand(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	testutil.AssertContainsAll(t, out, "mboxbrowser "+Version)
}

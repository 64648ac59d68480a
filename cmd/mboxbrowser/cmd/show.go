package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/mime"
	"github.com/wesm/mboxbrowser/internal/session"
	"github.com/wesm/mboxbrowser/internal/textutil"
)

var (
	showJSON    bool
	showHeaders bool
	showHTML    bool
)

var showCmd = &cobra.Command{
	Use:   "show <mbox-file> <index>",
	Short: "Show one message",
	Long: `Show the headers, attachments and body of one message. The index is the
number shown by 'list' and 'search'.

Examples:
  mboxbrowser show archive.mbox 0
  mboxbrowser show archive.mbox 12 --headers
  mboxbrowser show archive.mbox 12 --json | jq '.body.attachments'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := parseIndex(args[1])
		if err != nil {
			return err
		}

		sess, _, err := openMailbox(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		body, err := sess.GetEmailBody(seq)
		if err != nil {
			return err
		}
		entries, err := sess.GetEmails(seq, 1)
		if err != nil {
			return err
		}
		entry := entries[0]

		out := cmd.OutOrStdout()
		if showJSON {
			return writeJSON(out, struct {
				session.EmailEntry
				Body *session.EmailBody `json:"body"`
			}{entry, body})
		}
		writeMessage(out, entry, body)
		return nil
	},
}

// parseIndex parses a message or attachment index argument.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, mboxerr.Validation("index must be a non-negative integer, got %q", s)
	}
	return n, nil
}

func writeMessage(w io.Writer, e session.EmailEntry, body *session.EmailBody) {
	if showHeaders {
		fmt.Fprintln(w, strings.TrimRight(body.RawHeaders, "\r\n"))
	} else {
		fmt.Fprintf(w, "Subject: %s\n", e.Subject)
		fmt.Fprintf(w, "Date:    %s\n", e.Date)
		fmt.Fprintf(w, "From:    %s\n", formatAddress(session.EmailAddress{Name: e.FromName, Address: e.FromAddress}))
		if len(e.To) > 0 {
			fmt.Fprintf(w, "To:      %s\n", formatAddresses(e.To))
		}
		if len(e.Cc) > 0 {
			fmt.Fprintf(w, "Cc:      %s\n", formatAddresses(e.Cc))
		}
		if e.MessageID != "" {
			fmt.Fprintf(w, "Message-ID: %s\n", e.MessageID)
		}
		if len(e.Labels) > 0 {
			fmt.Fprintf(w, "Labels:  %s\n", strings.Join(e.Labels, ", "))
		}
	}

	if len(body.Attachments) > 0 {
		fmt.Fprintf(w, "\nAttachments (%d):\n", len(body.Attachments))
		for _, a := range body.Attachments {
			fmt.Fprintf(w, "  [%d] %s (%s, %s)\n", a.PartIndex, a.Filename, a.ContentType, textutil.FormatBytes(a.Size))
		}
	}

	fmt.Fprintln(w)
	switch {
	case showHTML && body.HTML != nil:
		fmt.Fprintln(w, *body.HTML)
	case body.Text != nil:
		fmt.Fprintln(w, *body.Text)
	case body.HTML != nil:
		fmt.Fprintln(w, mime.StripHTML(*body.HTML))
	default:
		fmt.Fprintln(w, "(No text content)")
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")
	showCmd.Flags().BoolVar(&showHeaders, "headers", false, "Print the raw header block")
	showCmd.Flags().BoolVar(&showHTML, "html", false, "Print the HTML body when there is one")
}

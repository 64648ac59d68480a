package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <mbox-file> <query>",
	Short: "Search messages using Gmail-like query syntax",
	Long: `Search an MBOX file using Gmail-like query syntax.

Supported operators:
  from:        Sender name or address
  to:          Recipient name or address
  cc:          CC recipient
  subject:     Subject text
  label:       Label (or l: shorthand), case-insensitive exact match
  has:         has:attachment - messages with attachments
  before:      Messages before date (YYYY-MM-DD)
  after:       Messages on or after date (YYYY-MM-DD)
  date:        A day (YYYY-MM-DD) or range (YYYY-MM-DD..YYYY-MM-DD)
  older_than:  Relative date (7d, 2w, 1m, 1y)
  newer_than:  Relative date
  body:        Text that must appear in the body

Bare words and "quoted phrases" match the subject, addresses and body.
Queries that only use metadata operators never read message bodies.

Examples:
  mboxbrowser search archive.mbox from:alice@example.com has:attachment
  mboxbrowser search archive.mbox subject:meeting after:2024-01-01
  mboxbrowser search archive.mbox project report newer_than:30d
  mboxbrowser search archive.mbox '"exact phrase"' label:INBOX`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Join all args to form the query (allows unquoted multi-term searches)
		queryStr := strings.Join(args[1:], " ")

		sess, _, err := openMailbox(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		res, err := sess.Search(cmd.Context(), queryStr, searchLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			return writeJSON(out, res)
		}
		if len(res.Emails) == 0 {
			fmt.Fprintln(out, "No messages found.")
			return nil
		}
		if err := writeEntryTable(out, res.Emails); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nShowing %d of %d results\n", len(res.Emails), res.TotalCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum results (default from config, 500)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
}

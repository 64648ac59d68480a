package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wesm/mboxbrowser/internal/mboxerr"
	"github.com/wesm/mboxbrowser/internal/session"
)

var (
	listOffset int
	listLimit  int
	listLabel  string
	listJSON   bool
)

var listCmd = &cobra.Command{
	Use:   "list <mbox-file>",
	Short: "List messages, newest first",
	Long: `List the messages of an MBOX file, newest first.

The INDEX column is the message number used by show, export-attachment
and the other commands.

Examples:
  mboxbrowser list archive.mbox --limit 20
  mboxbrowser list archive.mbox --offset 100 --limit 50
  mboxbrowser list archive.mbox --label Important --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if listOffset < 0 || listLimit < 0 {
			return mboxerr.Validation("--offset and --limit must not be negative")
		}
		sess, _, err := openMailbox(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		var entries []session.EmailEntry
		if listLabel != "" {
			entries, err = sess.GetEmailsByLabel(listLabel)
			if err == nil {
				entries = page(entries, listOffset, listLimit)
			}
		} else {
			entries, err = sess.GetEmails(listOffset, listLimit)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listJSON {
			return writeJSON(out, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No messages found.")
			return nil
		}
		if err := writeEntryTable(out, entries); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nShowing %d of %d messages\n", len(entries), sess.GetEmailCount())
		return nil
	},
}

// page returns entries[offset:offset+limit], clamped to the slice.
// offset and limit are non-negative.
func page(entries []session.EmailEntry, offset, limit int) []session.EmailEntry {
	if offset >= len(entries) {
		return []session.EmailEntry{}
	}
	return entries[offset:min(len(entries), offset+limit)]
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip this many messages")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum messages to list")
	listCmd.Flags().StringVarP(&listLabel, "label", "l", "", "Only messages with this label")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
}

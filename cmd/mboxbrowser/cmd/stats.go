package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats <mbox-file>",
	Short: "Show MBOX file statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, stats, err := openMailbox(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		out := cmd.OutOrStdout()
		if statsJSON {
			return writeJSON(out, stats)
		}

		fmt.Fprintf(out, "File: %s\n", stats.Path)
		fmt.Fprintf(out, "  Messages:         %d\n", stats.TotalMessages)
		fmt.Fprintf(out, "  With attachments: %d\n", stats.TotalWithAttachments)
		fmt.Fprintf(out, "  Labels:           %d\n", len(stats.Labels))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var labelsJSON bool

var labelsCmd = &cobra.Command{
	Use:   "labels <mbox-file>",
	Short: "List labels with message counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := openMailbox(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		labels := sess.GetLabels()
		out := cmd.OutOrStdout()
		if labelsJSON {
			return writeJSON(out, labels)
		}
		if len(labels) == 0 {
			fmt.Fprintln(out, "No labels found.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tMESSAGES")
		for _, l := range labels {
			fmt.Fprintf(tw, "%s\t%d\n", l.Label, l.Count)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
	labelsCmd.Flags().BoolVar(&labelsJSON, "json", false, "Output as JSON")
}

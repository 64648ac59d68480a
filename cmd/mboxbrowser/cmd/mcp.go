package cmd

import (
	"github.com/spf13/cobra"
	mcpserver "github.com/wesm/mboxbrowser/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <mbox-file>",
	Short: "Run an MCP server over stdio",
	Long: `Start an MCP (Model Context Protocol) server over stdio for one MBOX file.

MCP clients can then browse the file with the list_messages, get_message,
get_attachment, search_messages, get_labels and get_stats tools.

Example client configuration:
  {
    "mcpServers": {
      "mboxbrowser": {
        "command": "mboxbrowser",
        "args": ["mcp", "/path/to/archive.mbox"]
      }
    }
  }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol; indexing progress goes to stderr.
		sess, _, err := openMailbox(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		return mcpserver.Serve(cmd.Context(), sess, Version)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

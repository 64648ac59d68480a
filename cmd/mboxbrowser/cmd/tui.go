package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/wesm/mboxbrowser/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui <mbox-file>",
	Short: "Open the interactive terminal UI",
	Long: `Open an interactive terminal UI for browsing an MBOX file.

Navigation:
  ↑/k, ↓/j    Move up/down
  PgUp/PgDn   Page up/down
  g/G         First/last message
  Enter       View message
  n/p         Next/previous message (message view)
  Esc         Go back / clear filter / cancel search
  /           Search (Gmail-like syntax, see 'mboxbrowser search --help')
  L           Browse labels
  q           Quit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := openMailbox(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer sess.Close()

		model := tui.New(sess, tui.Options{Version: Version})
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run tui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

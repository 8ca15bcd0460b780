package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/SWHsz/LocalKnowledge/internal/adapters/driving/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your library in the terminal",
	Long: `Launch an interactive chat over the indexed papers.

Controls:
  Enter    - Send
  Ctrl+F   - Switch between asking and finding papers by title
  Ctrl+L   - Clear the transcript
  PgUp/Dn  - Scroll
  Esc      - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	// Recover to get stack traces out of the alternate screen
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	app, err := tui.NewApp(&tui.Ports{
		Query:   s,
		Library: s.Library(),
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	if err := app.WithContext(cmd.Context()).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspireCmd = &cobra.Command{
	Use:   "inspire",
	Short: "Show a motivational quote framed for you",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := journal.Inspiration(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("inspiration: %w", err)
		}
		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(out, msg)
		}
		fmt.Fprintf(out, "%s\n  %s\n",
			defaultTheme.completedStyle().Render("“"+msg.Text+"”"),
			defaultTheme.hintStyle().Render(msg.Source+" · "+msg.Category))
		return nil
	},
}

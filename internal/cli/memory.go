package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/knowledge"
	"github.com/spf13/cobra"
)

var (
	memoryMinScore float64
	memoryLimit    int
	memoryYes      bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage stored analyses",
	Long: `Inspect the local knowledge store.

Subcommands:
  list    List stored analyses (default)
  search  Find the best stored analysis for a text
  sync    Merge the local store with the cloud mirror
  reset   Delete every stored analysis

Examples:
  rafeeq memory
  rafeeq memory search "تعبت من الفيزياء" --min 0.3
  rafeeq memory sync
  rafeeq memory reset --yes`,
	RunE: runMemoryList,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	RunE:  runMemoryList,
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Find the best stored analysis for a text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySearch,
}

var memorySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge the local store with the cloud mirror",
	RunE:  runMemorySync,
}

var memoryResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored analysis",
	RunE:  runMemoryReset,
}

func init() {
	memoryCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 20, "max entries")
	memoryListCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 20, "max entries")
	memorySearchCmd.Flags().Float64Var(&memoryMinScore, "min", knowledge.StrictThreshold, "minimum similarity score (0-1)")
	memoryResetCmd.Flags().BoolVarP(&memoryYes, "yes", "y", false, "skip confirmation")

	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memorySyncCmd)
	memoryCmd.AddCommand(memoryResetCmd)
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	entries, err := journal.ListMemory(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("list memory: %w", err)
	}
	if memoryLimit > 0 && len(entries) > memoryLimit {
		entries = entries[:memoryLimit]
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No stored analyses.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(out, renderEntry(defaultTheme, e))
	}
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	if memoryMinScore < 0 || memoryMinScore > 1 {
		return fmt.Errorf("--min must be between 0 and 1")
	}
	query := strings.Join(args, " ")

	hit, ok, err := journal.SearchMemory(cmd.Context(), userID, query, memoryMinScore)
	if err != nil {
		return fmt.Errorf("search memory: %w", err)
	}

	out := cmd.OutOrStdout()
	if !ok {
		if asJSON {
			return printJSON(out, nil)
		}
		fmt.Fprintf(out, "No stored analysis scores above %.2f.\n", memoryMinScore)
		return nil
	}
	if asJSON {
		return printJSON(out, hit)
	}
	fmt.Fprintln(out, defaultTheme.hintStyle().Render(
		fmt.Sprintf("match %.2f  %s", hit.Match.Score, hit.Match.InputSummary)))
	fmt.Fprintln(out, renderRecord(defaultTheme, hit.Record))
	return nil
}

func runMemorySync(cmd *cobra.Command, args []string) error {
	err := journal.SyncMemory(cmd.Context(), userID)
	if errors.Is(err, knowledge.ErrNoRemote) {
		return fmt.Errorf("no cloud mirror configured (set SURREALDB_URL)")
	}
	if err != nil {
		return fmt.Errorf("sync memory: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.completedStyle().Render("✓ Synced"))
	return nil
}

func runMemoryReset(cmd *cobra.Command, args []string) error {
	if !memoryYes {
		return fmt.Errorf("refusing to delete stored analyses for %q without --yes", userID)
	}
	if err := journal.ResetMemory(cmd.Context(), userID); err != nil {
		return fmt.Errorf("reset memory: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.completedStyle().Render("✓ Memory cleared"))
	return nil
}

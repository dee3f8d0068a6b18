package cmd

import (
	"fmt"
	"sort"

	"github.com/floatplane/floatchat/internal/ui"
	"github.com/spf13/cobra"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Inspect unsent chat input",
	Long: `Drafts hold the text and attachments you had not sent when you left a
chat. They are stored locally (see drafts.backend in the config).`,
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved drafts",
	Args:  cobra.NoArgs,
	RunE:  runDraftsList,
}

var draftsClearAll bool

var draftsClearCmd = &cobra.Command{
	Use:               "clear [session-id]",
	Short:             "Delete a draft, or all of them with --all",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runDraftsClear,
}

func init() {
	draftsClearCmd.Flags().BoolVar(&draftsClearAll, "all", false, "Delete every draft")
	draftsCmd.AddCommand(draftsListCmd)
	draftsCmd.AddCommand(draftsClearCmd)
	rootCmd.AddCommand(draftsCmd)
}

func runDraftsList(cmd *cobra.Command, args []string) error {
	store, err := openDrafts()
	if err != nil {
		return err
	}
	defer store.Close()

	all, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list drafts: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(all) == 0 {
		fmt.Fprintln(out, "No drafts.")
		return nil
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d := all[id]
		line := ui.Truncate(firstLine(d.Message), 50)
		if n := len(d.FileIDs); n > 0 {
			line += fmt.Sprintf("  %s %d", ui.FileIcon, n)
		}
		fmt.Fprintf(out, "%s  %s\n", ui.PadRight(id, 36), line)
	}
	return nil
}

func runDraftsClear(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !draftsClearAll {
		return fmt.Errorf("give a session id or --all")
	}
	store, err := openDrafts()
	if err != nil {
		return err
	}
	defer store.Close()

	if draftsClearAll {
		if err := store.ClearAll(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear drafts: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All drafts deleted.")
		return nil
	}
	if err := store.Clear(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Draft for %s deleted.\n", args[0])
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}

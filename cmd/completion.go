package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// completeSessionIDs completes a session id as the first positional
// argument, showing titles as descriptions.
func completeSessionIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return sessionCompletions(cmd, toComplete)
}

// completeSessionFlag completes the value of a --session flag.
func completeSessionFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return sessionCompletions(cmd, toComplete)
}

func sessionCompletions(cmd *cobra.Command, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Completion bypasses the root pre-run hook.
	if err := setup(); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	client, err := newClient()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	list, err := client.ListSessions(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var completions []string
	for _, s := range list.Sessions {
		if strings.HasPrefix(s.ID, toComplete) {
			completions = append(completions, s.ID+"\t"+s.Title)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

package cmd

import (
	"fmt"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var modelsYAML bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the server offers",
	Long: `List the models the server offers for new chats.

When the server cannot be reached the built-in defaults are shown.

Examples:
  floatchat models
  floatchat models --yaml`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsYAML, "yaml", false, "Output as YAML")
}

func runModels(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	out := cmd.OutOrStdout()
	models, err := client.ListModels(ctx)
	fallback := err != nil
	if fallback {
		logger.Warn("list models failed", zap.Error(err))
		models = api.DefaultModels
	}

	if modelsYAML {
		return yaml.NewEncoder(out).Encode(api.ModelList{Models: models})
	}
	if len(models) == 0 {
		fmt.Fprintln(out, "No models available.")
		return nil
	}

	if fallback {
		fmt.Fprintf(cmd.ErrOrStderr(), "Could not reach %s (%v); showing defaults.\n\n", client.Server(), err)
	}
	styles := ui.DefaultStyles()
	current := cfg.Model.Provider + "/" + cfg.Model.Name
	for _, m := range models {
		key := m.Provider + "/" + m.Model
		line := fmt.Sprintf("  %-40s %s", key, m.DisplayName)
		if key == current {
			line = styles.Highlighted.Render(fmt.Sprintf("* %-40s %s", key, m.DisplayName))
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, styles.Muted.Render("\nUse one with --model provider/model, or set model.provider and model.name in the config."))
	return nil
}

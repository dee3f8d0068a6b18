package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/draft"
	"github.com/floatplane/floatchat/internal/exitcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func newClient() (*api.Client, error) {
	return api.NewClient(cfg.Server.URL, cfg.Server.Token, nil)
}

// requestContext bounds a single REST call by server.timeout. Streams use
// the command context directly.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if cfg.Server.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cfg.Server.Timeout)
}

func openDrafts() (draft.Store, error) {
	store, err := draft.Open(draft.Config{Backend: cfg.Drafts.Backend, Path: cfg.Drafts.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to open drafts: %w", err)
	}
	return store, nil
}

// fetchModels returns the server's models, or the built-in list when the
// server cannot be asked.
func fetchModels(cmd *cobra.Command, client *api.Client) []api.ModelInfo {
	ctx, cancel := requestContext(cmd)
	defer cancel()
	models, err := client.ListModels(ctx)
	if err != nil {
		logger.Warn("list models failed, using defaults", zap.Error(err))
		return api.DefaultModels
	}
	return models
}

// preferredModel picks the configured model, or flag when set. flag is
// "provider/model", or a bare model name looked up in models.
func preferredModel(models []api.ModelInfo, flag string) (api.ModelInfo, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		return parseModelFlag(flag, models)
	}
	for _, m := range models {
		if m.Provider == cfg.Model.Provider && m.Model == cfg.Model.Name {
			return m, nil
		}
	}
	return api.ModelInfo{Provider: cfg.Model.Provider, Model: cfg.Model.Name}, nil
}

func parseModelFlag(flag string, models []api.ModelInfo) (api.ModelInfo, error) {
	for _, m := range models {
		if m.Provider+"/"+m.Model == flag {
			return m, nil
		}
	}
	var matches []api.ModelInfo
	for _, m := range models {
		if m.Model == flag {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		// Model ids may themselves contain a slash (gemini/gemini-2.5-flash),
		// so only the first segment is the provider.
		provider, model, ok := strings.Cut(flag, "/")
		if !ok || provider == "" || model == "" {
			return api.ModelInfo{}, fmt.Errorf("unknown model %q (use provider/model)", flag)
		}
		return api.ModelInfo{Provider: provider, Model: model}, nil
	default:
		return api.ModelInfo{}, fmt.Errorf("model %q is offered by several providers (use provider/model)", flag)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w when it is a terminal, else fallback.
func terminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok || !isTerminal(f) {
		return fallback
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}

// interactive reports whether prompts can be shown.
func interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// promptError maps an aborted prompt to the cancel exit code.
func promptError(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return exitcode.Cancel()
	}
	return err
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/exitcode"
	"github.com/floatplane/floatchat/internal/panel"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/floatplane/floatchat/internal/tui/chat"
	"github.com/floatplane/floatchat/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	chatContinue bool
	chatPick     bool
	chatMessage  string
	chatModel    string
)

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat. With a session id the chat is resumed,
otherwise a new one is created.

Examples:
  floatchat chat
  floatchat chat -c                         # continue the most recent chat
  floatchat chat --pick                     # choose a chat from a list
  floatchat chat -m "review my plan"        # new chat titled and started with a message
  floatchat chat --model anthropic/claude-sonnet-4-20250514

Keyboard shortcuts:
  Enter              - Send message
  Ctrl+J, Alt+Enter  - Insert newline
  Esc                - Cancel the streaming reply
  Ctrl+N             - New chat
  Ctrl+O             - Switch chat
  Ctrl+L             - Choose model for new chats
  Ctrl+C             - Quit

Slash commands:
  /help              - Show all commands
  /attach <path>     - Upload and attach files
  /title <text>      - Rename this chat
  /quit              - Exit chat`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runChat,
}

func init() {
	chatCmd.Flags().BoolVarP(&chatContinue, "continue", "c", false, "Continue the most recently updated chat")
	chatCmd.Flags().BoolVar(&chatPick, "pick", false, "Choose a chat to resume")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send this message once the chat opens")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Model for a new chat (provider/model)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	models := fetchModels(cmd, client)
	model, err := preferredModel(models, chatModel)
	if err != nil {
		return err
	}

	sess, err := chooseChatSession(cmd, client, args, model)
	if err != nil {
		return err
	}

	drafts, err := openDrafts()
	if err != nil {
		return err
	}
	defer drafts.Close()

	ctx := cmd.Context()
	m := chat.New(ctx, chat.Options{
		Backend:        client,
		Starter:        stream.NewController(client, logger),
		Drafts:         drafts,
		Logger:         logger,
		Session:        *sess,
		Model:          model,
		Theme:          ui.ThemeFromConfig(cfg.Theme),
		Telemetry:      chat.TelemetryFromEnv(os.Getenv),
		InitialMessage: chatMessage,
	})
	logger.Info("chat started", zap.String("session_id", sess.ID), zap.String("model", model.Model))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			// A signal stops the program without a quit message.
			m.Shutdown(ctx)
			return exitcode.Cancel()
		}
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}

func chooseChatSession(cmd *cobra.Command, client *api.Client, args []string, model api.ModelInfo) (*api.Session, error) {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if len(args) == 1 {
		return client.GetSession(ctx, args[0])
	}

	if chatContinue || chatPick {
		list, err := client.ListSessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		switch {
		case len(list.Sessions) == 0:
			// Nothing to resume; fall through to a new chat.
		case chatPick:
			if !interactive() {
				return nil, fmt.Errorf("--pick needs a terminal")
			}
			id, err := ui.SelectSession(list.Sessions)
			if err != nil {
				return nil, promptError(err)
			}
			for i := range list.Sessions {
				if list.Sessions[i].ID == id {
					return &list.Sessions[i], nil
				}
			}
		default:
			return &list.Sessions[0], nil
		}
	}

	return client.CreateSession(ctx, api.SessionCreate{
		Title:       panel.TitleFromMessage(chatMessage),
		LLMProvider: model.Provider,
		LLMModel:    model.Model,
	})
}

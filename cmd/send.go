package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/panel"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/spf13/cobra"
)

var (
	sendSession string
	sendAttach  []string
	sendRender  bool
	sendModel   string
)

var sendCmd = &cobra.Command{
	Use:   "send [message...]",
	Short: "Send one message and print the reply",
	Long: `Send a message and stream the reply to stdout.

Without --session a new chat is created, titled after the message. When no
message is given it is read from stdin.

Examples:
  floatchat send "what is a goroutine?"
  floatchat send -S <session-id> "and a channel?"
  floatchat send -a notes.md "summarize this"
  git diff | floatchat send --render`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendSession, "session", "S", "", "Session to continue")
	sendCmd.Flags().StringSliceVarP(&sendAttach, "attach", "a", nil, "Files or globs to attach (pdf, txt, md)")
	sendCmd.Flags().BoolVarP(&sendRender, "render", "r", false, "Render the finished reply as markdown instead of streaming raw text")
	sendCmd.Flags().StringVar(&sendModel, "model", "", "Model for a new chat (provider/model)")
	_ = sendCmd.RegisterFlagCompletionFunc("session", completeSessionFlag)
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	message := joinMessage(args)
	if message == "" && !isTerminal(os.Stdin) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		message = joinMessage([]string{string(data)})
	}
	if message == "" {
		return fmt.Errorf("message is empty")
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	var sess *api.Session
	if sendSession != "" {
		sess, err = client.GetSession(ctx, sendSession)
	} else {
		var model api.ModelInfo
		model, err = preferredModel(fetchModels(cmd, client), sendModel)
		if err != nil {
			return err
		}
		sess, err = client.CreateSession(ctx, api.SessionCreate{
			Title:       panel.TitleFromMessage(message),
			LLMProvider: model.Provider,
			LLMModel:    model.Model,
		})
	}
	if err != nil {
		return err
	}

	files, err := uploadAttachments(ctx, client, sess.ID, sendAttach)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := &replyPrinter{out: out, render: sendRender, width: terminalWidth(out, 80)}
	req := api.ChatRequest{SessionID: sess.ID, Message: message, FilesMetadata: files}
	if _, err := streamReply(cmd.Context(), stream.NewController(client, logger), req, printer); err != nil {
		return err
	}

	if sendSession == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sess.ID)
	}
	return nil
}

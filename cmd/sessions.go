package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/exitcode"
	"github.com/floatplane/floatchat/internal/panel"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/floatplane/floatchat/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chats",
	Long: `List, create, show, rename, clone, delete and export chats.

Examples:
  floatchat sessions                        # List chats, most recent first
  floatchat sessions new "first message"    # New chat titled after the message
  floatchat sessions show <id>
  floatchat sessions rename <id> "Trip planning"
  floatchat sessions clone <id>
  floatchat sessions delete <id>
  floatchat sessions export <id> [path.md]`,
	RunE: runSessionsList, // Default to list
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	RunE:  runSessionsList,
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new [message...]",
	Short: "Create a chat, optionally sending a first message",
	RunE:  runSessionsNew,
}

var sessionsShowCmd = &cobra.Command{
	Use:               "show <id>",
	Short:             "Show a chat and its messages",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runSessionsShow,
}

var sessionsRenameCmd = &cobra.Command{
	Use:               "rename <id> [title...]",
	Short:             "Rename a chat",
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runSessionsRename,
}

var sessionsCloneCmd = &cobra.Command{
	Use:               "clone <id>",
	Short:             "Copy a chat with its messages",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runSessionsClone,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:               "delete <id>",
	Short:             "Delete a chat and its files",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runSessionsDelete,
}

var sessionsExportCmd = &cobra.Command{
	Use:               "export <id> [path]",
	Short:             "Export a chat as markdown",
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runSessionsExport,
}

// Flags
var (
	sessionsLimit  int
	sessionsYAML   bool
	sessionsRaw    bool
	sessionsModel  string
	sessionsTitle  string
	sessionsAttach []string
	sessionsYes    bool
)

func init() {
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of chats to list (0 for all)")
	sessionsListCmd.Flags().BoolVar(&sessionsYAML, "yaml", false, "Output as YAML")

	sessionsNewCmd.Flags().StringVar(&sessionsModel, "model", "", "Model (provider/model); prompts when omitted in a terminal")
	sessionsNewCmd.Flags().StringVar(&sessionsTitle, "title", "", "Title (default: first 50 characters of the message)")
	sessionsNewCmd.Flags().StringSliceVarP(&sessionsAttach, "attach", "a", nil, "Files or globs to attach to the first message")

	sessionsShowCmd.Flags().BoolVar(&sessionsYAML, "yaml", false, "Output as YAML")
	sessionsShowCmd.Flags().BoolVar(&sessionsRaw, "raw", false, "Print markdown without rendering")

	sessionsDeleteCmd.Flags().BoolVarP(&sessionsYes, "yes", "y", false, "Do not ask for confirmation")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsNewCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsCloneCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)

	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	list, err := client.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions := list.Sessions
	if sessionsLimit > 0 && len(sessions) > sessionsLimit {
		sessions = sessions[:sessionsLimit]
	}

	out := cmd.OutOrStdout()
	if sessionsYAML {
		return yaml.NewEncoder(out).Encode(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No chats found.")
		return nil
	}
	printSessionTable(out, sessions, time.Now())
	if list.Total > len(sessions) {
		fmt.Fprintf(out, "\n%d of %d chats shown.\n", len(sessions), list.Total)
	}
	return nil
}

// printSessionTable writes one row per session. Columns are padded by
// display width so wide titles line up.
func printSessionTable(w io.Writer, sessions []api.Session, now time.Time) {
	const (
		idWidth      = 36
		modelWidth   = 24
		updatedWidth = 10
		titleWidth   = 40
	)
	styles := ui.DefaultStyles()
	fmt.Fprintln(w, styles.TableHeader.Render(fmt.Sprintf("%s %s %s %s",
		ui.PadRight("ID", idWidth),
		ui.PadRight("Model", modelWidth),
		ui.PadRight("Updated", updatedWidth),
		"Title")))
	fmt.Fprintln(w, strings.Repeat("-", idWidth+modelWidth+updatedWidth+titleWidth+3))
	for _, s := range sessions {
		fmt.Fprintf(w, "%s %s %s %s\n",
			ui.PadRight(s.ID, idWidth),
			ui.PadRight(ui.Truncate(s.LLMModel, modelWidth), modelWidth),
			ui.PadRight(formatRelativeTime(s.UpdatedAt.Time, now), updatedWidth),
			ui.Truncate(s.Title, titleWidth))
	}
}

func runSessionsNew(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	models := fetchModels(cmd, client)
	model, err := preferredModel(models, sessionsModel)
	if err != nil {
		return err
	}
	if sessionsModel == "" && interactive() && len(models) > 0 {
		if model, err = ui.SelectModel(models, model); err != nil {
			return promptError(err)
		}
	}

	message := joinMessage(args)
	title := strings.TrimSpace(sessionsTitle)
	if title == "" {
		title = panel.TitleFromMessage(message)
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	sess, err := client.CreateSession(ctx, api.SessionCreate{
		Title:       title,
		LLMProvider: model.Provider,
		LLMModel:    model.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	logger.Info("session created", zap.String("session_id", sess.ID), zap.String("model", sess.LLMModel))

	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()
	fmt.Fprintln(out, styles.FormatResult(true, fmt.Sprintf("Created %q (%s)", sess.Title, sess.ID)))
	if message == "" {
		return nil
	}

	files, err := uploadAttachments(ctx, client, sess.ID, sessionsAttach)
	if err != nil {
		return err
	}
	printer := &replyPrinter{out: out, render: isTerminal(os.Stdout), width: terminalWidth(out, 80)}
	req := api.ChatRequest{SessionID: sess.ID, Message: message, FilesMetadata: files}
	_, err = streamReply(cmd.Context(), stream.NewController(client, logger), req, printer)
	return err
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	sess, err := client.GetSession(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	messages, err := client.GetMessages(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to get messages: %w", err)
	}

	out := cmd.OutOrStdout()
	if sessionsYAML {
		data := struct {
			Session  *api.Session  `yaml:"session"`
			Messages []api.Message `yaml:"messages"`
		}{sess, messages}
		return yaml.NewEncoder(out).Encode(data)
	}

	md := transcriptMarkdown(sess, messages)
	if sessionsRaw || !isTerminal(os.Stdout) {
		fmt.Fprint(out, md)
		return nil
	}
	fmt.Fprintln(out, ui.RenderMarkdown(md, terminalWidth(out, 80)))
	return nil
}

func runSessionsRename(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	title := joinMessage(args[1:])
	if title == "" {
		if !interactive() {
			return fmt.Errorf("title is required")
		}
		ctx, cancel := requestContext(cmd)
		sess, err := client.GetSession(ctx, args[0])
		cancel()
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		if title, err = ui.PromptText("New title", sess.Title); err != nil {
			return promptError(err)
		}
		if title = strings.TrimSpace(title); title == "" {
			return fmt.Errorf("title is required")
		}
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	sess, err := client.UpdateTitle(ctx, args[0], title)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.DefaultStyles().FormatResult(true, fmt.Sprintf("Renamed to %q", sess.Title)))
	return nil
}

func runSessionsClone(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	clone, err := client.CloneSession(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to clone session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.DefaultStyles().FormatResult(true, fmt.Sprintf("Created %q (%s)", clone.Title, clone.ID)))
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	id := args[0]

	if !sessionsYes {
		if !interactive() {
			return fmt.Errorf("refusing to delete without confirmation (use --yes)")
		}
		ok, err := ui.Confirm(fmt.Sprintf("Delete chat %s and its files?", id))
		if err != nil {
			return promptError(err)
		}
		if !ok {
			return exitcode.Declined("Not deleted.")
		}
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	if err := client.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	// The draft belongs to the chat; drop it too.
	if drafts, err := openDrafts(); err == nil {
		if err := drafts.Clear(ctx, id); err != nil {
			logger.Warn("clear draft failed", zap.String("session_id", id), zap.Error(err))
		}
		drafts.Close()
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.DefaultStyles().FormatResult(true, "Deleted chat "+id))
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	sess, err := client.GetSession(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	messages, err := client.GetMessages(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to get messages: %w", err)
	}

	// Determine output path
	var outputPath string
	if len(args) > 1 {
		outputPath = args[1]
	} else {
		outputPath = exportFilename(sess)
	}

	if err := os.WriteFile(outputPath, []byte(transcriptMarkdown(sess, messages)), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(messages), outputPath)
	return nil
}

// transcriptMarkdown renders a chat as a markdown document.
func transcriptMarkdown(sess *api.Session, messages []api.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sess.Title)
	fmt.Fprintf(&b, "**Session:** %s  \n", sess.ID)
	fmt.Fprintf(&b, "**Model:** %s/%s  \n", sess.LLMProvider, sess.LLMModel)
	if !sess.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Created:** %s  \n", sess.CreatedAt.Time.Format(time.RFC3339))
	}
	b.WriteString("\n---\n\n")

	if len(messages) == 0 {
		b.WriteString("_No messages yet._\n")
		return b.String()
	}
	for _, msg := range messages {
		if msg.Role == api.RoleUser {
			b.WriteString("## You\n\n")
		} else {
			b.WriteString("## Assistant\n\n")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
		for _, f := range msg.Files() {
			fmt.Fprintf(&b, "\n%s `%s` (%s)\n", ui.FileIcon, f.Filename, f.FileType)
		}
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

// exportFilename derives a file name from the chat title.
func exportFilename(sess *api.Session) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, strings.TrimSpace(sess.Title))
	if name == "" {
		name = sess.ID
	}
	return name + ".md"
}

// formatRelativeTime returns a human-readable relative time string
func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	dur := now.Sub(t)
	switch {
	case dur < time.Minute:
		return "just now"
	case dur < time.Hour:
		return fmt.Sprintf("%dm ago", int(dur.Minutes()))
	case dur < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(dur.Hours()))
	case dur < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(dur.Hours()/24))
	default:
		return t.Local().Format("Jan 2")
	}
}

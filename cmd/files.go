package cmd

import (
	"fmt"
	"strings"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/attach"
	"github.com/floatplane/floatchat/internal/ui"
	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage files uploaded to a chat",
	Long: `Upload, list and delete the files of a chat.

Accepted types are pdf, txt and md, up to 10 MB each and 3 files per chat.

Examples:
  floatchat files list <session-id>
  floatchat files upload <session-id> report.pdf "notes/**/*.md"
  floatchat files delete <session-id> report.pdf`,
}

var filesListCmd = &cobra.Command{
	Use:               "list <session-id>",
	Short:             "List files",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSessionIDs,
	RunE:              runFilesList,
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <session-id> <path|glob>...",
	Short: "Upload files",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runFilesUpload,
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <session-id> <file-id|name>",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(2),
	RunE:  runFilesDelete,
}

func init() {
	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesUploadCmd)
	filesCmd.AddCommand(filesDeleteCmd)
	rootCmd.AddCommand(filesCmd)
}

func runFilesList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	files, err := client.ListFiles(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(out, "No files.")
		return nil
	}
	for _, f := range files {
		fmt.Fprintf(out, "%s  %s %s\n", f.ID, ui.PadRight(ui.Truncate(f.Filename, 40), 40), attach.FormatFileSize(f.FileSize))
	}
	fmt.Fprintf(out, "\n%d of %d files.\n", len(files), attach.MaxFilesPerSession)
	return nil
}

func runFilesUpload(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	uploaded, err := uploadAttachments(ctx, client, args[0], args[1:])
	if err != nil {
		return err
	}
	styles := ui.DefaultStyles()
	for _, f := range uploaded {
		fmt.Fprintln(cmd.OutOrStdout(), styles.FormatResult(true, "Uploaded "+f.Filename))
	}
	return nil
}

func runFilesDelete(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	sessionID := args[0]
	files, err := client.ListFiles(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	target, err := findFile(files, args[1])
	if err != nil {
		return err
	}
	if err := client.DeleteFile(ctx, sessionID, target.ID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.DefaultStyles().FormatResult(true, "Deleted "+target.Filename))
	return nil
}

// findFile matches ref against file ids first, then names.
func findFile(files []api.FileInfo, ref string) (*api.FileInfo, error) {
	for i := range files {
		if files[i].ID == ref {
			return &files[i], nil
		}
	}
	var matches []*api.FileInfo
	for i := range files {
		if strings.EqualFold(files[i].Filename, ref) {
			matches = append(matches, &files[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no file %q in this chat", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%d files are named %q; use the file id", len(matches), ref)
	}
}

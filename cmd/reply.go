package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/floatplane/floatchat/internal/api"
	"github.com/floatplane/floatchat/internal/attach"
	"github.com/floatplane/floatchat/internal/exitcode"
	"github.com/floatplane/floatchat/internal/stream"
	"github.com/floatplane/floatchat/internal/ui"
	"go.uber.org/zap"
)

// replyPrinter writes a streamed reply to out. Raw mode prints deltas as
// they arrive; otherwise the finished reply is rendered as markdown.
type replyPrinter struct {
	out    io.Writer
	render bool
	width  int

	failure string
	final   *api.Message
	wrote   bool
}

func (p *replyPrinter) callbacks() stream.Callbacks {
	return stream.Callbacks{
		OnContentDelta: func(chunk string) {
			if p.render {
				return
			}
			fmt.Fprint(p.out, chunk)
			p.wrote = true
		},
		OnDone: func(m api.Message) {
			p.final = &m
			if p.render {
				fmt.Fprintln(p.out, ui.RenderMarkdown(m.Content, p.width))
			} else if p.wrote {
				fmt.Fprintln(p.out)
			}
		},
		OnError: func(detail string) {
			p.failure = detail
			if p.wrote {
				fmt.Fprintln(p.out)
			}
		},
	}
}

// streamReply sends req and prints the reply. It returns the persisted
// assistant message.
func streamReply(ctx context.Context, starter stream.Starter, req api.ChatRequest, p *replyPrinter) (*api.Message, error) {
	h := starter.Start(ctx, req)
	h.Consume(p.callbacks())

	if ctx.Err() != nil {
		return nil, exitcode.Cancel()
	}
	if p.failure != "" {
		return nil, fmt.Errorf("reply failed: %s", p.failure)
	}
	if p.final == nil {
		return nil, stream.ErrIncomplete
	}
	return p.final, nil
}

// uploadAttachments validates every pattern before uploading anything and
// returns the metadata to send with the message.
func uploadAttachments(ctx context.Context, client *api.Client, sessionID string, patterns []string) ([]api.FileMetadata, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	paths, err := attach.Expand(patterns)
	if err != nil {
		return nil, err
	}
	existing, err := client.ListFiles(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	candidates, err := attach.Plan(paths, len(existing))
	if err != nil {
		return nil, err
	}

	meta := make([]api.FileMetadata, 0, len(candidates))
	for _, c := range candidates {
		info, err := client.UploadFile(ctx, sessionID, c.Path)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", c.Name, err)
		}
		logger.Info("uploaded file",
			zap.String("session_id", sessionID),
			zap.String("file_id", info.ID),
			zap.Int64("size", info.FileSize))
		meta = append(meta, info.Metadata())
	}
	return meta, nil
}

func joinMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/floatplane/floatchat/internal/mockserver"
	"github.com/spf13/cobra"
)

var (
	mockAddr       string
	mockToken      string
	mockChunkDelay time.Duration
	mockChunkSize  int
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run an in-memory chat server for offline development",
	Long: `Run a local server that implements the chat API in memory. Replies echo
the message back, streamed in small chunks. Nothing is persisted.

Examples:
  floatchat mock-server
  floatchat mock-server --addr 127.0.0.1:9000 --chunk-delay 80ms
  floatchat --server http://127.0.0.1:9000 chat`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", "127.0.0.1:8000", "Listen address")
	mockServerCmd.Flags().StringVar(&mockToken, "require-token", "", "Require this bearer token")
	mockServerCmd.Flags().DurationVar(&mockChunkDelay, "chunk-delay", 30*time.Millisecond, "Pause between streamed chunks")
	mockServerCmd.Flags().IntVar(&mockChunkSize, "chunk-size", 10, "Approximate bytes per streamed chunk")
	rootCmd.AddCommand(mockServerCmd)
}

func runMockServer(cmd *cobra.Command, args []string) error {
	srv := mockserver.New(mockserver.Options{
		Token:      mockToken,
		ChunkDelay: mockChunkDelay,
		ChunkSize:  mockChunkSize,
		Logger:     logger,
	})
	out := cmd.OutOrStdout()
	return srv.ListenAndServe(cmd.Context(), mockAddr, func(addr net.Addr) {
		fmt.Fprintf(out, "Mock server listening on http://%s (Ctrl+C to stop)\n", addr)
	})
}

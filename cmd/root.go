package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/floatplane/floatchat/internal/config"
	"github.com/floatplane/floatchat/internal/exitcode"
	"github.com/floatplane/floatchat/internal/logging"
	"github.com/floatplane/floatchat/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/floatchat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Server URL (overrides server.url)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token (overrides server.token)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error or off")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	rootCmd.PersistentFlags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")
}

var rootCmd = &cobra.Command{
	Use:   "floatchat",
	Short: "Chat with LLMs through a floatchat server",
	Long: `floatchat is a terminal client for a floatchat chat server. Replies
stream in as they are generated; unsent input is kept per chat.

Examples:
  floatchat chat                          # start a new chat
  floatchat chat -c                       # continue the most recent chat
  floatchat chat -m "explain this error"  # start a chat with a first message
  floatchat send "one-off question"       # print a reply to stdout
  floatchat sessions                      # list chats
  floatchat mock-server                   # offline server for development`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := startProfiling(); err != nil {
			return err
		}
		return setup()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = logger.Sync()
		return stopProfiling()
	},
}

var (
	configPath   string
	serverFlag   string
	tokenFlag    string
	logLevelFlag string

	cpuProfile     string
	memProfile     string
	cpuProfileFile *os.File
)

// Populated by setup before any command runs.
var (
	cfg    = config.Default()
	logger = zap.NewNop()
)

func setup() error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serverFlag != "" {
		loaded.Server.URL = serverFlag
	}
	if tokenFlag != "" {
		loaded.Server.Token = tokenFlag
	}
	if logLevelFlag != "" {
		loaded.Log.Level = logLevelFlag
	}
	cfg = loaded

	l, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func startProfiling() error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return err
		}
		cpuProfileFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
	}
	return nil
}

func stopProfiling() error {
	if cpuProfileFile != nil {
		pprof.StopCPUProfile()
		cpuProfileFile.Close()
	}
	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return err
		}
	}
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exitErr exitcode.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code != exitcode.Cancelled && exitErr.Message != "" {
			fmt.Fprintln(os.Stderr, exitErr.Message)
		}
		os.Exit(exitErr.Code)
	}
	styles := ui.NewStyles(os.Stderr)
	fmt.Fprintln(os.Stderr, styles.FormatResult(false, err.Error()))
	os.Exit(exitcode.Error)
}

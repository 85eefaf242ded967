package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"

	"github.com/jward/rulesls/internal/checker"
	"github.com/jward/rulesls/internal/config"
	"github.com/jward/rulesls/internal/lsp"
)

var (
	flagSyncType       int
	flagNotifyInit     bool
	flagEngine         string
	flagIncludeMembers bool
	flagWatch          bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server on stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	defaults := config.DefaultSettings()
	serveCmd.Flags().IntVar(&flagSyncType, "sync-type", defaults.SyncType, "text document sync: 1 (full) or 2 (incremental)")
	serveCmd.Flags().BoolVar(&flagNotifyInit, "notify-init", false, "show a message when initialization completes")
	serveCmd.Flags().StringVar(&flagEngine, "engine", defaults.EngineBinary, "engine binary for rule checks; empty disables them")
	serveCmd.Flags().BoolVar(&flagIncludeMembers, "include-members", false, "list type members in document symbols")
	serveCmd.Flags().BoolVar(&flagWatch, "watch", false, "reload closed rule files when they change on disk")
}

func serveSettings() (config.Settings, error) {
	s := config.Settings{
		NThreads:       flagNThreads,
		NotifyInit:     flagNotifyInit,
		SyncType:       flagSyncType,
		EngineBinary:   flagEngine,
		IncludeMembers: flagIncludeMembers,
		Watch:          flagWatch,
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := serveSettings()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	var engine *checker.Engine
	if settings.EngineBinary != "" {
		engine = &checker.Engine{Binary: settings.EngineBinary}
	}
	srv := lsp.NewServer(lsp.Options{
		Settings: settings,
		Logger:   logger,
		Version:  versioninfo.Short(),
		Engine:   engine,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("rulesls serving on stdio", "version", versioninfo.Short(), "sync_type", settings.SyncType)
	return srv.Serve(ctx, lsp.Stdio(os.Stdin, os.Stdout))
}

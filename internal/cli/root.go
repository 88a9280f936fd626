// Package cli implements relayctl, a terminal client that runs chat turns
// through the same pipeline as the relay server.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"avatar-relay/internal/config"
)

type rootOptions struct {
	upstreamURL string
	token       string
	dbPath      string
	logLevel    string

	cfg *config.Config
}

// NewRootCmd builds the relayctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "relayctl",
		Short:         "Run chat turns against the AI chat backend",
		Long:          `relayctl sends single-provider and group chat queries to the chat backend and prints provider progress as it arrives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.upstreamURL, "upstream", "", "chat backend URL (default: UPSTREAM_URL)")
	flags.StringVar(&opts.token, "token", "", "bearer token for the chat backend (default: UPSTREAM_TOKEN)")
	flags.StringVar(&opts.dbPath, "db", ":memory:", "SQLite database for chat history")
	flags.StringVar(&opts.logLevel, "log-level", "WARN", "log level written to stderr")

	rootCmd.AddCommand(newGroupCmd(opts), newChatCmd(opts), newProvidersCmd(opts))
	return rootCmd
}

// Execute runs relayctl and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.upstreamURL != "" {
		cfg.UpstreamURL = o.upstreamURL
	}
	if o.token != "" {
		cfg.UpstreamToken = o.token
	}
	cfg.DatabasePath = o.dbPath
	cfg.LogLevel = o.logLevel
	o.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(o.logLevel))); err != nil {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

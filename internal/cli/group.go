package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"avatar-relay/internal/app"
	"avatar-relay/internal/service"
)

type groupOptions struct {
	providers []string
	strategy  string
	system    string
}

func newGroupCmd(root *rootOptions) *cobra.Command {
	opts := &groupOptions{}
	cmd := &cobra.Command{
		Use:   "group [flags] <query>",
		Short: "Ask several providers at once",
		Long:  `Runs one group chat turn. Provider progress is printed as it arrives, followed by every provider's answer.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroup(cmd, root, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringSliceVar(&opts.providers, "providers", nil, "providers taking part (default: stored group settings)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "reply strategy: exclusive, discussion or supplement (default: stored group settings)")
	cmd.Flags().StringVar(&opts.system, "system", "", "system prompt for this turn")
	return cmd
}

func runGroup(cmd *cobra.Command, root *rootOptions, opts *groupOptions, query string) error {
	a, err := app.NewApp(root.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	req := &service.GroupMessageRequest{Query: query}
	flags := cmd.Flags()
	if flags.Changed("providers") || flags.Changed("strategy") || flags.Changed("system") {
		stored, err := a.Settings.InitAndGet(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load group settings: %w", err)
		}
		override := *stored
		if flags.Changed("providers") {
			override.SelectedProviders = opts.providers
		}
		if flags.Changed("strategy") {
			override.ReplyStrategy = opts.strategy
		}
		if flags.Changed("system") {
			override.SystemPrompt = opts.system
		}
		req.GroupSettings = &override
	}

	started := time.Now()
	turn, err := a.Chats.HandleGroupMessage(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for n := range turn.Events() {
		if line := renderProgress(n); line != "" {
			fmt.Fprintln(out, line)
		}
	}

	result, turnErr := turn.Wait()
	if result != nil {
		for _, msg := range a.Chats.Messages() {
			if msg.ID == result.ContainerID {
				fmt.Fprintln(out, renderSummary(msg, time.Since(started)))
				break
			}
		}
	}
	return turnErr
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"avatar-relay/internal/app"
	"avatar-relay/internal/model"
	"avatar-relay/internal/service"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "chat [flags] <query>",
		Short: "Ask a single provider",
		Long:  `Streams the answer of one provider to stdout as it is generated.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp(root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			streamChan := make(chan model.StreamResponse)
			go a.Chats.HandleMessage(cmd.Context(), &service.CreateMessageRequest{
				Query:    strings.Join(args, " "),
				Provider: provider,
			}, streamChan)

			out := cmd.OutOrStdout()
			var streamErr error
			for chunk := range streamChan {
				if chunk.Error != "" {
					streamErr = errors.New(chunk.Error)
					continue
				}
				fmt.Fprint(out, chunk.Content)
			}
			fmt.Fprintln(out)
			return streamErr
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider to ask (default: DEFAULT_PROVIDER)")
	return cmd
}

func newProvidersCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the enabled providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewApp(root.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			providers, err := a.Providers.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProviders(providers))
			return nil
		},
	}
}

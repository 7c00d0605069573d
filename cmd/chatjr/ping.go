package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/chatjr/llm/ollama"
	"github.com/spf13/cobra"
)

func newPingCmd(root *rootOptions) *cobra.Command {
	var host string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the Ollama server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				cfg, err := root.loadConfig()
				if err != nil {
					return err
				}
				host = cfg.Ollama.Host
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			version, err := ollama.Ping(ctx, host, nil)
			if err != nil {
				return err
			}
			root.logger.Debug().Str("host", host).Str("version", version).Msg("Ollama reachable")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ollama %s\n", version)
			return err
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Ollama host. Defaults to config, then OLLAMA_HOST")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the server")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aschepis/backscratcher/chatjr/config"
	"github.com/aschepis/backscratcher/chatjr/llm"
	"github.com/spf13/cobra"
)

type chatOptions struct {
	provider  string
	model     string
	maxTokens int
	toolsFile string
	raw       bool
	text      bool
}

func newChatCmd(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message and print the normalized response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runChat(cmd, root, cfg, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.provider, "provider", "", "Provider to use (anthropic, ollama, openai). Overrides config")
	flags.StringVar(&opts.model, "model", "", "Model to use. Overrides config")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	flags.StringVar(&opts.toolsFile, "tools", "", "YAML or JSON file with tool definitions")
	flags.BoolVar(&opts.raw, "raw", false, "Print the provider's top-level response fields instead of the normalized response")
	flags.BoolVar(&opts.text, "text", false, "Print only the concatenated text content")
	cmd.MarkFlagsMutuallyExclusive("raw", "text")
	return cmd
}

func runChat(cmd *cobra.Command, root *rootOptions, cfg *config.Config, opts *chatOptions, message string) error {
	if opts.provider != "" {
		cfg.Provider = opts.provider
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}

	req := &llm.ChatRequest{Message: message, MaxTokens: opts.maxTokens}
	if opts.toolsFile != "" {
		tools, err := LoadTools(opts.toolsFile)
		if err != nil {
			return err
		}
		req.Tools = tools
	}

	client, err := config.NewChatClient(cfg, root.logger)
	if err != nil {
		return err
	}
	chatter := llm.WrapWithMiddleware(client, llm.NewLoggingMiddleware(root.logger))

	ctx := llm.ContextWithRequestID(cmd.Context(), "")
	resp, err := chatter.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", client.Provider(), err)
	}
	return printResponse(cmd.OutOrStdout(), resp, opts)
}

func printResponse(w io.Writer, resp *llm.ChatResponse, opts *chatOptions) error {
	if opts.text {
		_, err := fmt.Fprintln(w, resp.Text())
		return err
	}

	var out any = resp
	if opts.raw {
		out = resp.Fields
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

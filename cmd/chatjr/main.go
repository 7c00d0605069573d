// Command chatjr sends one prompt to a chat-completion provider and prints
// the normalized response.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aschepis/backscratcher/chatjr/config"
	chatjrlogger "github.com/aschepis/backscratcher/chatjr/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logFile    string
	pretty     bool

	logger zerolog.Logger
	closer io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "chatjr",
		Short:         "Send single-turn prompts to Anthropic, Ollama, or OpenAI",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logFile != "" && opts.pretty {
				return fmt.Errorf("--logfile and --pretty are mutually exclusive")
			}
			logger, closer, err := chatjrlogger.InitWithOptions(opts.logFile, opts.pretty)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			opts.closer = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closer != nil {
				return opts.closer.Close()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.GetConfigPath(), "Path to config file")
	flags.StringVar(&opts.logFile, "logfile", "", "Path to log file. If not set, logs to stderr")
	flags.BoolVar(&opts.pretty, "pretty", false, "Use pretty console output (only valid when logfile is not set)")
	cmd.MarkFlagsMutuallyExclusive("logfile", "pretty")

	cmd.AddCommand(newChatCmd(opts), newPingCmd(opts))
	return cmd
}

// loadConfig reads the config file named by --config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

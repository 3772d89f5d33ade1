// Package commands defines all Cobra CLI commands for the shopmind binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/lmarban/shopmind-go/internal/audit"
	"github.com/lmarban/shopmind-go/internal/config"
	"github.com/lmarban/shopmind-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shopmind",
		Short: "ShopMind — conversational product discovery over a visual-semantic catalog",
		Long: `ShopMind is a conversational shopping assistant backed by multimodal
vector search. It embeds text and image queries into a shared vector space,
retrieves the closest catalog products from a pre-built index, optionally
refines text results with a cross-encoder reranker, and generates grounded
recommendations with an LLM.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.shopmind/config.yaml).
See 'shopmind --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.shopmind/config.yaml)")

	root.AddCommand(
		NewSearchCmd(),
		NewChatCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}

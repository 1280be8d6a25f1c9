package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/orderbot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "orderbot",
	Short: "Orderbot is a conversational food ordering assistant",
	Long: `Orderbot greets a customer, takes orders in free text, keeps a cart and
hands over to checkout. Conversations are checkpointed after every turn and
can be resumed from the terminal, over HTTP, or through MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("store", "", "Checkpoint store: memory, file, redis or sqlite (overrides ORDERBOT_STORE)")
	rootCmd.PersistentFlags().String("catalog", "", "Menu source: file, sqlite or nats (overrides ORDERBOT_CATALOG)")
	rootCmd.PersistentFlags().String("menu", "", "YAML menu path for the file catalog (overrides ORDERBOT_CATALOG_PATH)")
}

// loadConfig reads the environment and applies the flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := cmd.Flags().GetString("catalog"); v != "" {
		cfg.Catalog = v
	}
	if v, _ := cmd.Flags().GetString("menu"); v != "" {
		cfg.CatalogPath = v
	}
	return cfg, cfg.Validate()
}

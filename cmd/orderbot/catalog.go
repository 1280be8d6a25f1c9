package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/orderbot/internal/cli"
	"github.com/aretw0/orderbot/internal/config"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Administer the menu",
	Long:  `Import a YAML menu into SQLite, toggle item availability, or serve the menu to other replicas over NATS.`,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <menu.yaml>",
	Short: "Copy the active items of a YAML menu into the SQLite catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		n, err := cli.ImportCatalog(cmd.Context(), cfg, args[0])
		if err != nil {
			return fmt.Errorf("error importing catalog: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items into %s\n", n, cfg.Store.SQLitePath)
		return nil
	},
}

func toggleCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <item-id>",
		Short: fmt.Sprintf("Mark an item of the SQLite catalog as %sd", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cli.SetItemActive(cmd.Context(), cfg, id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d %sd\n", id, use)
			return nil
		},
	}
}

var catalogServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer catalog requests on NATS",
	Long:  `Serves the local menu (YAML file or SQLite) to replicas configured with ORDERBOT_CATALOG=nats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.NATSURL == "" {
			return fmt.Errorf("ORDERBOT_NATS_URL is required")
		}
		source, _ := cmd.Flags().GetString("source")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.ServeCatalog(ctx, cfg, source)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(toggleCmd("activate", true))
	catalogCmd.AddCommand(toggleCmd("deactivate", false))
	catalogCmd.AddCommand(catalogServeCmd)

	catalogServeCmd.Flags().String("source", config.CatalogFile, "Local menu to serve: file or sqlite")
}

package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/orderbot/internal/cli"
	"github.com/aretw0/orderbot/pkg/cart"
	"github.com/aretw0/orderbot/pkg/domain"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "List the active menu, or show one item with --id",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, closeFn, err := cli.OpenCatalog(cfg, cli.NewLogger(cfg))
		if err != nil {
			return err
		}
		defer closeFn()

		out := cmd.OutOrStdout()
		if cmd.Flags().Changed("id") {
			id, _ := cmd.Flags().GetInt("id")
			item, found, err := catalog.GetItemByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("error fetching item %d: %w", id, err)
			}
			if !found {
				return fmt.Errorf("item %d not found", id)
			}
			printItem(out, item)
			return nil
		}

		items, err := catalog.ListActiveItems(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing menu: %w", err)
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "The menu is empty.")
			return nil
		}
		for _, item := range items {
			printItem(out, item)
		}
		return nil
	},
}

func printItem(w io.Writer, item domain.MenuItem) {
	line := fmt.Sprintf("%3d  %-24s %10sđ", item.ID, item.Title, cart.FormatAmount(item.Price))
	if item.HasDiscount() {
		line += fmt.Sprintf("  -%g%%", math.Round(item.Discount*1000)/10)
	}
	if tags := append(append([]string{}, item.Categories...), item.Flavours...); len(tags) > 0 {
		line += "  [" + strings.Join(tags, ", ") + "]"
	}
	fmt.Fprintln(w, line)
}

func init() {
	rootCmd.AddCommand(menuCmd)
	menuCmd.Flags().Int("id", 0, "Show a single item")
}

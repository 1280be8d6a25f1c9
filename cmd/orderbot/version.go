package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/orderbot"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of orderbot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "orderbot version %s\n", strings.TrimSpace(orderbot.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/orderbot/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the dialogue state machine",
	Long:  `Outputs a Mermaid diagram (graph TD) of the dialogue nodes and transitions. With --session the session's current node is highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var overlay *graph.GraphOverlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			store, closeFn, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := store.Load(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", sessionID, err)
			}
			overlay = graph.OverlayFor(st)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.Dialogue(overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("session", "s", "", "Highlight where this session currently is")
}

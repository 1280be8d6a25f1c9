package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/orderbot/internal/cli"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/persistence/middleware"
	"github.com/aretw0/orderbot/pkg/ports"
	"github.com/aretw0/orderbot/pkg/runner"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted conversations",
	Long:  `List, inspect, and remove conversations in the configured checkpoint store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		fmt.Fprintln(out, "Sessions:")
		for _, id := range sessions {
			st, err := store.Load(cmd.Context(), id)
			if err != nil {
				fmt.Fprintf(out, "- %s (unreadable: %v)\n", id, err)
				continue
			}
			fmt.Fprintf(out, "- %s  %-10s %-22s %d items  %s\n",
				id, st.Status, st.CurrentNode, len(st.Cart), st.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Long: `Prints the session transcript and cart as JSON. Emails and phone numbers
are masked unless --raw is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		raw, _ := cmd.Flags().GetBool("raw")
		full, _ := cmd.Flags().GetBool("full")

		var mws []middleware.Middleware
		if !raw {
			mws = append(mws, middleware.NewRedactionMiddleware(middleware.DefaultRedactPatterns))
		}
		store, closeFn, err := openStore(cmd, mws...)
		if err != nil {
			return err
		}
		defer closeFn()

		state, err := store.Load(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionID, err)
		}

		var v any = runner.NewSessionView(state)
		if full {
			v = state
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("error marshaling state: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm [session-id...]",
	Short: "Remove one or more sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return errors.New("give at least one session id, or --all")
		}

		store, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if all {
			if args, err = store.List(cmd.Context()); err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		var failed int
		for _, sessionID := range args {
			if err := store.Delete(cmd.Context(), sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
				fmt.Fprintf(out, "Error removing '%s': %v\n", sessionID, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "Removed session '%s'\n", sessionID)
		}
		if failed > 0 {
			return fmt.Errorf("%d session(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().Bool("raw", false, "Do not mask personal data")
	sessionInspectCmd.Flags().Bool("full", false, "Print the whole checkpoint, including prompts and the intent transcript")
	sessionRmCmd.Flags().Bool("all", false, "Remove every session")
}

func openStore(cmd *cobra.Command, mws ...middleware.Middleware) (ports.CheckpointStore, func() error, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cli.OpenStore(cfg, cli.NewLogger(cfg), mws...)
}

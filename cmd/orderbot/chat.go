package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/orderbot/internal/cli"
	"github.com/aretw0/orderbot/internal/presentation/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Long: `Starts a conversation, or resumes one with --session. Replies stream as
they are generated; with --markdown they are rendered once complete.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		markdown, _ := cmd.Flags().GetBool("markdown")
		sessionID, _ := cmd.Flags().GetString("session")
		userName, _ := cmd.Flags().GetString("name")

		app, err := cli.Build(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.ChatOptions{
			SessionID: sessionID,
			UserName:  userName,
			JSON:      jsonMode,
			In:        os.Stdin,
			Out:       os.Stdout,
		}
		if markdown && !jsonMode {
			opts.Renderer = tui.RendererFor(os.Stdout)
		}
		return cli.RunChat(cmd.Context(), app.Engine, app.Logger, opts)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().Bool("markdown", false, "Render complete replies as markdown instead of streaming")
	chatCmd.Flags().StringP("session", "s", "", "Session id to resume (a new one is generated when empty)")
	chatCmd.Flags().String("name", "", "Customer name for a new session (overrides ORDERBOT_USER_NAME)")

	// Chatting is the default action.
	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}

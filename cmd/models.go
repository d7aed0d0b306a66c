package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"sqlchat/internal/agent"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available to the configured API key",
	Long: `List the chat models the configured LLM API key can use, oldest first.
This also verifies the key: a rejected key exits with an authentication error.

Examples:
  sqlchat models
  SQLCHAT_LLM_PROVIDER=anthropic sqlchat models`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := loadApp()
		if err != nil {
			HandleError(err, "Failed to load configuration")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		models, err := agent.ListModels(ctx, app.Credentials)
		if err != nil {
			HandleError(err, "Failed to list models")
		}

		printJSON(map[string]any{
			"provider": app.Credentials.Provider,
			"selected": app.Credentials.ModelID(),
			"models":   models,
		})
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

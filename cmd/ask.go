package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sqlchat/internal/chart"
	"sqlchat/internal/chat"
)

// RenderFigure draws a chart for the terminal. Set by the main package.
var RenderFigure func(f *chart.Figure, width int) string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the database",
	Long: `Ask a natural language question and get an answer from the SQL agent.
The agent lists the tables, inspects the schema, writes and checks SQL, runs it
and can render a chart.

Requires an LLM API key (OPENAI_API_KEY by default, see --help of the root command).

Example:
  sqlchat ask "Which 5 countries have the highest total sales?"
  sqlchat ask --db sqlite:///shop.db "Plot a bar chart of revenue per region"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.Join(args, " ")

		app, err := loadApp()
		if err != nil {
			HandleError(err, "Failed to load configuration")
		}

		session := chat.NewSession(uuid.NewString(), app.SessionOptions())
		defer session.Close()
		session.Enter("cli")

		turn, err := app.NewLoop().Submit(context.Background(), session, question)
		if err != nil {
			HandleError(err, "Failed to generate response")
		}

		for _, step := range turn.Steps {
			fmt.Printf("> %s\n", step)
		}
		if len(turn.Steps) > 0 {
			fmt.Println()
		}
		fmt.Println(turn.Content)
		if turn.Chart != nil && RenderFigure != nil {
			fmt.Println()
			fmt.Println(RenderFigure(turn.Chart, 80))
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

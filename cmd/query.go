package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sqlchat/internal/database"
)

var queryString string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the selected database",
	Long: `Execute the requested QUERY against the selected database and print the rows as JSON.
The bundled sample database is read-only; statements that write are rejected.

Examples:
  sqlchat query --sql "SELECT Name FROM Genre LIMIT 5"
  sqlchat query --sql "SELECT BillingCountry, SUM(Total) FROM Invoice GROUP BY 1"
  sqlchat query --db duckdb:///warehouse.duckdb --sql "SELECT COUNT(*) FROM orders"`,
	Run: func(cmd *cobra.Command, args []string) {
		if queryString == "" {
			HandleError(fmt.Errorf("query is required"), "Missing query parameter")
		}

		app, err := loadApp()
		if err != nil {
			HandleError(err, "Failed to load configuration")
		}

		ctx := context.Background()
		h, err := database.Open(ctx, app.Selection, app.DBOptions)
		if err != nil {
			HandleError(err, "Failed to open database")
		}
		defer h.Close()

		table, err := h.Query(ctx, queryString)
		if err != nil {
			HandleError(err, "Failed to execute query")
		}

		printJSON(table.Records())
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryString, "sql", "q", "", "SQL query to execute (required)")
	_ = queryCmd.MarkFlagRequired("sql")
	rootCmd.AddCommand(queryCmd)
}

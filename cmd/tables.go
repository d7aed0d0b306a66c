package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"sqlchat/internal/database"
)

// SchemaOutput represents the schema information for a table
type SchemaOutput struct {
	TableName   string            `json:"table_name"`
	ColumnCount int               `json:"column_count"`
	Columns     []database.Column `json:"columns,omitempty"`
}

var withColumns bool

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the selected database",
	Long: `List the usable tables of the selected database.
With --columns the name, type and nullability of every column is included.

Examples:
  sqlchat tables
  sqlchat tables --columns --db postgresql://reader@localhost/shop`,
	Run: func(cmd *cobra.Command, args []string) {
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

		names, err := h.TableNames(ctx)
		if err != nil {
			HandleError(err, "Failed to list tables")
		}

		schemas := make([]SchemaOutput, 0, len(names))
		for _, name := range names {
			out := SchemaOutput{TableName: name}
			info, err := h.DescribeTable(ctx, name, 0)
			if err != nil {
				// Views the connection cannot read are still listed.
				schemas = append(schemas, out)
				continue
			}
			out.ColumnCount = len(info.Columns)
			if withColumns {
				out.Columns = info.Columns
			}
			schemas = append(schemas, out)
		}

		printJSON(schemas)
	},
}

func init() {
	tablesCmd.Flags().BoolVar(&withColumns, "columns", false, "Include column details")
	rootCmd.AddCommand(tablesCmd)
}

package agent

import (
	"context"
	"fmt"
	"strings"

	"charm.land/fantasy"

	"sqlchat/internal/chart"
	"sqlchat/internal/database"
)

// Tool names exposed to the model.
const (
	ToolListTables   = "sql_db_list_tables"
	ToolSchema       = "sql_db_schema"
	ToolQuery        = "sql_db_query"
	ToolQueryChecker = "sql_db_query_checker"
	ToolVisualize    = "visualize_data"
)

const (
	schemaSampleRows = 3
	maxResultRows    = 100
	maxCellWidth     = 200
)

// Database is what the toolkit needs from a database handle.
type Database interface {
	Querier
	TableNames(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, name string, sampleRows int) (*database.TableInfo, error)
	Explain(ctx context.Context, query string) error
	Dialect() database.Dialect
}

// Toolkit holds the tools bound to one database and one chart slot.
type Toolkit struct {
	db    Database
	slot  *chart.Slot
	trace *Trace
}

// NewToolkit binds the SQL and visualization tools to db. Figures produced by
// the visualization tool land in slot.
func NewToolkit(db Database, slot *chart.Slot, trace *Trace) *Toolkit {
	if trace == nil {
		trace = &Trace{}
	}
	return &Toolkit{db: db, slot: slot, trace: trace}
}

// ListTables returns the comma separated table names.
func (k *Toolkit) ListTables(ctx context.Context) ToolResult {
	names, err := k.db.TableNames(ctx)
	if err != nil {
		return errResult(err)
	}
	if len(names) == 0 {
		return okResult("The database has no tables.")
	}
	return okResult(strings.Join(names, ", "))
}

// Schema describes the comma separated tables with a few sample rows each.
func (k *Toolkit) Schema(ctx context.Context, tableNames string) ToolResult {
	var names []string
	for _, n := range strings.Split(tableNames, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return errResult(fmt.Errorf("no table names given, call %s first", ToolListTables))
	}

	var b strings.Builder
	for i, name := range names {
		info, err := k.db.DescribeTable(ctx, name, schemaSampleRows)
		if err != nil {
			return errResult(err)
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		writeTableInfo(&b, k.db.Dialect(), info)
	}
	return okResult(b.String())
}

// RunQuery executes a query and formats the rows for the model.
func (k *Toolkit) RunQuery(ctx context.Context, query string) ToolResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return errResult(fmt.Errorf("empty query"))
	}
	table, err := k.db.Query(ctx, query)
	if err != nil {
		return errResult(err)
	}
	if table.Empty() {
		return okResult("The query returned no rows.")
	}
	return okResult(formatTable(table, maxResultRows))
}

// CheckQuery asks the database to plan a query without running it.
func (k *Toolkit) CheckQuery(ctx context.Context, query string) ToolResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return errResult(fmt.Errorf("empty query"))
	}
	if err := k.db.Explain(ctx, query); err != nil {
		return errResult(err)
	}
	return okResult("The query is valid.")
}

// Visualize renders a chart from a "chart_type|sql_query" request.
func (k *Toolkit) Visualize(ctx context.Context, input string) ToolResult {
	return Visualize(ctx, k.db, k.slot, input)
}

type listTablesInput struct{}

func (listTablesInput) arg() string { return "" }

type schemaInput struct {
	TableNames string `json:"table_names" description:"Comma separated list of tables, for example: Artist, Album"`
}

func (in schemaInput) arg() string { return in.TableNames }

type queryInput struct {
	Query string `json:"query" description:"A syntactically correct SQL query"`
}

func (in queryInput) arg() string { return in.Query }

type visualizeInput struct {
	Input string `json:"input" description:"chart_type|sql_query, where chart_type is bar, pie or line"`
}

func (in visualizeInput) arg() string { return in.Input }

type toolInput interface {
	arg() string
}

// Tools returns the toolkit as fantasy tools.
func (k *Toolkit) Tools() []fantasy.AgentTool {
	return []fantasy.AgentTool{
		newTool(k, ToolListTables,
			"Input is empty, output is a comma separated list of tables in the database.",
			func(ctx context.Context, _ listTablesInput) ToolResult { return k.ListTables(ctx) }),
		newTool(k, ToolSchema,
			fmt.Sprintf("Input is a comma separated list of tables, output is the schema and sample rows for those tables. "+
				"Be sure the tables exist by calling %s first.", ToolListTables),
			func(ctx context.Context, in schemaInput) ToolResult { return k.Schema(ctx, in.TableNames) }),
		newTool(k, ToolQuery,
			"Input is a detailed and correct SQL query, output is a result from the database. "+
				"If the query is not correct, an error message is returned; rewrite the query and try again.",
			func(ctx context.Context, in queryInput) ToolResult { return k.RunQuery(ctx, in.Query) }),
		newTool(k, ToolQueryChecker,
			fmt.Sprintf("Use this tool to double check a query is correct before executing it with %s.", ToolQuery),
			func(ctx context.Context, in queryInput) ToolResult { return k.CheckQuery(ctx, in.Query) }),
		newTool(k, ToolVisualize,
			"Creates a chart from a SQL query. Input must be 'chart_type|sql_query' where chart_type is bar, pie or line. "+
				"The first selected column is the category axis and the second the value axis.",
			func(ctx context.Context, in visualizeInput) ToolResult { return k.Visualize(ctx, in.Input) }),
	}
}

func newTool[T toolInput](k *Toolkit, name, description string, run func(context.Context, T) ToolResult) fantasy.AgentTool {
	return fantasy.NewAgentTool(name, description,
		func(ctx context.Context, in T, _ fantasy.ToolCall) (fantasy.ToolResponse, error) {
			res := run(ctx, in)
			k.trace.Record(name, in.arg(), res)
			if res.Failed() {
				return fantasy.NewTextErrorResponse(res.Text), nil
			}
			return fantasy.NewTextResponse(res.Text), nil
		})
}

func writeTableInfo(b *strings.Builder, dialect database.Dialect, info *database.TableInfo) {
	fmt.Fprintf(b, "CREATE TABLE %s (\n", dialect.QuoteIdent(info.Name))
	for i, c := range info.Columns {
		sep := ","
		if i == len(info.Columns)-1 {
			sep = ""
		}
		typ := c.Type
		if typ == "" {
			typ = "UNKNOWN"
		}
		null := ""
		if c.Nullable == "NO" {
			null = " NOT NULL"
		}
		fmt.Fprintf(b, "\t%s %s%s%s\n", dialect.QuoteIdent(c.Name), typ, null, sep)
	}
	b.WriteString(")\n")

	if info.Sample.Empty() {
		return
	}
	fmt.Fprintf(b, "\n/*\n%d rows from %s table:\n", len(info.Sample.Rows), info.Name)
	b.WriteString(formatTable(info.Sample, schemaSampleRows))
	b.WriteString("\n*/")
}

func formatTable(t *database.Table, limit int) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Columns, "\t"))
	for i, row := range t.Rows {
		if i == limit {
			fmt.Fprintf(&b, "\n... %d more rows not shown", len(t.Rows)-limit)
			break
		}
		b.WriteByte('\n')
		for j, v := range row {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(formatCell(v))
		}
	}
	return b.String()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return truncate(fmt.Sprint(v), maxCellWidth)
}

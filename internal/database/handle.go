package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultConnectTimeout = 10 * time.Second

// Options controls how handles are opened.
type Options struct {
	// DataDir is where the sample database file is materialised.
	DataDir string
	// ConnectTimeout bounds the initial ping of a custom URI.
	ConnectTimeout time.Duration
}

// Handle is a live connection to one database target. It is created once per
// selection key and never mutated afterwards.
type Handle struct {
	db       *sql.DB
	dialect  Dialect
	key      string
	display  string
	readOnly bool
}

// Table is a tabular query result. Byte slices are converted to strings.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
}

// TableInfo is the schema of one table with a few sample rows.
type TableInfo struct {
	Name    string   `json:"table_name"`
	Columns []Column `json:"columns"`
	Sample  *Table   `json:"sample,omitempty"`
}

// Open resolves a selection into a new Handle. Use a Selector to share
// handles between calls.
func Open(ctx context.Context, sel Selection, opts Options) (*Handle, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	if sel.Mode == ModeSample || sel.Mode == "" {
		return openSample(ctx, opts)
	}

	t, err := parseTarget(sel.URI)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(t.driver, t.dsn)
	if err != nil {
		return nil, &ConnectionError{URI: sel.URI, Reason: "open failed", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		slog.Warn("Database unreachable", "target", redact(sel.URI), "error", err)
		return nil, &ConnectionError{URI: sel.URI, Reason: "database unreachable", Err: err}
	}

	slog.Info("Database connected", "target", redact(sel.URI), "dialect", t.dialect)
	return &Handle{
		db:      db,
		dialect: t.dialect,
		key:     sel.Key(),
		display: redact(sel.URI),
	}, nil
}

// Dialect returns the SQL dialect of the handle.
func (h *Handle) Dialect() Dialect { return h.dialect }

// Key returns the selection key the handle was opened for.
func (h *Handle) Key() string { return h.key }

// ReadOnly reports whether writes are refused by the connection itself.
func (h *Handle) ReadOnly() bool { return h.readOnly }

func (h *Handle) String() string { return h.display }

// Close releases the underlying pool.
func (h *Handle) Close() error {
	return h.db.Close()
}

// TableNames lists the usable tables and views.
func (h *Handle) TableNames(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, h.dialect.tablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// Query runs a statement and returns every row.
func (h *Handle) Query(ctx context.Context, query string) (*Table, error) {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTable(rows)
}

// Explain asks the engine to plan a query without running it.
func (h *Handle) Explain(ctx context.Context, query string) error {
	query = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	rows, err := h.db.QueryContext(ctx, h.dialect.explainPrefix()+query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// DescribeTable returns the columns of a table and up to sampleRows rows.
// The name must be one of TableNames; matching is case-insensitive.
func (h *Handle) DescribeTable(ctx context.Context, name string, sampleRows int) (*TableInfo, error) {
	names, err := h.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	canonical := ""
	for _, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			canonical = n
			break
		}
	}
	if canonical == "" {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	if sampleRows < 0 {
		sampleRows = 0
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", h.dialect.QuoteIdent(canonical), sampleRows)
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %s: %w", canonical, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", canonical, err)
	}
	info := &TableInfo{Name: canonical}
	for _, ct := range types {
		nullable := "UNKNOWN"
		if n, ok := ct.Nullable(); ok {
			nullable = "NO"
			if n {
				nullable = "YES"
			}
		}
		info.Columns = append(info.Columns, Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		})
	}

	sample, err := scanTable(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample rows of %s: %w", canonical, err)
	}
	info.Sample = sample
	return info, nil
}

func scanTable(rows *sql.Rows) (*Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{Columns: columns}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(columns))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// Records returns the rows as column name to value maps.
func (t *Table) Records() []map[string]any {
	if t == nil {
		return []map[string]any{}
	}
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, col := range t.Columns {
			rec[col] = row[j]
		}
		out[i] = rec
	}
	return out
}

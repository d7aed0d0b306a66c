package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sqlchat/internal/chart"
	"sqlchat/internal/database"
)

const (
	inputFormatMessage = "Error: Input must be in 'chart_type|sql_query' format."
	noDataMessage      = "No data found for visualization."
)

// ErrInputFormat is the failure recorded when a visualization request has no
// chart_type|sql_query delimiter.
var ErrInputFormat = errors.New("input must be in 'chart_type|sql_query' format")

// Querier runs a query and returns its rows.
type Querier interface {
	Query(ctx context.Context, query string) (*database.Table, error)
}

// ParseVisualizeInput splits "chart_type|sql_query" on the first "|".
func ParseVisualizeInput(input string) (kind chart.Kind, query string, err error) {
	rawKind, rawQuery, ok := strings.Cut(input, "|")
	if !ok {
		return "", "", ErrInputFormat
	}
	query = strings.TrimSpace(rawQuery)
	if query == "" {
		return "", "", ErrInputFormat
	}

	rawKind = strings.TrimSpace(rawKind)
	kind, known := chart.ParseKind(rawKind)
	if !known {
		slog.Warn("Unknown chart type, rendering bar chart", "chart_type", rawKind)
	}
	return kind, query, nil
}

// Visualize runs the query from a "chart_type|sql_query" request, builds a
// figure from the rows and leaves it in slot. Failures never escape: they are
// reported in the returned text so the model can correct itself.
func Visualize(ctx context.Context, db Querier, slot *chart.Slot, input string) (res ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Visualization panicked", "panic", r, "input", input)
			res = errResult(fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	kind, query, err := ParseVisualizeInput(input)
	if err != nil {
		return ToolResult{Text: inputFormatMessage, Err: err}
	}

	table, err := db.Query(ctx, query)
	if err != nil {
		return errResult(err)
	}
	if table.Empty() {
		return okResult(noDataMessage)
	}

	fig, err := chart.Build(table, kind)
	if err != nil {
		if errors.Is(err, chart.ErrNoData) {
			return okResult(noDataMessage)
		}
		return errResult(err)
	}

	slot.Put(fig)
	slog.Info("Chart rendered", "chart_id", fig.ID, "kind", fig.Kind, "points", len(fig.Values))
	return okResult(fmt.Sprintf("Successfully rendered a %s chart.", kind))
}

// Package chart turns tabular query results into renderable figures.
package chart

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sqlchat/internal/database"
)

// Kind is a chart type.
type Kind string

const (
	KindBar  Kind = "bar"
	KindPie  Kind = "pie"
	KindLine Kind = "line"
)

// ParseKind normalises a chart type. Unknown names resolve to bar; known
// reports whether the name was recognised.
func ParseKind(s string) (kind Kind, known bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindBar:
		return KindBar, true
	case KindPie:
		return KindPie, true
	case KindLine:
		return KindLine, true
	default:
		return KindBar, false
	}
}

// Figure is a renderable chart. Labels and Values are parallel slices.
type Figure struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	XLabel    string    `json:"x_label"`
	YLabel    string    `json:"y_label"`
	Labels    []string  `json:"labels"`
	Values    []float64 `json:"values"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNoData is returned by Build for an empty table.
var ErrNoData = errors.New("no data")

const countLabel = "count"

// Build creates a figure from a query result. The first column is the
// category axis and the optional second column the value axis. Without a
// value column each category is plotted by its number of rows. Bar and pie
// charts sum rows that share a category; line charts keep row order.
func Build(t *database.Table, kind Kind) (*Figure, error) {
	if t.Empty() || len(t.Columns) == 0 {
		return nil, ErrNoData
	}

	f := &Figure{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     titleFor(kind),
		XLabel:    t.Columns[0],
		YLabel:    countLabel,
		CreatedAt: time.Now(),
	}
	hasValues := len(t.Columns) > 1
	if hasValues {
		f.YLabel = t.Columns[1]
	}

	index := make(map[string]int)
	for rowNum, row := range t.Rows {
		label := formatLabel(row[0])
		value := 1.0
		if hasValues {
			v, err := toFloat(row[1])
			if err != nil {
				return nil, fmt.Errorf("row %d: column %q is not numeric: %w", rowNum+1, f.YLabel, err)
			}
			value = v
		}

		if kind == KindLine && hasValues {
			f.Labels = append(f.Labels, label)
			f.Values = append(f.Values, value)
			continue
		}
		if i, ok := index[label]; ok {
			f.Values[i] += value
			continue
		}
		index[label] = len(f.Labels)
		f.Labels = append(f.Labels, label)
		f.Values = append(f.Values, value)
	}

	return f, nil
}

func titleFor(kind Kind) string {
	switch kind {
	case KindPie:
		return "Data Distribution"
	case KindLine:
		return "Trend Analysis"
	default:
		return "Comparison Chart"
	}
}

func formatLabel(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	case string:
		return parseDecimal(x)
	case fmt.Stringer:
		return parseDecimal(x.String())
	default:
		return parseDecimal(fmt.Sprint(x))
	}
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

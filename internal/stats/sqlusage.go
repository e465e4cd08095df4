package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mariogenie/genie-chat/internal/db"
	"github.com/mariogenie/genie-chat/internal/event"
)

// NameCount pairs an identifier with how many recorded queries used it.
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// TableColumnCount counts one (table, column) co-occurrence.
type TableColumnCount struct {
	Table  string `json:"table_name"`
	Column string `json:"column_name"`
	Count  int64  `json:"count"`
}

// SQLUsage aggregates which tables and columns the recorded Genie SQL
// touches.
type SQLUsage struct {
	Tables       []NameCount        `json:"tables"`
	Columns      []NameCount        `json:"columns"`
	TableColumns []TableColumnCount `json:"table_columns"`
}

// SQLUsageAnalytics parses every sql_response query in the window (days <= 0
// means all time) and tallies table/column usage. Rankings order count desc,
// name asc.
func (r *Repo) SQLUsageAnalytics(ctx context.Context, days int) (SQLUsage, error) {
	queryExpr := db.JSONText(r.db, "metadata", "sql_query")
	q := r.db.WithContext(ctx).Raw(`
		SELECT `+queryExpr+` AS q
		FROM user_events
		WHERE event_type = ? AND `+queryExpr+` IS NOT NULL`,
		event.TypeSQLResponse,
	)
	if days > 0 {
		since := time.Now().UTC().AddDate(0, 0, -days)
		q = r.db.WithContext(ctx).Raw(`
			SELECT `+queryExpr+` AS q
			FROM user_events
			WHERE event_type = ? AND `+queryExpr+` IS NOT NULL AND timestamp >= ?`,
			event.TypeSQLResponse, since,
		)
	}

	var queries []string
	if err := q.Scan(&queries).Error; err != nil {
		return SQLUsage{}, fmt.Errorf("stats: sql usage: %w", err)
	}

	tables := map[string]int64{}
	columns := map[string]int64{}
	pairs := map[[2]string]int64{}
	for _, raw := range queries {
		parsed := parseSQL(raw)
		for _, t := range parsed.Tables {
			tables[t]++
			for _, c := range parsed.Columns {
				pairs[[2]string{t, c}]++
			}
		}
		for _, c := range parsed.Columns {
			columns[c]++
		}
	}

	out := SQLUsage{
		Tables:  rankNames(tables),
		Columns: rankNames(columns),
	}
	for pair, count := range pairs {
		out.TableColumns = append(out.TableColumns, TableColumnCount{Table: pair[0], Column: pair[1], Count: count})
	}
	sort.Slice(out.TableColumns, func(i, j int) bool {
		a, b := out.TableColumns[i], out.TableColumns[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Column < b.Column
	})
	return out, nil
}

func rankNames(counts map[string]int64) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

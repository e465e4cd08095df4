package stats

import (
	"reflect"
	"testing"
)

func TestParseSQL(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		tables  []string
		columns []string
	}{
		{
			name:    "simple select",
			query:   "SELECT region, revenue FROM sales.orders",
			tables:  []string{"sales.orders"},
			columns: []string{"region", "revenue"},
		},
		{
			name:    "join collects both tables",
			query:   "SELECT o.id FROM orders o JOIN customers c ON c.id = o.customer_id",
			tables:  []string{"orders", "customers"},
			columns: []string{"o"},
		},
		{
			name:    "backticked three-part name",
			query:   "SELECT `name` FROM `catalog.schema.table`",
			tables:  []string{"catalog.schema.table"},
			columns: []string{"name"},
		},
		{
			name:    "aggregates are not columns",
			query:   "SELECT COUNT(*), region FROM sales",
			tables:  []string{"sales"},
			columns: []string{"region"},
		},
		{
			name:    "case insensitive and deduped",
			query:   "select Region, REGION from Sales",
			tables:  []string{"sales"},
			columns: []string{"region"},
		},
		{
			name:  "empty query",
			query: "",
		},
		{
			name:  "no select clause",
			query: "EXPLAIN something",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseSQL(tc.query)
			if !reflect.DeepEqual(got.Tables, tc.tables) {
				t.Fatalf("tables = %v, want %v", got.Tables, tc.tables)
			}
			if !reflect.DeepEqual(got.Columns, tc.columns) {
				t.Fatalf("columns = %v, want %v", got.Columns, tc.columns)
			}
		})
	}
}

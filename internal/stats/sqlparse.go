package stats

import (
	"regexp"
	"strings"
)

// Table/column extraction from recorded Genie SQL. This is intentionally a
// lightweight lexical pass, not a SQL parser: it only needs to be right often
// enough to rank which tables and columns the assistant leans on.

var (
	fromRe   = regexp.MustCompile(`(?i)(?:FROM|JOIN)\s+` + "`?" + `([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+){0,2})` + "`?")
	selectRe = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM`)
	identRe  = regexp.MustCompile("`?([a-zA-Z0-9_]+)`?")
)

var sqlKeywords = map[string]struct{}{
	"as": {}, "from": {}, "where": {}, "select": {}, "distinct": {},
	"count": {}, "sum": {}, "avg": {}, "max": {}, "min": {},
	"case": {}, "when": {}, "then": {}, "else": {}, "end": {},
}

// ParsedSQL holds the table and column names found in one query, in first-seen
// order with duplicates removed.
type ParsedSQL struct {
	Tables  []string
	Columns []string
}

func parseSQL(query string) ParsedSQL {
	var p ParsedSQL
	if query == "" {
		return p
	}

	seenTables := map[string]struct{}{}
	for _, m := range fromRe.FindAllStringSubmatch(query, -1) {
		table := strings.ToLower(m[1])
		if _, ok := seenTables[table]; !ok {
			seenTables[table] = struct{}{}
			p.Tables = append(p.Tables, table)
		}
	}

	sel := selectRe.FindStringSubmatch(query)
	if sel == nil {
		return p
	}
	seenCols := map[string]struct{}{}
	for _, part := range strings.Split(sel[1], ",") {
		m := identRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			continue
		}
		col := strings.ToLower(m[1])
		if _, keyword := sqlKeywords[col]; keyword {
			continue
		}
		if _, ok := seenCols[col]; !ok {
			seenCols[col] = struct{}{}
			p.Columns = append(p.Columns, col)
		}
	}
	return p
}

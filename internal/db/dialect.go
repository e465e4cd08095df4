package db

import (
	"fmt"

	"gorm.io/gorm"
)

// The analytics queries run against PostgreSQL in production and sqlite in
// tests. The few expressions the two engines spell differently live here.

// JSONText returns the SQL expression extracting a top-level key from a JSON
// column as text.
func JSONText(gdb *gorm.DB, column, key string) string {
	if gdb.Dialector.Name() == "postgres" {
		return fmt.Sprintf("%s ->> '%s'", column, key)
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, key)
}

// HourOf returns the SQL expression extracting the hour of day (0-23) from a
// timestamp column as an integer.
func HourOf(gdb *gorm.DB, column string) string {
	if gdb.Dialector.Name() == "postgres" {
		return fmt.Sprintf("CAST(EXTRACT(HOUR FROM %s) AS INTEGER)", column)
	}
	return fmt.Sprintf("CAST(strftime('%%H', %s) AS INTEGER)", column)
}

// DayOf returns the SQL expression rendering a timestamp column's calendar
// date as a YYYY-MM-DD string, so results scan uniformly on both engines.
func DayOf(gdb *gorm.DB, column string) string {
	if gdb.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	}
	return fmt.Sprintf("date(%s)", column)
}

// DateText renders an already-date-typed column as a YYYY-MM-DD string.
func DateText(gdb *gorm.DB, column string) string {
	if gdb.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD')", column)
	}
	return column
}

// TimeText renders a timestamp expression as "YYYY-MM-DD HH:MM:SS" text.
// Aggregate expressions like MIN(timestamp) lose their column affinity on
// sqlite, so anything computed is read back as text on both engines.
func TimeText(gdb *gorm.DB, expr string) string {
	if gdb.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(%s, 'YYYY-MM-DD HH24:MI:SS')", expr)
	}
	return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M:%%S', %s)", expr)
}

// WeekOf returns the SQL expression truncating a timestamp column to the
// Monday of its week, rendered as a date string.
func WeekOf(gdb *gorm.DB, column string) string {
	if gdb.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(DATE_TRUNC('week', %s), 'YYYY-MM-DD')", column)
	}
	// sqlite: weekday 0 = Sunday, so shift to the preceding Monday.
	return fmt.Sprintf("date(%s, '-6 days', 'weekday 1')", column)
}

// MonthOf returns the SQL expression truncating a timestamp column to the
// first of its month, rendered as a date string.
func MonthOf(gdb *gorm.DB, column string) string {
	if gdb.Dialector.Name() == "postgres" {
		return fmt.Sprintf("TO_CHAR(DATE_TRUNC('month', %s), 'YYYY-MM-DD')", column)
	}
	return fmt.Sprintf("date(%s, 'start of month')", column)
}

// Greatest returns the SQL function name picking the larger of two values.
func Greatest(gdb *gorm.DB) string {
	if gdb.Dialector.Name() == "postgres" {
		return "GREATEST"
	}
	return "MAX"
}

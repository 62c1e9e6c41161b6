package store

import (
	"fmt"
	"strings"
	"time"
)

// Filter is one optional equality/range predicate in a Find query.
type Filter struct {
	Column string
	Value  interface{}
}

// RangeDate returns the inclusive window (central-offset, central+offset)
// for a period filter.
func RangeDate(central time.Time, offsetDays int) (time.Time, time.Time) {
	d := time.Duration(offsetDays) * 24 * time.Hour
	return central.Add(-d), central.Add(d)
}

// buildWhere assembles a WHERE clause from the given filters, always
// prefixing every fragment with "AND" after the first — fixing the
// original implementation's bug where the first optional filter (the
// date-period branch) was appended without its leading AND, producing
// invalid SQL whenever that branch fired. An empty filter list yields an
// empty clause (no WHERE at all).
func buildWhere(filters []Filter) (clause string, args []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s = $%d", f.Column, len(args))
	}
	return b.String(), args
}

// buildWhereRange is like buildWhere but appends a BETWEEN fragment for
// the period filter, which wins over a single-day filter when both would
// otherwise apply — the caller is responsible for not passing both.
func buildWhereRange(filters []Filter, rangeColumn string, start, end time.Time) (clause string, args []interface{}) {
	clause, args = buildWhere(filters)

	fragment := fmt.Sprintf("%s BETWEEN $%d AND $%d", rangeColumn, len(args)+1, len(args)+2)
	args = append(args, start, end)

	if clause == "" {
		return "WHERE " + fragment, args
	}
	return clause + " AND " + fragment, args
}

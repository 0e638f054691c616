package sqlite

import "strings"

// whereClause accumulates AND-combined predicates and their arguments.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(expr string, args ...any) {
	w.conds = append(w.conds, expr)
	w.args = append(w.args, args...)
}

// contains adds a substring predicate on column.
func (w *whereClause) contains(column, value string) {
	w.add(column+" LIKE '%' || ? || '%'", value)
}

// sql renders the clause including the leading " WHERE ", or "" when no
// predicate was added.
func (w *whereClause) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

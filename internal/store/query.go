package store

import (
	"fmt"
	"strings"
)

// Page selects a 1-based page of a listing query.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// whereClause collects AND-ed conditions with positional arguments. Each
// condition format receives the argument index for its verb.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(format, len(w.args)))
}

func (w *whereClause) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// paged appends LIMIT/OFFSET placeholders and returns the query and its args.
func (w *whereClause) paged(query string, p Page) (string, []any) {
	args := append(append([]any(nil), w.args...), p.PageSize, p.offset())
	return query + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

package store

import (
	"fmt"
	"strings"
)

// whereBuilder assembles a parameterized WHERE clause. Conditions are ANDed
// and placeholders are numbered in the order they are added.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

func (wb *whereBuilder) placeholder(v any) string {
	p := fmt.Sprintf("$%d", wb.argIndex)
	wb.args = append(wb.args, v)
	wb.argIndex++
	return p
}

// Add appends "col = $n". Empty strings are skipped.
func (wb *whereBuilder) Add(col string, value string) {
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, col+" = "+wb.placeholder(value))
}

// AddFold appends a case-insensitive equality on col. Empty values are skipped.
func (wb *whereBuilder) AddFold(col string, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, "lower("+col+") = lower("+wb.placeholder(value)+")")
}

// AddSearch matches query as a case-insensitive substring of any of cols,
// sharing one placeholder. LIKE wildcards in query are matched literally.
func (wb *whereBuilder) AddSearch(query string, cols ...string) {
	query = strings.TrimSpace(query)
	if query == "" || len(cols) == 0 {
		return
	}
	p := wb.placeholder("%" + escapeLike(query) + "%")
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " ILIKE " + p
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
}

// AddTagged keeps rows whose text[] column contains tag.
func (wb *whereBuilder) AddTagged(col string, tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	wb.conditions = append(wb.conditions, wb.placeholder(tag)+" = ANY("+col+")")
}

// NextArgIndex returns the number the next placeholder will use.
func (wb *whereBuilder) NextArgIndex() int {
	return wb.argIndex
}

// Build returns the clause with a leading " WHERE", or "" and nil args when
// no condition was added.
func (wb *whereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE metacharacters using the default backslash escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

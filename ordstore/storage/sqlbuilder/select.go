package sqlbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// CTE is a named common table expression prepended to a statement.
type CTE struct {
	Name string
	SQL  string
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SelectStatement assembles a parameterized SELECT. Identifiers (table,
// column, alias) must be validated by the caller before they get here;
// values always go through Arg placeholders.
type SelectStatement struct {
	b       *Builder
	table   string
	columns []string
	joins   []string
	wheres  []string
	orders  []string
	ctes    []CTE
}

func NewSelect(b *Builder, table string) *SelectStatement {
	return &SelectStatement{b: b, table: table}
}

// Arg registers a value on the statement's shared builder and returns its
// placeholder, for callers splicing hand-built fragments.
func (s *SelectStatement) Arg(v any) string { return s.b.Arg(v) }

func (s *SelectStatement) Table() string { return s.table }

func (s *SelectStatement) Column(expr string) {
	s.columns = append(s.columns, expr)
}

func (s *SelectStatement) Where(column, op string, value any) {
	s.wheres = append(s.wheres, fmt.Sprintf("%s %s %s", column, op, s.b.Arg(value)))
}

func (s *SelectStatement) WhereNull(column string) {
	s.wheres = append(s.wheres, column+" IS NULL")
}

func (s *SelectStatement) WhereNotNull(column string) {
	s.wheres = append(s.wheres, column+" IS NOT NULL")
}

func (s *SelectStatement) WhereRaw(cond string) {
	s.wheres = append(s.wheres, cond)
}

func (s *SelectStatement) WhereIn(column, subquerySQL string) {
	s.wheres = append(s.wheres, fmt.Sprintf("%s IN (%s)", column, subquerySQL))
}

func (s *SelectStatement) InnerJoin(subquerySQL, alias, on string) {
	s.joins = append(s.joins, fmt.Sprintf("INNER JOIN (%s) AS %s ON %s", subquerySQL, alias, on))
}

func (s *SelectStatement) OrderBy(expr, direction string) {
	s.orders = append(s.orders, expr+" "+direction)
}

func (s *SelectStatement) With(name, subquerySQL string) {
	s.ctes = append(s.ctes, CTE{Name: name, SQL: subquerySQL})
}

func (s *SelectStatement) SQL() string {
	var sb strings.Builder
	if len(s.ctes) > 0 {
		parts := make([]string, 0, len(s.ctes))
		for _, cte := range s.ctes {
			parts = append(parts, fmt.Sprintf("%s AS (%s)", cte.Name, cte.SQL))
		}
		sb.WriteString("WITH " + strings.Join(parts, ", ") + " ")
	}
	cols := "*"
	if len(s.columns) > 0 {
		cols = strings.Join(s.columns, ", ")
	}
	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", cols, s.table))
	for _, j := range s.joins {
		sb.WriteString(" " + j)
	}
	if len(s.wheres) > 0 {
		sb.WriteString(" WHERE " + strings.Join(s.wheres, " AND "))
	}
	if len(s.orders) > 0 {
		sb.WriteString(" ORDER BY " + strings.Join(s.orders, ", "))
	}
	return sb.String()
}

func (s *SelectStatement) Args() []any { return s.b.Args() }

func (s *SelectStatement) Query(ctx context.Context, q queryer) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.SQL(), s.Args()...)
}

func (s *SelectStatement) QueryRow(ctx context.Context, q queryer) *sql.Row {
	return q.QueryRowContext(ctx, s.SQL(), s.Args()...)
}

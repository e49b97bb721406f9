package sqlbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpdateStatement assembles a parameterized UPDATE. SetExpr carries native
// column expressions (position + 1, window-numbered backfills) so shifts
// stay single statements instead of read-modify-write loops.
type UpdateStatement struct {
	b      *Builder
	table  string
	sets   []string
	froms  []string
	wheres []string
}

func NewUpdate(b *Builder, table string) *UpdateStatement {
	return &UpdateStatement{b: b, table: table}
}

func (u *UpdateStatement) Arg(v any) string { return u.b.Arg(v) }

func (u *UpdateStatement) Table() string { return u.table }

func (u *UpdateStatement) Set(column string, value any) {
	u.sets = append(u.sets, fmt.Sprintf("%s = %s", column, u.b.Arg(value)))
}

// SetExpr assigns a raw SQL expression, e.g. SetExpr("position", "position + 1").
func (u *UpdateStatement) SetExpr(column, expr string) {
	u.sets = append(u.sets, fmt.Sprintf("%s = %s", column, expr))
}

func (u *UpdateStatement) SetNull(column string) {
	u.sets = append(u.sets, column+" = NULL")
}

// From joins a derived table into the UPDATE (UPDATE t SET ... FROM (sub) AS alias).
func (u *UpdateStatement) From(subquerySQL, alias string) {
	u.froms = append(u.froms, fmt.Sprintf("(%s) AS %s", subquerySQL, alias))
}

func (u *UpdateStatement) Where(column, op string, value any) {
	u.wheres = append(u.wheres, fmt.Sprintf("%s %s %s", column, op, u.b.Arg(value)))
}

func (u *UpdateStatement) WhereNull(column string) {
	u.wheres = append(u.wheres, column+" IS NULL")
}

func (u *UpdateStatement) WhereRaw(cond string) {
	u.wheres = append(u.wheres, cond)
}

func (u *UpdateStatement) WhereBetween(column string, lo, hi int) {
	u.wheres = append(u.wheres, fmt.Sprintf("%s BETWEEN %s AND %s", column, u.b.Arg(lo), u.b.Arg(hi)))
}

func (u *UpdateStatement) WhereIn(column, subquerySQL string) {
	u.wheres = append(u.wheres, fmt.Sprintf("%s IN (%s)", column, subquerySQL))
}

func (u *UpdateStatement) SQL() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("UPDATE %s SET %s", u.table, strings.Join(u.sets, ", ")))
	if len(u.froms) > 0 {
		sb.WriteString(" FROM " + strings.Join(u.froms, ", "))
	}
	if len(u.wheres) > 0 {
		sb.WriteString(" WHERE " + strings.Join(u.wheres, " AND "))
	}
	return sb.String()
}

func (u *UpdateStatement) Args() []any { return u.b.Args() }

func (u *UpdateStatement) Exec(ctx context.Context, q execer) (int64, error) {
	res, err := q.ExecContext(ctx, u.SQL(), u.Args()...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

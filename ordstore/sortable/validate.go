package sortable

import (
	"context"
	"database/sql"

	"github.com/nonibytes/ordstore/ordstore/storage"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

// CheckParams feeds the position validator.
type CheckParams struct {
	Record   Record
	Field    string
	Scope    []string
	Position *int
	Tx       *sql.Tx
}

// PositionInvalid reports whether a proposed position cannot be honored as
// an explicit slot: nil on an already-persisted record, non-positive, or
// beyond the dense run the scope group can hold. Invalid is a routing
// decision for the hooks (discard vs defer), not an error; query failures
// propagate.
func (s *Setter) PositionInvalid(ctx context.Context, p CheckParams) (bool, error) {
	if p.Position == nil {
		return p.Record.Persisted(), nil
	}
	if *p.Position < 1 {
		return true, nil
	}

	table, err := s.prepare(p.Record, p.Field)
	if err != nil {
		return false, err
	}

	b := sqlbuilder.New(s.adapter.PlaceholderStyle())
	sel := sqlbuilder.NewSelect(b, table.Name)
	sel.Column("COUNT(*)")
	if pk := p.Record.PrimaryKey(); pk != nil && p.Record.Persisted() {
		sel.Where(table.PrimaryKey, "!=", pk)
	}
	ApplyScopeFilters(s.meta, p.Record, sel, p.Record.Get, p.Scope)

	var runner storage.Queryer = s.db
	if p.Tx != nil {
		runner = p.Tx
	}
	var count int
	if err := sel.QueryRow(ctx, runner).Scan(&count); err != nil {
		return false, err
	}
	// A group of n siblings plus this record holds slots 1..n+1.
	return *p.Position > count+1, nil
}

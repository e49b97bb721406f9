package sortable

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/metadata"
	"github.com/nonibytes/ordstore/ordstore/storage"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

// PositionSetter is the surface the lifecycle hooks drive. Setter is the
// real implementation; tests wrap it to observe invocations.
type PositionSetter interface {
	SetPosition(ctx context.Context, p SetPositionParams) error
	PositionInvalid(ctx context.Context, p CheckParams) (bool, error)
	CompactAfterRemoval(ctx context.Context, p CompactParams) error
}

// SetPositionParams drives one reorder. Position 0 means "no explicit slot
// requested" and routes to auto placement; positions are 1-indexed and 0 is
// deliberately falsy here. Previous is nil for newly created records.
// Tx, when set, is reused instead of opening a new transaction.
type SetPositionParams struct {
	Record   Record
	Field    string
	Scope    []string
	Position int
	Previous *int
	Tx       *sql.Tx
}

// CompactParams drives the after-destroy compaction: every sibling above
// Position shifts down by one.
type CompactParams struct {
	Record   Record
	Field    string
	Scope    []string
	Position int
	Tx       *sql.Tx
}

// Setter executes the reorder protocol: write the moving record's slot,
// shift the displaced band of siblings with a single native-increment
// UPDATE, reload the record, and backfill NULL-positioned siblings with a
// single window-numbered UPDATE. Everything runs inside one transaction.
type Setter struct {
	db      *sql.DB
	adapter storage.Adapter
	meta    *metadata.Registry
	log     zerolog.Logger
}

func NewSetter(db *sql.DB, adapter storage.Adapter, meta *metadata.Registry) *Setter {
	return &Setter{db: db, adapter: adapter, meta: meta, log: zerolog.Nop()}
}

func (s *Setter) WithLogger(log zerolog.Logger) *Setter {
	s.log = log
	return s
}

func (s *Setter) SetPosition(ctx context.Context, p SetPositionParams) error {
	table, err := s.prepare(p.Record, p.Field)
	if err != nil {
		return err
	}
	if p.Position != 0 {
		s.log.Debug().Str("table", table.Name).Str("field", p.Field).Int("position", p.Position).Msg("explicit placement")
		return storage.WithTransaction(ctx, s.db, p.Tx, func(tx *sql.Tx) error {
			return s.placeExplicit(ctx, tx, table, p)
		})
	}
	s.log.Debug().Str("table", table.Name).Str("field", p.Field).Msg("auto placement")
	return storage.WithTransaction(ctx, s.db, p.Tx, func(tx *sql.Tx) error {
		return s.placeAuto(ctx, tx, table, p)
	})
}

func (s *Setter) CompactAfterRemoval(ctx context.Context, p CompactParams) error {
	table, err := s.prepare(p.Record, p.Field)
	if err != nil {
		return err
	}
	if p.Position < 1 {
		return nil
	}
	prev := p.Position
	return storage.WithTransaction(ctx, s.db, p.Tx, func(tx *sql.Tx) error {
		return s.shiftConflicting(ctx, tx, table, p.Record, p.Field, p.Scope, nil, &prev)
	})
}

// prepare validates capabilities and identifiers before any SQL is built.
func (s *Setter) prepare(rec Record, field string) (metadata.Table, error) {
	caps := s.adapter.Capabilities()
	if !caps.IncrementUpdate || !caps.WindowNumbering {
		return metadata.Table{}, ordstore.ConfigError(fmt.Sprintf(
			"backend %q cannot maintain ordinal columns: native increment updates and window numbering are required",
			s.adapter.Backend()))
	}
	table, ok := s.meta.Table(rec.Table())
	if !ok {
		return metadata.Table{}, ordstore.UnknownTableError(rec.Table())
	}
	if err := s.meta.ValidateColumn(table.Name, field); err != nil {
		return metadata.Table{}, err
	}
	return table, nil
}

func (s *Setter) placeExplicit(ctx context.Context, tx *sql.Tx, table metadata.Table, p SetPositionParams) error {
	if err := s.writePosition(ctx, tx, table, p.Record, p.Field, p.Position); err != nil {
		return err
	}
	pos := p.Position
	if err := s.shiftConflicting(ctx, tx, table, p.Record, p.Field, p.Scope, &pos, p.Previous); err != nil {
		return err
	}
	if err := s.reload(ctx, tx, table, p.Record); err != nil {
		return err
	}
	return s.backfillNulls(ctx, tx, table, p.Record, p.Field, p.Scope, p.Position)
}

func (s *Setter) placeAuto(ctx context.Context, tx *sql.Tx, table metadata.Table, p SetPositionParams) error {
	// Vacate the old slot first so the appended position lands on the new
	// dense tail rather than one past it.
	if p.Previous != nil {
		if err := s.shiftConflicting(ctx, tx, table, p.Record, p.Field, p.Scope, nil, p.Previous); err != nil {
			return err
		}
	}
	max, err := s.maxSiblingPosition(ctx, tx, table, p.Record, p.Field, p.Scope)
	if err != nil {
		return err
	}
	next := max + 1
	if err := s.writePosition(ctx, tx, table, p.Record, p.Field, next); err != nil {
		return err
	}
	if err := s.reload(ctx, tx, table, p.Record); err != nil {
		return err
	}
	return s.backfillNulls(ctx, tx, table, p.Record, p.Field, p.Scope, next)
}

// writePosition assigns the slot directly by primary key, bypassing the
// record's own save pipeline.
func (s *Setter) writePosition(ctx context.Context, tx *sql.Tx, table metadata.Table, rec Record, field string, position int) error {
	b := sqlbuilder.New(s.adapter.PlaceholderStyle())
	u := sqlbuilder.NewUpdate(b, table.Name)
	u.Set(field, position)
	u.Where(table.PrimaryKey, "=", rec.PrimaryKey())
	_, err := u.Exec(ctx, tx)
	return err
}

// shiftConflicting moves the displaced band of siblings by exactly one, as
// a single statement using the backend's native increment expression.
// Three shapes:
//
//	position set, previous nil:  insert — everything at/above the slot shifts up
//	position nil, previous set:  vacate — everything above the old slot shifts down
//	both set:                    move — the closed band between them shifts toward the hole
func (s *Setter) shiftConflicting(ctx context.Context, tx *sql.Tx, table metadata.Table, rec Record, field string, scope []string, position, previous *int) error {
	// Positions are 1-indexed; a previous below 1 is never a real slot.
	if previous != nil && *previous < 1 {
		previous = nil
	}

	b := sqlbuilder.New(s.adapter.PlaceholderStyle())
	u := sqlbuilder.NewUpdate(b, table.Name)

	switch {
	case position == nil && previous == nil:
		return nil
	case position == nil:
		u.SetExpr(field, field+" - 1")
		u.Where(field, ">", *previous)
	case previous == nil:
		u.SetExpr(field, field+" + 1")
		u.Where(field, ">=", *position)
	default:
		if *previous < *position {
			u.SetExpr(field, field+" - 1")
		} else {
			u.SetExpr(field, field+" + 1")
		}
		band := Span(*previous, *position)
		u.WhereBetween(field, band[0], band[len(band)-1])
	}

	if pk := rec.PrimaryKey(); pk != nil {
		u.Where(table.PrimaryKey, "!=", pk)
	}
	ApplyScopeFilters(s.meta, rec, u, rec.Get, scope)

	n, err := u.Exec(ctx, tx)
	if err != nil {
		return err
	}
	s.log.Debug().Int64("rows", n).Str("table", table.Name).Msg("shifted siblings")
	return nil
}

// maxSiblingPosition returns the highest assigned position in the scope
// group, excluding the record itself; 0 when the group is empty.
func (s *Setter) maxSiblingPosition(ctx context.Context, tx *sql.Tx, table metadata.Table, rec Record, field string, scope []string) (int, error) {
	b := sqlbuilder.New(s.adapter.PlaceholderStyle())
	sel := sqlbuilder.NewSelect(b, table.Name)
	sel.Column(fmt.Sprintf("COALESCE(MAX(%s), 0)", field))
	if pk := rec.PrimaryKey(); pk != nil {
		sel.Where(table.PrimaryKey, "!=", pk)
	}
	ApplyScopeFilters(s.meta, rec, sel, rec.Get, scope)

	var max int
	if err := sel.QueryRow(ctx, tx).Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

// reload refreshes the record's attributes from its row so triggers and
// defaults applied during the reorder are visible to the caller, then
// resyncs the record's clean baseline so none of those writes linger as
// pending changes on the next save.
func (s *Setter) reload(ctx context.Context, tx *sql.Tx, table metadata.Table, rec Record) error {
	b := sqlbuilder.New(s.adapter.PlaceholderStyle())
	sel := sqlbuilder.NewSelect(b, table.Name)
	sel.Where(table.PrimaryKey, "=", rec.PrimaryKey())

	rows, err := sel.Query(ctx, tx)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ordstore.New(ordstore.ErrSQL, fmt.Sprintf(
			"row %v missing from %s during reorder", rec.PrimaryKey(), table.Name))
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return err
	}
	for i, column := range columns {
		rec.Set(column, values[i])
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rec.ResetDirty()
	return nil
}

// backfillNulls assigns dense trailing positions to NULL-positioned
// siblings, ordered by the creation-time column when the model declares one
// and by primary key otherwise. One window-numbered statement; sequential
// per-row writes would race with concurrent backfills.
func (s *Setter) backfillNulls(ctx context.Context, tx *sql.Tx, table metadata.Table, rec Record, field string, scope []string, newPosition int) error {
	max, err := s.maxSiblingPosition(ctx, tx, table, rec, field, scope)
	if err != nil {
		return err
	}
	base := max
	if newPosition > base {
		base = newPosition
	}

	order := table.CreatedAt
	if order == "" {
		order = table.PrimaryKey
	}

	b := sqlbuilder.New(s.adapter.PlaceholderStyle())
	u := sqlbuilder.NewUpdate(b, table.Name)
	u.SetExpr(field, fmt.Sprintf("numbered.rn + %s", u.Arg(base)))

	sub := sqlbuilder.NewSelect(b, table.Name)
	sub.Column(fmt.Sprintf("%s AS reorder_id", table.PrimaryKey))
	sub.Column(fmt.Sprintf("ROW_NUMBER() OVER (ORDER BY %s ASC) AS rn", order))
	sub.WhereNull(field)
	if pk := rec.PrimaryKey(); pk != nil {
		sub.Where(table.PrimaryKey, "!=", pk)
	}
	ApplyScopeFilters(s.meta, rec, sub, rec.Get, scope)

	u.From(sub.SQL(), "numbered")
	u.WhereRaw(fmt.Sprintf("%s.%s = numbered.reorder_id", table.Name, table.PrimaryKey))

	n, err := u.Exec(ctx, tx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Debug().Int64("rows", n).Str("table", table.Name).Msg("backfilled null positions")
	}
	return nil
}

// Package metadata holds the association/schema lookup the engines consult
// when resolving scope specifiers and join targets, and the identifier
// validator that gates everything interpolated into SQL text.
package metadata

import (
	"regexp"

	"github.com/nonibytes/ordstore/ordstore"
)

// Association describes a declared association on a table. ForeignKey is
// the column on the owning side; TargetTable is the associated table.
// TypeColumn is set for polymorphic associations.
type Association struct {
	Name        string
	ForeignKey  string
	TargetTable string
	TypeColumn  string
}

// Table describes one table's shape. CreatedAt names the creation-time
// column when the model declares one; the NULL backfill orders by it,
// falling back to the primary key.
type Table struct {
	Name       string
	PrimaryKey string
	CreatedAt  string
	Columns    []string
	BelongsTo  []Association
	Joins      []Association
}

// Registry is an immutable lookup over table metadata. Build it once and
// share it; lookups never mutate.
type Registry struct {
	tables map[string]Table
}

func NewRegistry(tables ...Table) *Registry {
	m := make(map[string]Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return &Registry{tables: m}
}

func (r *Registry) Table(name string) (Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// BelongsTo resolves a belongs-to association by name.
func (r *Registry) BelongsTo(table, name string) (Association, bool) {
	t, ok := r.tables[table]
	if !ok {
		return Association{}, false
	}
	for _, a := range t.BelongsTo {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

// Association resolves any joinable association: belongs-to first, then the
// wider join set (has-many and friends).
func (r *Registry) Association(table, name string) (Association, bool) {
	if a, ok := r.BelongsTo(table, name); ok {
		return a, true
	}
	t, ok := r.tables[table]
	if !ok {
		return Association{}, false
	}
	for _, a := range t.Joins {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

func (r *Registry) HasColumn(table, column string) bool {
	t, ok := r.tables[table]
	if !ok {
		return false
	}
	if column == t.PrimaryKey || (t.CreatedAt != "" && column == t.CreatedAt) {
		return true
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s is a bare SQL identifier. Aliases built from
// caller input pass through this before reaching SQL text.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}

// ValidateTable raises unknown_table for tables not in the registry. This
// is the injection guard: table names reach SQL only after passing here.
func (r *Registry) ValidateTable(name string) error {
	if _, ok := r.tables[name]; !ok || !identRe.MatchString(name) {
		return ordstore.UnknownTableError(name)
	}
	return nil
}

// ValidateColumn raises unknown_table/unknown_column for identifiers not in
// the registry.
func (r *Registry) ValidateColumn(table, column string) error {
	if err := r.ValidateTable(table); err != nil {
		return err
	}
	if !r.HasColumn(table, column) || !identRe.MatchString(column) {
		return ordstore.UnknownColumnError(table, column)
	}
	return nil
}

// Package sortable maintains a dense 1..n ordinal column across sibling
// rows, partitioned into independent groups by scope columns or belongs-to
// associations.
package sortable

import (
	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/metadata"
)

// Record is what the engine needs from a model row: attribute access with
// dirty tracking plus the per-field reorder-intent cache.
type Record interface {
	ordstore.Record
	ordstore.IntentCarrier
}

// Conditioner is the slice of a statement builder scope filters attach to.
// Both SelectStatement and UpdateStatement satisfy it.
type Conditioner interface {
	Where(column, op string, value any)
	WhereNull(column string)
}

// ResolveScopeColumn maps a scope specifier to a concrete column: a
// belongs-to association name resolves to its foreign key, a real column
// resolves to itself, anything else reports false and is skipped.
func ResolveScopeColumn(meta *metadata.Registry, table, specifier string) (string, bool) {
	if assoc, ok := meta.BelongsTo(table, specifier); ok {
		return assoc.ForeignKey, true
	}
	if meta.HasColumn(table, specifier) {
		return specifier, true
	}
	return "", false
}

// ApplyScopeFilters appends one equality (or IS NULL) predicate per
// resolvable scope specifier. valueOf supplies the comparison value so the
// caller can choose between current and pre-change attribute values when a
// scope column is itself changing. Unresolvable specifiers are skipped
// silently; they do not filter.
func ApplyScopeFilters(meta *metadata.Registry, rec ordstore.Record, cond Conditioner, valueOf func(column string) any, scope []string) {
	for _, specifier := range scope {
		column, ok := ResolveScopeColumn(meta, rec.Table(), specifier)
		if !ok {
			continue
		}
		value := valueOf(column)
		if value == nil {
			cond.WhereNull(column)
			continue
		}
		cond.Where(column, "=", value)
	}
}

package ordstore

import "reflect"

// Change is one attribute's pending or saved delta.
type Change struct {
	Was any
	Now any
}

// Record is the persistence-facing view of a model row: identity, attribute
// access and dirty tracking. The sortable and similarity engines consume it;
// they never reach into concrete model structs.
type Record interface {
	Table() string
	PrimaryKeyColumn() string
	PrimaryKey() any
	Persisted() bool

	Get(column string) any
	Set(column string, value any)

	WillSaveChangeToAttribute(column string) bool
	ChangedAttributes() []string
	Changes() map[string]Change
	SavedChangeToAttribute(column string) bool
	SavedChanges() map[string]Change

	// ResetDirty adopts the current attributes as the clean baseline, as
	// after a reload from the database.
	ResetDirty()
}

// ReorderIntent is the snapshot carried from a before-save hook to the
// matching after-save hook. Position/Previous are nil when no slot was
// requested / no prior slot existed. Snapshot marks a full before-save
// capture as opposed to a bare cached target.
type ReorderIntent struct {
	Position *int
	Previous *int
	Scope    []string
	Snapshot bool
}

// IntentCarrier stores reorder intents per position field. One map per
// record instance; never shared across instances.
type IntentCarrier interface {
	PutReorderIntent(field string, intent *ReorderIntent)
	TakeReorderIntent(field string) (*ReorderIntent, bool)
	PeekReorderIntent(field string) (*ReorderIntent, bool)
}

// Row is a map-backed Record for callers without a model layer of their
// own. The engine packages only depend on the interfaces above.
type Row struct {
	table     string
	pkColumn  string
	attrs     map[string]any
	loaded    map[string]any
	saved     map[string]Change
	persisted bool
	intents   map[string]*ReorderIntent
}

// NewRow builds an unpersisted row (a record about to be created).
func NewRow(table, pkColumn string, attrs map[string]any) *Row {
	return &Row{
		table:    table,
		pkColumn: pkColumn,
		attrs:    copyAttrs(attrs),
		loaded:   map[string]any{},
	}
}

// LoadedRow builds a persisted row whose attrs reflect the database.
func LoadedRow(table, pkColumn string, attrs map[string]any) *Row {
	return &Row{
		table:     table,
		pkColumn:  pkColumn,
		attrs:     copyAttrs(attrs),
		loaded:    copyAttrs(attrs),
		persisted: true,
	}
}

func (r *Row) Table() string            { return r.table }
func (r *Row) PrimaryKeyColumn() string { return r.pkColumn }
func (r *Row) PrimaryKey() any          { return r.attrs[r.pkColumn] }
func (r *Row) Persisted() bool          { return r.persisted }

func (r *Row) Get(column string) any { return r.attrs[column] }

func (r *Row) Set(column string, value any) {
	r.attrs[column] = value
}

func (r *Row) WillSaveChangeToAttribute(column string) bool {
	now, ok := r.attrs[column]
	was, hadWas := r.loaded[column]
	if !ok && !hadWas {
		return false
	}
	return !attrEqual(was, now)
}

func (r *Row) ChangedAttributes() []string {
	var out []string
	for column := range r.attrs {
		if r.WillSaveChangeToAttribute(column) {
			out = append(out, column)
		}
	}
	for column := range r.loaded {
		if _, ok := r.attrs[column]; !ok {
			out = append(out, column)
		}
	}
	return out
}

func (r *Row) Changes() map[string]Change {
	out := map[string]Change{}
	for _, column := range r.ChangedAttributes() {
		out[column] = Change{Was: r.loaded[column], Now: r.attrs[column]}
	}
	return out
}

func (r *Row) SavedChangeToAttribute(column string) bool {
	_, ok := r.saved[column]
	return ok
}

func (r *Row) SavedChanges() map[string]Change {
	return r.saved
}

// MarkSaved moves pending changes into the saved set and resets the dirty
// baseline. The caller invokes it after a successful INSERT/UPDATE.
func (r *Row) MarkSaved() {
	r.saved = r.Changes()
	r.loaded = copyAttrs(r.attrs)
	r.persisted = true
}

// ResetDirty adopts the current attributes as the clean baseline without
// touching the saved-change set. Reorder writes applied during a reload
// must not show up as pending changes on the next save.
func (r *Row) ResetDirty() {
	r.loaded = copyAttrs(r.attrs)
	r.persisted = true
}

func (r *Row) PutReorderIntent(field string, intent *ReorderIntent) {
	if r.intents == nil {
		r.intents = map[string]*ReorderIntent{}
	}
	r.intents[field] = intent
}

func (r *Row) TakeReorderIntent(field string) (*ReorderIntent, bool) {
	intent, ok := r.intents[field]
	if ok {
		delete(r.intents, field)
	}
	return intent, ok
}

func (r *Row) PeekReorderIntent(field string) (*ReorderIntent, bool) {
	intent, ok := r.intents[field]
	return intent, ok
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func attrEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, aok := IntValue(a); aok {
		if bi, bok := IntValue(b); bok {
			return ai == bi
		}
	}
	return reflect.DeepEqual(a, b)
}

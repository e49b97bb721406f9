package sortable

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/metadata"
)

// Sortable wires the position engine into a record's save lifecycle. The
// before hook decides what the target slot is and stashes a reorder intent
// on the record; the after hooks consume the intent and run the setter.
// The surrounding persistence pipeline is expected to call the hooks in
// order around its INSERT/UPDATE/DELETE; cross-row atomicity comes from the
// setter's transaction, not from the hooks.
type Sortable struct {
	Field string
	Scope []string

	setter PositionSetter
	meta   *metadata.Registry
	log    zerolog.Logger
}

func New(setter PositionSetter, meta *metadata.Registry, field string, scope ...string) *Sortable {
	return &Sortable{Field: field, Scope: scope, setter: setter, meta: meta, log: zerolog.Nop()}
}

func (h *Sortable) WithLogger(log zerolog.Logger) *Sortable {
	h.log = log
	return h
}

// BeforeSave fires on every save attempt. Saves that touch neither the
// position field nor any scope column are a strict no-op: no queries, no
// cached state.
func (h *Sortable) BeforeSave(ctx context.Context, rec Record) error {
	scopeChanged := h.scopeChanged(rec)
	if !rec.WillSaveChangeToAttribute(h.Field) && !scopeChanged {
		return nil
	}

	requested := intAttr(rec.Get(h.Field))
	invalid, err := h.setter.PositionInvalid(ctx, CheckParams{
		Record:   rec,
		Field:    h.Field,
		Scope:    h.Scope,
		Position: requested,
	})
	if err != nil {
		return err
	}

	previous := h.previousPosition(rec)
	var target *int
	switch {
	case !invalid:
		target = requested
	case scopeChanged:
		// Scope is moving: keep the record's pre-change ordinal so relative
		// order carries over; never auto-reposition on a scope change.
		target = previous
	case rec.Persisted():
		// Unusable explicit position on a persisted record: drop it and let
		// the after hook recompute via auto placement.
		rec.Set(h.Field, nil)
		rec.PutReorderIntent(h.Field, &ordstore.ReorderIntent{Previous: previous, Scope: h.Scope})
		return nil
	default:
		target = previous
	}

	if scopeChanged {
		// The old group's ordinal is not a slot the record holds in the
		// new group; placement there is an insert, not a band move.
		previous = nil
	}

	rec.PutReorderIntent(h.Field, &ordstore.ReorderIntent{
		Position: target,
		Previous: previous,
		Scope:    h.Scope,
		Snapshot: true,
	})

	if rec.Persisted() {
		// The pending UPDATE must not write a stale ordinal; the setter
		// owns the column from here.
		rec.Set(h.Field, nil)
	} else {
		// Neutral placeholder so the INSERT cannot collide with a real
		// slot; corrected in AfterCreate.
		rec.Set(h.Field, 0)
	}
	return nil
}

// AfterCreate places the freshly inserted record at its cached target, or
// appends when none was requested. A create that never woke BeforeSave
// (nothing ordering-related dirty) still gets a slot; every new record
// ends up placed.
func (h *Sortable) AfterCreate(ctx context.Context, rec Record) error {
	intent, _ := rec.TakeReorderIntent(h.Field)
	var position int
	if intent != nil {
		position = intValue(intent.Position)
	}
	return h.setter.SetPosition(ctx, SetPositionParams{
		Record:   rec,
		Field:    h.Field,
		Scope:    h.Scope,
		Position: position,
	})
}

// AfterUpdate replays a full before-save snapshot verbatim; with only a
// bare cached target it falls back to the attribute's saved "was" value as
// the previous position.
func (h *Sortable) AfterUpdate(ctx context.Context, rec Record) error {
	intent, ok := rec.TakeReorderIntent(h.Field)
	if !ok {
		return nil
	}
	previous := intent.Previous
	if !intent.Snapshot && previous == nil {
		if change, ok := rec.SavedChanges()[h.Field]; ok {
			previous = intAttr(change.Was)
		}
	}
	return h.setter.SetPosition(ctx, SetPositionParams{
		Record:   rec,
		Field:    h.Field,
		Scope:    h.Scope,
		Position: intValue(intent.Position),
		Previous: previous,
	})
}

// AfterDestroy compacts the destroyed record's scope group and clears any
// cached state.
func (h *Sortable) AfterDestroy(ctx context.Context, rec Record) error {
	rec.TakeReorderIntent(h.Field)
	position := intAttr(rec.Get(h.Field))
	if position == nil || *position < 1 {
		return nil
	}
	return h.setter.CompactAfterRemoval(ctx, CompactParams{
		Record:   rec,
		Field:    h.Field,
		Scope:    h.Scope,
		Position: *position,
	})
}

// scopeChanged reports whether any resolved scope column is dirty.
func (h *Sortable) scopeChanged(rec Record) bool {
	for _, specifier := range h.Scope {
		column, ok := ResolveScopeColumn(h.meta, rec.Table(), specifier)
		if !ok {
			continue
		}
		if rec.WillSaveChangeToAttribute(column) {
			return true
		}
	}
	return false
}

// previousPosition is the pre-change ordinal: the dirty "was" value when
// the field is changing, the current value otherwise.
func (h *Sortable) previousPosition(rec Record) *int {
	if rec.WillSaveChangeToAttribute(h.Field) {
		if change, ok := rec.Changes()[h.Field]; ok {
			return intAttr(change.Was)
		}
		return nil
	}
	return intAttr(rec.Get(h.Field))
}

func intAttr(v any) *int {
	n, ok := ordstore.IntValue(v)
	if !ok {
		return nil
	}
	return &n
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

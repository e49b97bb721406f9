package sortable

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonibytes/ordstore/ordstore"
	"github.com/nonibytes/ordstore/ordstore/storage/sqlbuilder"
)

// spySetter records every call so hook routing can be asserted without a
// database.
type spySetter struct {
	invalid      bool
	setCalls     []SetPositionParams
	checkCalls   []CheckParams
	compactCalls []CompactParams
}

func (s *spySetter) SetPosition(ctx context.Context, p SetPositionParams) error {
	s.setCalls = append(s.setCalls, p)
	return nil
}

func (s *spySetter) PositionInvalid(ctx context.Context, p CheckParams) (bool, error) {
	s.checkCalls = append(s.checkCalls, p)
	return s.invalid, nil
}

func (s *spySetter) CompactAfterRemoval(ctx context.Context, p CompactParams) error {
	s.compactCalls = append(s.compactCalls, p)
	return nil
}

func TestBeforeSaveUntouchedOrderingIsNoOp(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1), "kind": "todo", "position": int64(2)})
	rec.Set("kind", "done")

	require.NoError(t, hooks.BeforeSave(context.Background(), rec))

	require.Empty(t, spy.checkCalls, "no validation query on an unrelated save")
	_, ok := rec.PeekReorderIntent("position")
	require.False(t, ok)
	n, _ := ordstore.IntValue(rec.Get("position"))
	require.Equal(t, 2, n)
}

func TestBeforeSaveNewRecordStashesIntent(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.NewRow("tasks", "id", map[string]any{"list_id": int64(1), "position": 3})

	require.NoError(t, hooks.BeforeSave(context.Background(), rec))

	// The INSERT carries a neutral placeholder; the real slot is applied in
	// the after hook.
	require.Equal(t, 0, rec.Get("position"))
	intent, ok := rec.PeekReorderIntent("position")
	require.True(t, ok)
	require.True(t, intent.Snapshot)
	require.Equal(t, 3, *intent.Position)
	require.Nil(t, intent.Previous)

	rec.Set("id", int64(10))
	rec.MarkSaved()
	require.NoError(t, hooks.AfterCreate(context.Background(), rec))

	require.Len(t, spy.setCalls, 1)
	require.Equal(t, 3, spy.setCalls[0].Position)
	require.Nil(t, spy.setCalls[0].Previous)
	require.Equal(t, []string{"list"}, spy.setCalls[0].Scope)
}

func TestBeforeSavePersistedMoveClearsFieldForSetter(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1), "position": int64(2)})
	rec.Set("position", 4)

	require.NoError(t, hooks.BeforeSave(context.Background(), rec))

	require.Nil(t, rec.Get("position"), "the pending UPDATE must not write a stale ordinal")

	rec.MarkSaved()
	require.NoError(t, hooks.AfterUpdate(context.Background(), rec))

	require.Len(t, spy.setCalls, 1)
	require.Equal(t, 4, spy.setCalls[0].Position)
	require.Equal(t, 2, *spy.setCalls[0].Previous)
}

func TestBeforeSaveInvalidPositionPersistedDefersToAuto(t *testing.T) {
	spy := &spySetter{invalid: true}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1), "position": int64(2)})
	rec.Set("position", 99)

	require.NoError(t, hooks.BeforeSave(context.Background(), rec))

	require.Nil(t, rec.Get("position"))
	intent, ok := rec.PeekReorderIntent("position")
	require.True(t, ok)
	require.False(t, intent.Snapshot)
	require.Nil(t, intent.Position)
	require.Equal(t, 2, *intent.Previous)

	rec.MarkSaved()
	require.NoError(t, hooks.AfterUpdate(context.Background(), rec))

	require.Len(t, spy.setCalls, 1)
	require.Zero(t, spy.setCalls[0].Position, "auto placement recomputes the slot")
	require.Equal(t, 2, *spy.setCalls[0].Previous)
}

func TestBeforeSaveInvalidPositionNewRecordAppends(t *testing.T) {
	spy := &spySetter{invalid: true}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.NewRow("tasks", "id", map[string]any{"list_id": int64(1), "position": -3})

	require.NoError(t, hooks.BeforeSave(context.Background(), rec))

	require.Equal(t, 0, rec.Get("position"))
	intent, ok := rec.PeekReorderIntent("position")
	require.True(t, ok)
	require.True(t, intent.Snapshot)
	require.Nil(t, intent.Position)
}

func TestBeforeSaveScopeChangeKeepsOrdinal(t *testing.T) {
	spy := &spySetter{invalid: true}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1), "position": int64(2)})
	rec.Set("list_id", int64(2))

	require.NoError(t, hooks.BeforeSave(context.Background(), rec))

	intent, ok := rec.PeekReorderIntent("position")
	require.True(t, ok)
	require.True(t, intent.Snapshot)
	require.Equal(t, 2, *intent.Position, "the pre-change ordinal carries into the new group")
	require.Nil(t, intent.Previous, "the old group's ordinal is not a slot in the new group")
}

func TestAfterUpdateBareIntentFallsBackToSavedChange(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1), "position": int64(5)})
	rec.PutReorderIntent("position", &ordstore.ReorderIntent{Scope: []string{"list"}})
	rec.Set("position", nil)
	rec.MarkSaved()

	require.NoError(t, hooks.AfterUpdate(context.Background(), rec))

	require.Len(t, spy.setCalls, 1)
	require.Equal(t, 5, *spy.setCalls[0].Previous)
}

func TestAfterCreateWithoutIntentAutoPlaces(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1)})

	require.NoError(t, hooks.AfterCreate(context.Background(), rec))

	require.Len(t, spy.setCalls, 1)
	require.Zero(t, spy.setCalls[0].Position, "a create that never woke BeforeSave still appends")
	require.Nil(t, spy.setCalls[0].Previous)
}

func TestAfterUpdateWithoutIntentIsNoOp(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "position": int64(2)})

	require.NoError(t, hooks.AfterUpdate(context.Background(), rec))
	require.Empty(t, spy.setCalls)
}

func TestAfterDestroyCompacts(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1), "position": int64(3)})

	require.NoError(t, hooks.AfterDestroy(context.Background(), rec))

	require.Len(t, spy.compactCalls, 1)
	require.Equal(t, 3, spy.compactCalls[0].Position)
}

func TestAfterDestroyUnpositionedIsNoOp(t *testing.T) {
	spy := &spySetter{}
	hooks := New(spy, scopeRegistry(), "position", "list")
	rec := ordstore.LoadedRow("tasks", "id", map[string]any{"id": int64(1), "list_id": int64(1), "position": nil})

	require.NoError(t, hooks.AfterDestroy(context.Background(), rec))
	require.Empty(t, spy.compactCalls)
}

// pipeline drives the hooks around real INSERT/UPDATE/DELETE statements the
// way a persistence layer would.
type pipeline struct {
	f     *fixture
	hooks *Sortable
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	return newScopedPipeline(t, "list")
}

func newScopedPipeline(t *testing.T, scope ...string) *pipeline {
	t.Helper()
	f := newFixture(t)
	return &pipeline{f: f, hooks: New(f.setter, f.meta, "position", scope...)}
}

func (p *pipeline) save(t *testing.T, rec *ordstore.Row) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.hooks.BeforeSave(ctx, rec))

	if rec.Persisted() {
		changes := rec.Changes()
		if len(changes) > 0 {
			columns := make([]string, 0, len(changes))
			for column := range changes {
				columns = append(columns, column)
			}
			sort.Strings(columns)

			b := sqlbuilder.New(p.f.adapter.PlaceholderStyle())
			u := sqlbuilder.NewUpdate(b, "tasks")
			for _, column := range columns {
				u.Set(column, changes[column].Now)
			}
			u.Where("id", "=", rec.PrimaryKey())
			_, err := u.Exec(ctx, p.f.db)
			require.NoError(t, err)
		}
		rec.MarkSaved()
		require.NoError(t, p.hooks.AfterUpdate(ctx, rec))
		return
	}

	res, err := p.f.db.Exec("INSERT INTO tasks (list_id, title, position) VALUES (?, ?, ?)",
		rec.Get("list_id"), rec.Get("title"), rec.Get("position"))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	rec.Set("id", id)
	rec.MarkSaved()
	require.NoError(t, p.hooks.AfterCreate(ctx, rec))
}

func (p *pipeline) destroy(t *testing.T, rec *ordstore.Row) {
	t.Helper()
	_, err := p.f.db.Exec("DELETE FROM tasks WHERE id = ?", rec.PrimaryKey())
	require.NoError(t, err)
	require.NoError(t, p.hooks.AfterDestroy(context.Background(), rec))
}

func (p *pipeline) create(t *testing.T, listID int64, title string, attrs map[string]any) *ordstore.Row {
	t.Helper()
	all := map[string]any{"list_id": listID, "title": title}
	for k, v := range attrs {
		all[k] = v
	}
	rec := ordstore.NewRow("tasks", "id", all)
	p.save(t, rec)
	return rec
}

func TestLifecycleCreatesDenseSequence(t *testing.T) {
	p := newPipeline(t)

	for _, title := range []string{"a", "b", "c", "d"} {
		p.create(t, testList, title, nil)
	}

	require.Equal(t, []string{"a", "b", "c", "d"}, p.f.order(t, testList))
}

func TestLifecycleCreateAtSlot(t *testing.T) {
	p := newPipeline(t)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		p.create(t, testList, title, nil)
	}

	p.create(t, testList, "new", map[string]any{"position": 3})

	require.Equal(t, []string{"a", "b", "new", "c", "d", "e"}, p.f.order(t, testList))
}

func TestLifecycleMoveViaSave(t *testing.T) {
	p := newPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}

	target.Set("position", 4)
	p.save(t, target)

	require.Equal(t, []string{"a", "c", "d", "b", "e"}, p.f.order(t, testList))
}

func TestLifecycleUnrelatedSaveKeepsPositions(t *testing.T) {
	p := newPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}

	target.Set("title", "b2")
	p.save(t, target)

	require.Equal(t, []string{"a", "b2", "c"}, p.f.order(t, testList))
}

func TestLifecycleClearedPositionAppends(t *testing.T) {
	p := newPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c", "d"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}

	target.Set("position", nil)
	p.save(t, target)

	require.Equal(t, []string{"a", "c", "d", "b"}, p.f.order(t, testList))
}

func TestLifecycleOversizedPositionAppends(t *testing.T) {
	p := newPipeline(t)
	for _, title := range []string{"a", "b", "c"} {
		p.create(t, testList, title, nil)
	}

	p.create(t, testList, "new", map[string]any{"position": 99})

	require.Equal(t, []string{"a", "b", "c", "new"}, p.f.order(t, testList))
}

func TestLifecycleScopeMoveKeepsOrdinal(t *testing.T) {
	p := newPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}
	for _, title := range []string{"x", "y"} {
		p.create(t, 2, title, nil)
	}

	target.Set("list_id", int64(2))
	p.save(t, target)

	// b lands at its old ordinal in the new group, displacing y.
	require.Equal(t, []string{"x", "b", "y"}, p.f.order(t, 2))

	// The vacated group is not compacted automatically; a gap remains.
	var positions []int64
	rows, err := p.f.db.Query("SELECT position FROM tasks WHERE list_id = ? ORDER BY position", testList)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var pos int64
		require.NoError(t, rows.Scan(&pos))
		positions = append(positions, pos)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []int64{1, 3}, positions)
}

func TestLifecycleScopeMoveIntoLargerGroup(t *testing.T) {
	p := newPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}
	for _, title := range []string{"x", "y", "z"} {
		p.create(t, 2, title, nil)
	}

	target.Set("list_id", int64(2))
	p.save(t, target)

	// Every row at or above the entry slot steps up; the group stays dense.
	require.Equal(t, []string{"x", "b", "y", "z"}, p.f.order(t, 2))
}

func TestLifecycleUnscopedCreates(t *testing.T) {
	p := newScopedPipeline(t)

	for _, title := range []string{"a", "b", "c"} {
		p.create(t, testList, title, nil)
	}

	require.Equal(t, []string{"a", "b", "c"}, p.f.order(t, testList))
}

func TestLifecycleUnscopedMove(t *testing.T) {
	p := newScopedPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c", "d"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}

	target.Set("position", 4)
	p.save(t, target)

	require.Equal(t, []string{"a", "c", "d", "b"}, p.f.order(t, testList))
}

func TestLifecycleUnscopedDestroyCompacts(t *testing.T) {
	p := newScopedPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c", "d"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}

	p.destroy(t, target)

	require.Equal(t, []string{"a", "c", "d"}, p.f.order(t, testList))
}

func TestLifecycleRepeatedSavesStayDense(t *testing.T) {
	p := newPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c"} {
		rec := p.create(t, testList, title, nil)
		if title == "b" {
			target = rec
		}
	}

	// Save the same instance repeatedly without touching ordering fields;
	// reorder writes from earlier placements must not leak back in.
	for i := 0; i < 3; i++ {
		target.Set("title", "b2")
		p.save(t, target)
		require.Equal(t, []string{"a", "b2", "c"}, p.f.order(t, testList))
	}
}

func TestLifecycleDestroyCompacts(t *testing.T) {
	p := newPipeline(t)
	var target *ordstore.Row
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		rec := p.create(t, testList, title, nil)
		if title == "c" {
			target = rec
		}
	}

	p.destroy(t, target)

	require.Equal(t, []string{"a", "b", "d", "e"}, p.f.order(t, testList))
}

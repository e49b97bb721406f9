package sortable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonibytes/ordstore/ordstore"
)

func TestPositionInvalidNilPosition(t *testing.T) {
	f := newFixture(t)

	fresh := ordstore.NewRow("tasks", "id", map[string]any{"list_id": testList})
	invalid, err := f.setter.PositionInvalid(context.Background(), CheckParams{
		Record: fresh,
		Field:  "position",
		Scope:  []string{"list"},
	})
	require.NoError(t, err)
	require.False(t, invalid, "a new record without a requested slot is appended, not rejected")

	ids := f.seedList(t, testList, "a")
	invalid, err = f.setter.PositionInvalid(context.Background(), CheckParams{
		Record: f.load(t, ids[0]),
		Field:  "position",
		Scope:  []string{"list"},
	})
	require.NoError(t, err)
	require.True(t, invalid, "a persisted record losing its slot must be recomputed")
}

func TestPositionInvalidNonPositive(t *testing.T) {
	f := newFixture(t)
	rec := ordstore.NewRow("tasks", "id", map[string]any{"list_id": testList})

	for _, pos := range []int{0, -1} {
		invalid, err := f.setter.PositionInvalid(context.Background(), CheckParams{
			Record:   rec,
			Field:    "position",
			Scope:    []string{"list"},
			Position: ordstore.IntPtr(pos),
		})
		require.NoError(t, err)
		require.True(t, invalid, "position %d", pos)
	}
}

func TestPositionInvalidBeyondDenseRun(t *testing.T) {
	f := newFixture(t)
	f.seedList(t, testList, "a", "b", "c")
	rec := ordstore.NewRow("tasks", "id", map[string]any{"list_id": testList})

	invalid, err := f.setter.PositionInvalid(context.Background(), CheckParams{
		Record:   rec,
		Field:    "position",
		Scope:    []string{"list"},
		Position: ordstore.IntPtr(4),
	})
	require.NoError(t, err)
	require.False(t, invalid, "one past the last sibling is the append slot")

	invalid, err = f.setter.PositionInvalid(context.Background(), CheckParams{
		Record:   rec,
		Field:    "position",
		Scope:    []string{"list"},
		Position: ordstore.IntPtr(5),
	})
	require.NoError(t, err)
	require.True(t, invalid)
}

func TestPositionInvalidExcludesSelfWhenPersisted(t *testing.T) {
	f := newFixture(t)
	ids := f.seedList(t, testList, "a", "b", "c")
	rec := f.load(t, ids[0])

	invalid, err := f.setter.PositionInvalid(context.Background(), CheckParams{
		Record:   rec,
		Field:    "position",
		Scope:    []string{"list"},
		Position: ordstore.IntPtr(3),
	})
	require.NoError(t, err)
	require.False(t, invalid)

	invalid, err = f.setter.PositionInvalid(context.Background(), CheckParams{
		Record:   rec,
		Field:    "position",
		Scope:    []string{"list"},
		Position: ordstore.IntPtr(4),
	})
	require.NoError(t, err)
	require.True(t, invalid, "two siblings hold slots 1..3 for this record")
}

func TestPositionInvalidScoped(t *testing.T) {
	f := newFixture(t)
	f.seedList(t, testList, "a", "b", "c")
	rec := ordstore.NewRow("tasks", "id", map[string]any{"list_id": int64(2)})

	invalid, err := f.setter.PositionInvalid(context.Background(), CheckParams{
		Record:   rec,
		Field:    "position",
		Scope:    []string{"list"},
		Position: ordstore.IntPtr(2),
	})
	require.NoError(t, err)
	require.True(t, invalid, "the other list is empty, only slot 1 exists")
}

func TestPositionInvalidUnknownColumn(t *testing.T) {
	f := newFixture(t)
	rec := ordstore.NewRow("tasks", "id", map[string]any{"list_id": testList})

	_, err := f.setter.PositionInvalid(context.Background(), CheckParams{
		Record:   rec,
		Field:    "rank",
		Position: ordstore.IntPtr(1),
	})
	require.True(t, ordstore.IsKind(err, ordstore.ErrUnknownColumn))
}

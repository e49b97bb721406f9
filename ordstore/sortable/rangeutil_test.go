package sortable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpanAscending(t *testing.T) {
	require.Equal(t, []int{2, 3, 4, 5}, Span(2, 5))
}

func TestSpanReversedBounds(t *testing.T) {
	require.Equal(t, []int{2, 3, 4, 5}, Span(5, 2))
}

func TestSpanSingle(t *testing.T) {
	require.Equal(t, []int{3}, Span(3, 3))
}

func TestSpanNegative(t *testing.T) {
	require.Equal(t, []int{-1, 0, 1}, Span(1, -1))
}

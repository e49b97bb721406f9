package sortable

// Span returns the inclusive run of integers between a and b in ascending
// order, regardless of which bound is larger. The setter uses its ends as
// the band of sibling positions a move displaces.
func Span(a, b int) []int {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	out := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, n)
	}
	return out
}

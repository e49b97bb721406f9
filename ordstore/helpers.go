package ordstore

// IntValue normalizes the integer shapes a database driver or caller can
// hand back for an ordinal column. Returns false for nil and non-numeric
// values.
func IntValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// IntPtr is a convenience for optional position arguments.
func IntPtr(n int) *int { return &n }

package dispatch

// PadEdge returns a copy of xs resized to n. Short series repeat their last
// value and an empty series becomes zeros.
func PadEdge(xs []float64, n int) []float64 {
	out := make([]float64, n)
	if len(xs) == 0 {
		return out
	}
	copy(out, xs)
	last := xs[len(xs)-1]
	for i := len(xs); i < n; i++ {
		out[i] = last
	}
	return out
}

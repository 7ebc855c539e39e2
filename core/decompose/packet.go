package decompose

// node is one wavelet-packet node. Path is the sequence of 'a'
// (approximation) and 'd' (detail) branches from the root.
type node struct {
	path string
	data []float64
}

// tree is a full wavelet-packet decomposition to a fixed depth.
type tree struct {
	wavelet Wavelet
	level   int
	rootLen int
	nodes   map[string]*node
	// leaves holds the deepest nodes ordered by increasing frequency.
	leaves []*node
}

// decomposeTree splits every node down to the given level.
func decomposeTree(x []float64, w Wavelet, level int) *tree {
	t := &tree{wavelet: w, level: level, rootLen: len(x), nodes: map[string]*node{}}
	frontier := []*node{{path: "", data: x}}
	for l := 0; l < level; l++ {
		next := make([]*node, 0, 2*len(frontier))
		for _, n := range frontier {
			a, d := dwt(n.data, w)
			na := &node{path: n.path + "a", data: a}
			nd := &node{path: n.path + "d", data: d}
			t.nodes[na.path] = na
			t.nodes[nd.path] = nd
			next = append(next, na, nd)
		}
		frontier = next
	}
	for _, p := range frequencyOrder(level) {
		if n, ok := t.nodes[p]; ok {
			t.leaves = append(t.leaves, n)
		}
	}
	return t
}

// frequencyOrder lists the leaf paths of a packet tree sorted by the
// frequency band they cover. Detail branches mirror the spectrum, which
// gives a Gray-code ordering.
func frequencyOrder(level int) []string {
	if level <= 0 {
		return []string{""}
	}
	order := []string{"a", "d"}
	for l := 1; l < level; l++ {
		next := make([]string, 0, 2*len(order))
		for _, p := range order {
			next = append(next, "a"+p)
		}
		for i := len(order) - 1; i >= 0; i-- {
			next = append(next, "d"+order[i])
		}
		order = next
	}
	return order
}

// reconstruct synthesises the signal carried by the kept leaves only.
func (t *tree) reconstruct(keep map[string]bool) []float64 {
	out := t.synth("", t.rootLen, keep)
	if out == nil {
		return make([]float64, t.rootLen)
	}
	return out
}

// synth returns nil when no kept leaf lies below path.
func (t *tree) synth(path string, n int, keep map[string]bool) []float64 {
	if len(path) == t.level {
		if !keep[path] {
			return nil
		}
		return t.nodes[path].data
	}
	a := t.synth(path+"a", len(t.nodes[path+"a"].data), keep)
	d := t.synth(path+"d", len(t.nodes[path+"d"].data), keep)
	if a == nil && d == nil {
		return nil
	}
	return idwt(a, d, t.wavelet, n)
}

package dedupe

import "sort"

// unionFind tracks clusters of contact indices.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}

// members returns the indices in root's cluster in ascending order.
func (uf *unionFind) members(root int) []int {
	var out []int
	for i := range uf.parent {
		if uf.find(i) == root {
			out = append(out, i)
		}
	}
	return out
}

// clusters returns every cluster ordered by its smallest index.
func (uf *unionFind) clusters() [][]int {
	byRoot := make(map[int][]int)
	for i := range uf.parent {
		r := uf.find(i)
		byRoot[r] = append(byRoot[r], i)
	}
	out := make([][]int, 0, len(byRoot))
	for _, m := range byRoot {
		out = append(out, m)
	}
	sort.Slice(out, func(a, b int) bool { return out[a][0] < out[b][0] })
	return out
}

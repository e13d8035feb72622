package decimate

import "github.com/justapithecus/meshforge/mesh"

// candidate is a pending edge collapse. gu and gv record the vertex
// generations at push time; a mismatch on pop means the entry is stale.
type candidate struct {
	cost   float64
	u, v   uint32
	gu, gv uint32
	pos    mesh.Vec3
}

// collapseHeap is a min-heap of candidates ordered by cost.
// It implements container/heap.Interface.
type collapseHeap []candidate

func (h collapseHeap) Len() int { return len(h) }

func (h collapseHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	if h[i].u != h[j].u {
		return h[i].u < h[j].u
	}
	return h[i].v < h[j].v
}

func (h collapseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *collapseHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *collapseHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

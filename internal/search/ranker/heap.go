package ranker

import "container/heap"

// resultHeap is a min-heap keyed by rank order: the worst-ranked result sits
// at the root so it can be evicted as better ones arrive.
type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return ranksBefore(h[j], h[i]) }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }

func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topK selects the k best results without sorting the whole slice.
func topK(results []Result, k int) []Result {
	h := make(resultHeap, 0, k+1)
	heap.Init(&h)
	for _, r := range results {
		heap.Push(&h, r)
		if h.Len() > k {
			heap.Pop(&h)
		}
	}
	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Result)
	}
	return out
}

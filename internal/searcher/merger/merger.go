// Package merger selects the best-scoring postings of a result set.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer/index"
)

// TopN returns the limit highest-scoring postings ordered by descending
// score. Equal scores are ordered by ascending document id. The input is
// left untouched.
func TopN(postings index.PostingList, limit int) index.PostingList {
	if limit <= 0 || len(postings) == 0 {
		return nil
	}
	h := &postingHeap{}
	heap.Init(h)
	for _, p := range postings {
		heap.Push(h, p)
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make(index.PostingList, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(index.Posting)
	}
	return result
}

// postingHeap is a min-heap on rank: the root is the worst posting kept.
type postingHeap []index.Posting

func (h postingHeap) Len() int { return len(h) }

func (h postingHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[j].RanksBefore(h[i])
	}
	return h[i].DocID > h[j].DocID
}

func (h postingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *postingHeap) Push(x interface{}) {
	*h = append(*h, x.(index.Posting))
}

func (h *postingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

package index

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndexAdd(t *testing.T) {
	mi := NewMemoryIndex()
	mi.Add(0, "about")
	mi.Add(0, "about")
	mi.Add(1, "about")
	mi.Add(1, "anything")

	assert.Equal(t, PostingList{{DocID: 0, Score: 2}, {DocID: 1, Score: 1}}, mi.Search("about"))
	assert.Equal(t, 2, mi.DocFreq("about"))
	assert.Equal(t, 1, mi.DocFreq("anything"))
	assert.Equal(t, 0, mi.DocFreq("missing"))
	assert.Nil(t, mi.Search("missing"))
	assert.Equal(t, 2, mi.Terms())
	assert.Equal(t, 3, mi.Postings())
}

func TestMemoryIndexSearchReturnsCopy(t *testing.T) {
	mi := NewMemoryIndex()
	mi.Add(3, "term")

	got := mi.Search("term")
	got[0].Score = 100

	assert.Equal(t, float64(1), mi.Search("term")[0].Score)
}

func TestMemoryIndexStatsSorted(t *testing.T) {
	mi := NewMemoryIndex()
	mi.Add(0, "zebra")
	mi.Add(0, "apple")
	mi.Add(1, "apple")

	assert.Equal(t, []TermStat{{Term: "apple", DocFreq: 2}, {Term: "zebra", DocFreq: 1}}, mi.Stats())

	snap := mi.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "apple", snap[0].Term)
	assert.Equal(t, []uint32{0, 1}, snap[0].Postings.DocIDs())
}

func TestAverageLength(t *testing.T) {
	assert.Zero(t, AverageLength(nil))
	assert.InDelta(t, 2.0, AverageLength([]int{4}), 1e-12)
	// 4/2 = 2, then (2*2+6)/3 truncates to 3.
	assert.InDelta(t, 3.0, AverageLength([]int{4, 6}), 1e-12)
	// 6/2 = 3, (2*3+2)/3 = 2, (3*2+2)/4 = 2.
	assert.InDelta(t, 2.0, AverageLength([]int{6, 2, 2}), 1e-12)
	// A single one-word document folds to zero.
	assert.Zero(t, AverageLength([]int{1}))
}

func TestTFNorm(t *testing.T) {
	p := DefaultBM25()
	assert.Zero(t, p.TFNorm(3, 10, 0))

	// dl == avdl reduces the length factor to one.
	assert.InDelta(t, 2*2.75/(1.75+2), p.TFNorm(2, 5, 5), 1e-12)

	// Longer documents score lower for the same frequency.
	assert.Greater(t, p.TFNorm(1, 2, 5), p.TFNorm(1, 20, 5))
}

func TestIDF(t *testing.T) {
	assert.InDelta(t, 1.0, IDF(2, 1), 1e-12)
	assert.Zero(t, IDF(4, 4))
	assert.Zero(t, IDF(4, 0))
}

func TestApplyBM25(t *testing.T) {
	mi := NewMemoryIndex()
	// doc0: "alpha alpha beta", doc1: "beta gamma"
	mi.Add(0, "alpha")
	mi.Add(0, "alpha")
	mi.Add(0, "beta")
	mi.Add(1, "beta")
	mi.Add(1, "gamma")
	lengths := []int{3, 2}

	params := DefaultBM25()
	avdl := mi.ApplyBM25(params, lengths)
	assert.InDelta(t, AverageLength(lengths), avdl, 1e-12)

	alpha := mi.Search("alpha")
	require.Len(t, alpha, 1)
	want := params.TFNorm(2, 3, avdl) * math.Log2(2)
	assert.InDelta(t, want, alpha[0].Score, 1e-12)

	// A term in every document carries no weight.
	for _, p := range mi.Search("beta") {
		assert.Zero(t, p.Score)
	}
}

func TestPostingList(t *testing.T) {
	l := PostingList{{DocID: 1}, {DocID: 4}, {DocID: 9}}
	assert.True(t, l.Ascending())
	assert.False(t, PostingList{{DocID: 2}, {DocID: 2}}.Ascending())
	assert.Nil(t, PostingList{}.Clone())

	a := Posting{DocID: 7, Score: 0.1}
	b := Posting{DocID: 7, Score: 0.9}
	assert.True(t, a.Same(b))
	assert.True(t, b.RanksBefore(a))
	assert.False(t, a.RanksBefore(b))
	assert.Equal(t, "7:0.9", b.String())
}

func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := NewMemoryIndex()
	terms := []string{"search", "engine", "inverted", "index", "query", "processing"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, term := range terms {
			mi.Add(uint32(i), term)
		}
	}
}

func BenchmarkMemoryIndexSearch(b *testing.B) {
	mi := NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		mi.Add(uint32(i), "search")
		mi.Add(uint32(i), fmt.Sprintf("term%d", i%100))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = mi.Search("search")
	}
}

package index

import (
	"sort"
)

// MemoryIndex maps terms to posting lists. It is filled by a single
// writer in ascending document order and read concurrently afterwards;
// it does no locking of its own.
type MemoryIndex struct {
	lists    map[string]PostingList
	postings int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		lists: make(map[string]PostingList),
	}
}

// Add records one occurrence of term in docID. docID must be greater than
// or equal to every docID added before it, which keeps each list sorted
// and lets the duplicate check look only at the tail.
func (m *MemoryIndex) Add(docID uint32, term string) {
	list := m.lists[term]
	if n := len(list); n > 0 && list[n-1].DocID == docID {
		list[n-1].Score++
		return
	}
	m.lists[term] = append(list, Posting{DocID: docID, Score: 1})
	m.postings++
}

// Search returns a copy of the postings for term, or nil when the term is
// unknown.
func (m *MemoryIndex) Search(term string) PostingList {
	return m.lists[term].Clone()
}

func (m *MemoryIndex) DocFreq(term string) int {
	return len(m.lists[term])
}

// Terms returns the number of distinct terms.
func (m *MemoryIndex) Terms() int {
	return len(m.lists)
}

// Postings returns the total number of postings across all terms.
func (m *MemoryIndex) Postings() int {
	return m.postings
}

// Stats lists every term with its document frequency, sorted by term.
func (m *MemoryIndex) Stats() []TermStat {
	stats := make([]TermStat, 0, len(m.lists))
	for term, list := range m.lists {
		stats = append(stats, TermStat{Term: term, DocFreq: len(list)})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Term < stats[j].Term
	})
	return stats
}

// Snapshot copies the whole index, sorted by term.
func (m *MemoryIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(m.lists))
	for term, list := range m.lists {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: list.Clone(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// ApplyBM25 replaces every raw term frequency with its BM25 score.
// docLengths is indexed by DocID. It returns the average document length
// used for normalisation.
func (m *MemoryIndex) ApplyBM25(params BM25Params, docLengths []int) float64 {
	avdl := AverageLength(docLengths)
	totalDocs := len(docLengths)
	for _, list := range m.lists {
		idf := IDF(totalDocs, len(list))
		for i := range list {
			dl := float64(docLengths[list[i].DocID])
			list[i].Score = params.TFNorm(list[i].Score, dl, avdl) * idf
		}
	}
	return avdl
}

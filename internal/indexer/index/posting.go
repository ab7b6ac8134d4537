package index

import "strconv"

// Posting records a term's occurrence in a document. During a build
// Score holds the raw term frequency; once the engine is ready it holds
// the BM25 relevance score.
type Posting struct {
	DocID uint32  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Same reports whether p and o refer to the same document. Scores are
// ignored.
func (p Posting) Same(o Posting) bool {
	return p.DocID == o.DocID
}

// RanksBefore orders postings by descending score.
func (p Posting) RanksBefore(o Posting) bool {
	return p.Score > o.Score
}

func (p Posting) String() string {
	return strconv.FormatUint(uint64(p.DocID), 10) + ":" + strconv.FormatFloat(p.Score, 'g', 6, 64)
}

// PostingList holds one term's postings in strictly increasing DocID
// order.
type PostingList []Posting

// Clone returns a copy that shares no memory with l.
func (l PostingList) Clone() PostingList {
	if len(l) == 0 {
		return nil
	}
	out := make(PostingList, len(l))
	copy(out, l)
	return out
}

// DocIDs returns the document ids of l in list order.
func (l PostingList) DocIDs() []uint32 {
	ids := make([]uint32, len(l))
	for i, p := range l {
		ids[i] = p.DocID
	}
	return ids
}

// Ascending reports whether the DocIDs of l are strictly increasing.
func (l PostingList) Ascending() bool {
	for i := 1; i < len(l); i++ {
		if l[i-1].DocID >= l[i].DocID {
			return false
		}
	}
	return true
}

type TermEntry struct {
	Term     string
	Postings PostingList
}

// TermStat is a vocabulary entry with its document frequency.
type TermStat struct {
	Term    string
	DocFreq int
}

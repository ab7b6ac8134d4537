// Package matcher finds vocabulary words within a bounded prefix edit
// distance of a query word. Candidates come from a k-gram index over the
// vocabulary and are verified with an exact distance computation.
package matcher

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
)

// Vocabulary is the read-only view of an index the matcher is built from.
type Vocabulary interface {
	Vocabulary() []index.TermStat
}

// Matcher is immutable once built and safe for concurrent use.
type Matcher struct {
	k       int
	dummy   byte
	padding string
	// words is ordered by descending document frequency, then by term.
	// A word's id is its position here.
	words  []string
	kgrams map[string][]uint32
	logger *slog.Logger
}

// Build indexes every vocabulary word under each k-gram of the word
// prefixed with k-1 copies of dummy. dummy must not be a letter so padded
// grams never collide with grams from inside a word.
func Build(vocab Vocabulary, k int, dummy byte) (*Matcher, error) {
	if k < 1 {
		return nil, fmt.Errorf("k-gram length must be at least 1, got %d: %w", k, apperrors.ErrInvalidInput)
	}
	if isLetter(dummy) {
		return nil, fmt.Errorf("dummy character %q is a letter: %w", dummy, apperrors.ErrInvalidInput)
	}
	start := time.Now()
	stats := vocab.Vocabulary()
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].DocFreq != stats[j].DocFreq {
			return stats[i].DocFreq > stats[j].DocFreq
		}
		return stats[i].Term < stats[j].Term
	})

	m := &Matcher{
		k:       k,
		dummy:   dummy,
		padding: strings.Repeat(string(dummy), k-1),
		words:   make([]string, len(stats)),
		kgrams:  make(map[string][]uint32),
		logger:  slog.Default().With("component", "matcher"),
	}
	for id, st := range stats {
		m.words[id] = st.Term
		m.eachGram(st.Term, func(gram string) {
			m.kgrams[gram] = append(m.kgrams[gram], uint32(id))
		})
	}
	m.logger.Info("k-gram index built",
		"k", k,
		"words", len(m.words),
		"kgrams", len(m.kgrams),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return m, nil
}

func (m *Matcher) eachGram(word string, fn func(gram string)) {
	padded := m.padding + word
	for pos := 0; pos+m.k <= len(padded); pos++ {
		fn(padded[pos : pos+m.k])
	}
}

// ApproximateMatches returns up to n vocabulary words whose prefix edit
// distance from word is at most maxED, most frequent first.
//
// When word is shorter than maxED+k-1 the k-gram filter cannot prune
// anything and the n most frequent words are returned unverified.
// Otherwise only candidates sharing at least len(word)-k*maxED+1 padded
// k-grams with word survive, and the first n of them are verified, so
// fewer than n results may come back even if more words qualify.
func (m *Matcher) ApproximateMatches(word string, maxED, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(word) < maxED+m.k-1 {
		out := make([]string, min(n, len(m.words)))
		copy(out, m.words)
		return out
	}

	var lists [][]uint32
	m.eachGram(word, func(gram string) {
		if list, ok := m.kgrams[gram]; ok {
			lists = append(lists, list)
		}
	})
	merged := MergeInvertedLists(lists)

	jump := max(0, len(word)-m.k*maxED)
	var candidates []uint32
	for i, id := range merged {
		if i+jump >= len(merged) || merged[i+jump] != id {
			continue
		}
		if len(candidates) == 0 || candidates[len(candidates)-1] != id {
			candidates = append(candidates, id)
		}
	}

	var matches []string
	for _, id := range candidates[:min(n, len(candidates))] {
		if EditDistance(word, m.words[id], true) <= maxED {
			matches = append(matches, m.words[id])
		}
	}
	m.logger.Debug("approximate matches",
		"word", word,
		"max_ed", maxED,
		"merged", len(merged),
		"candidates", len(candidates),
		"matches", len(matches),
	)
	return matches
}

func (m *Matcher) K() int { return m.k }

func (m *Matcher) DummyChar() byte { return m.dummy }

// Words returns the vocabulary in id order.
func (m *Matcher) Words() []string {
	out := make([]string, len(m.words))
	copy(out, m.words)
	return out
}

// KGramCount returns the number of distinct padded k-grams.
func (m *Matcher) KGramCount() int { return len(m.kgrams) }

// KGramList returns a copy of the ascending word ids filed under gram.
// Ids repeat when a gram occurs more than once in a word.
func (m *Matcher) KGramList(gram string) []uint32 {
	list := m.kgrams[gram]
	if len(list) == 0 {
		return nil
	}
	out := make([]uint32, len(list))
	copy(out, list)
	return out
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

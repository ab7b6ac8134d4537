// Package executor answers conjunctive record searches and word
// suggestions against a built index.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
)

const snippetLength = 240

type Hit struct {
	DocID   uint32  `json:"doc_id"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

type SearchResult struct {
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	TotalHits int      `json:"total_hits"`
	Results   []Hit    `json:"results"`
}

type SuggestResult struct {
	Query           string   `json:"query"`
	Word            string   `json:"word"`
	MaxEditDistance int      `json:"max_edit_distance"`
	Suggestions     []string `json:"suggestions"`
}

// Processor binds a ready engine to the k-gram matcher built from its
// vocabulary. It holds no mutable state and is safe for concurrent use.
type Processor struct {
	engine  *indexer.Engine
	matcher *matcher.Matcher
	logger  *slog.Logger
}

func New(engine *indexer.Engine, k int, dummy byte) (*Processor, error) {
	if !engine.Ready() {
		return nil, fmt.Errorf("creating query processor: %w", apperrors.ErrNotReady)
	}
	m, err := matcher.Build(engine, k, dummy)
	if err != nil {
		return nil, fmt.Errorf("building k-gram matcher: %w", err)
	}
	return &Processor{
		engine:  engine,
		matcher: m,
		logger:  slog.Default().With("component", "query-processor"),
	}, nil
}

func (p *Processor) Engine() *indexer.Engine { return p.engine }

func (p *Processor) Matcher() *matcher.Matcher { return p.matcher }

// SearchRecords returns the ids of up to n documents containing every
// query term, best first.
func (p *Processor) SearchRecords(n int, query string) []uint32 {
	plan := parser.Parse(query)
	return merger.TopN(p.match(plan.Terms), n).DocIDs()
}

// SimilarWords suggests up to n completions or corrections of the last
// query token, each prefixed with the text that preceded it.
func (p *Processor) SimilarWords(n int, query string) []string {
	prefix, word := parser.SplitLast(query)
	if word == "" {
		return []string{}
	}
	matches := p.matcher.ApproximateMatches(word, MaxEditDistance(word), n)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = prefix + m
	}
	return out
}

// MaxEditDistance is the distance allowed when correcting word: one edit
// per three bytes beyond the first.
func MaxEditDistance(word string) int {
	return (len(word) - 1) / 3
}

// Execute runs a parsed query and resolves the hits to documents.
func (p *Processor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := p.match(plan.Terms)
	top := merger.TopN(matched, limit)
	hits := make([]Hit, 0, len(top))
	for _, posting := range top {
		doc, err := p.engine.Document(posting.DocID)
		if err != nil {
			return nil, fmt.Errorf("resolving document %d: %w", posting.DocID, err)
		}
		hits = append(hits, Hit{
			DocID:   posting.DocID,
			URL:     doc.URL,
			Score:   posting.Score,
			Snippet: snippet(doc.Text),
		})
	}
	p.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"total_hits", len(matched),
		"results", len(hits),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		Terms:     plan.Terms,
		TotalHits: len(matched),
		Results:   hits,
	}, nil
}

// Suggest is SimilarWords with the details the API reports.
func (p *Processor) Suggest(ctx context.Context, query string, limit int) (*SuggestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, word := parser.SplitLast(query)
	return &SuggestResult{
		Query:           query,
		Word:            word,
		MaxEditDistance: MaxEditDistance(word),
		Suggestions:     p.SimilarWords(limit, query),
	}, nil
}

// match intersects the postings of every term, starting from the first.
func (p *Processor) match(terms []string) index.PostingList {
	if len(terms) == 0 {
		return nil
	}
	acc := p.engine.Postings(terms[0])
	for _, term := range terms[1:] {
		if len(acc) == 0 {
			return nil
		}
		acc = Intersect(p.engine.Postings(term), acc)
	}
	return acc
}

// Intersect returns a posting for every document in both lists, scored
// with the product of the two input scores. Both lists must be ascending
// by document id; so is the result.
func Intersect(list1, list2 index.PostingList) index.PostingList {
	var result index.PostingList
	i, j := 0, 0
	for i < len(list1) && j < len(list2) {
		switch {
		case list1[i].DocID < list2[j].DocID:
			i++
		case list1[i].DocID > list2[j].DocID:
			j++
		default:
			result = append(result, index.Posting{
				DocID: list1[i].DocID,
				Score: list1[i].Score * list2[j].Score,
			})
			i++
			j++
		}
	}
	return result
}

func snippet(text string) string {
	if len(text) <= snippetLength {
		return text
	}
	cut := snippetLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// Package indexer builds the in-memory inverted index over a corpus and
// answers read-only queries against it once the build has finished.
package indexer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
)

// Document is one indexed document. Consecutive records with the same
// URL are merged into a single Document whose Text joins theirs with a
// space.
type Document struct {
	URL    string `json:"url"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// Stats summarises a built index.
type Stats struct {
	Records       int           `json:"records"`
	Documents     int           `json:"documents"`
	Terms         int           `json:"terms"`
	Postings      int           `json:"postings"`
	AvgDocLength  float64       `json:"avg_doc_length"`
	BuildDuration time.Duration `json:"build_duration"`
}

// Engine owns the inverted index and the document table. It is filled
// once by Build and is immutable afterwards, so any number of goroutines
// may query a ready Engine. Querying before Build has succeeded is a
// programming error and panics.
type Engine struct {
	params index.BM25Params
	index  *index.MemoryIndex
	docs   []Document
	stats  Stats
	ready  atomic.Bool
	logger *slog.Logger
}

func NewEngine(params index.BM25Params) *Engine {
	return &Engine{
		params: params,
		index:  index.NewMemoryIndex(),
		logger: slog.Default().With("component", "indexer"),
	}
}

// Build reads every record from r, assigns document ids in corpus order
// and scores all postings with BM25. A malformed record aborts the build
// and leaves the engine empty.
func (e *Engine) Build(r ingestion.RecordReader) error {
	if e.ready.Load() {
		return fmt.Errorf("engine already built: %w", apperrors.ErrInvalidInput)
	}
	start := time.Now()
	records := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.reset()
			return fmt.Errorf("reading corpus: %w", err)
		}
		records++
		e.add(rec)
	}

	lengths := make([]int, len(e.docs))
	for i, doc := range e.docs {
		lengths[i] = doc.Length
	}
	avdl := e.index.ApplyBM25(e.params, lengths)

	e.stats = Stats{
		Records:       records,
		Documents:     len(e.docs),
		Terms:         e.index.Terms(),
		Postings:      e.index.Postings(),
		AvgDocLength:  avdl,
		BuildDuration: time.Since(start),
	}
	e.ready.Store(true)
	e.logger.Info("index built",
		"records", records,
		"documents", e.stats.Documents,
		"terms", e.stats.Terms,
		"postings", e.stats.Postings,
		"avg_doc_length", avdl,
		"duration_ms", e.stats.BuildDuration.Milliseconds(),
	)
	return nil
}

func (e *Engine) add(rec ingestion.Record) {
	last := len(e.docs) - 1
	if last >= 0 && e.docs[last].URL == rec.URL {
		e.docs[last].Text += " " + rec.Text
	} else {
		e.docs = append(e.docs, Document{URL: rec.URL, Text: rec.Text})
		last++
	}
	docID := uint32(last)
	tokenizer.Each(rec.Text, func(term string) {
		e.index.Add(docID, term)
		e.docs[last].Length++
	})
	e.logger.Debug("record indexed", "line", rec.Line, "doc_id", docID, "doc_length", e.docs[last].Length)
}

func (e *Engine) reset() {
	e.index = index.NewMemoryIndex()
	e.docs = nil
}

func (e *Engine) mustBeReady() {
	if !e.ready.Load() {
		panic("indexer: engine queried before Build completed")
	}
}

// Ready reports whether Build has completed.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Postings returns a copy of the posting list for a lower-case term, or
// nil when the term does not occur in the corpus.
func (e *Engine) Postings(term string) index.PostingList {
	e.mustBeReady()
	return e.index.Search(term)
}

func (e *Engine) DocumentFrequency(term string) int {
	e.mustBeReady()
	return e.index.DocFreq(term)
}

func (e *Engine) NumDocuments() int {
	e.mustBeReady()
	return len(e.docs)
}

func (e *Engine) Document(docID uint32) (Document, error) {
	e.mustBeReady()
	if int(docID) >= len(e.docs) {
		return Document{}, fmt.Errorf("document %d of %d: %w", docID, len(e.docs), apperrors.ErrOutOfRange)
	}
	return e.docs[docID], nil
}

func (e *Engine) URLOf(docID uint32) (string, error) {
	doc, err := e.Document(docID)
	if err != nil {
		return "", err
	}
	return doc.URL, nil
}

func (e *Engine) TextOf(docID uint32) (string, error) {
	doc, err := e.Document(docID)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// Vocabulary lists every distinct term with its document frequency,
// sorted by term.
func (e *Engine) Vocabulary() []index.TermStat {
	e.mustBeReady()
	return e.index.Stats()
}

// Terms copies the full scored index, sorted by term.
func (e *Engine) Terms() []index.TermEntry {
	e.mustBeReady()
	return e.index.Snapshot()
}

func (e *Engine) Stats() Stats {
	e.mustBeReady()
	return e.stats
}

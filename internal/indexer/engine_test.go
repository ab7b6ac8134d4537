package indexer

import (
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEngine(t testing.TB, records ...ingestion.Record) *Engine {
	t.Helper()
	e := NewEngine(index.DefaultBM25())
	require.NoError(t, e.Build(ingestion.FromRecords(records...)))
	return e
}

func sampleCorpus() []ingestion.Record {
	return []ingestion.Record{
		{URL: "first_url", Text: "some record about nothing"},
		{URL: "www.example.com", Text: "this is About anything"},
		{URL: "www.example.com", Text: "this is About anything"},
	}
}

func TestBuildMergesConsecutiveURLs(t *testing.T) {
	e := buildEngine(t, sampleCorpus()...)

	assert.True(t, e.Ready())
	assert.Equal(t, 2, e.NumDocuments())

	stats := e.Stats()
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 6, stats.Terms)

	doc0, err := e.Document(0)
	require.NoError(t, err)
	assert.Equal(t, 4, doc0.Length)

	text, err := e.TextOf(1)
	require.NoError(t, err)
	assert.Equal(t, "this is About anything this is About anything", text)

	url, err := e.URLOf(1)
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", url)

	assert.Equal(t, 2, e.DocumentFrequency("about"))
	assert.Equal(t, []uint32{0, 1}, e.Postings("about").DocIDs())
}

func TestBuildNonConsecutiveURLsStaySeparate(t *testing.T) {
	e := buildEngine(t,
		ingestion.Record{URL: "a", Text: "alpha"},
		ingestion.Record{URL: "b", Text: "beta"},
		ingestion.Record{URL: "a", Text: "alpha"},
	)
	assert.Equal(t, 3, e.NumDocuments())
	assert.Equal(t, []uint32{0, 2}, e.Postings("alpha").DocIDs())
}

func TestBuildScoresBM25(t *testing.T) {
	e := buildEngine(t, sampleCorpus()...)
	params := index.DefaultBM25()
	// Lengths 4 and 6: 4/2 = 2, then (2*2+6)/3 truncates to 3.
	avdl := 3.0
	assert.InDelta(t, avdl, e.Stats().AvgDocLength, 1e-12)

	some := e.Postings("some")
	require.Len(t, some, 1)
	want := params.TFNorm(1, 4, avdl) * math.Log2(2.0/1.0)
	assert.InDelta(t, want, some[0].Score, 1e-12)

	this := e.Postings("this")
	require.Len(t, this, 1)
	assert.Equal(t, uint32(1), this[0].DocID)
	assert.InDelta(t, params.TFNorm(2, 6, avdl), this[0].Score, 1e-12)

	// "about" is in every document.
	for _, p := range e.Postings("about") {
		assert.Zero(t, p.Score)
	}
}

func TestBuildScoresWithTruncatedAverageLength(t *testing.T) {
	e := buildEngine(t,
		ingestion.Record{URL: "a", Text: "apple pear plum kiwi lime date"},
		ingestion.Record{URL: "b", Text: "apple apple"},
		ingestion.Record{URL: "c", Text: "melon berry"},
	)
	assert.InDelta(t, 2.0, e.Stats().AvgDocLength, 1e-12)

	apple := e.Postings("apple")
	require.Len(t, apple, 2)
	assert.InDelta(t, 0.299283, apple[0].Score, 1e-6)
	assert.InDelta(t, 0.857945, apple[1].Score, 1e-6)
}

func TestPostingListsAscending(t *testing.T) {
	var records []ingestion.Record
	for i := 0; i < 50; i++ {
		records = append(records, ingestion.Record{
			URL:  fmt.Sprintf("doc-%d", i),
			Text: fmt.Sprintf("common words here %s", []string{"odd", "even"}[i%2]),
		})
	}
	e := buildEngine(t, records...)
	for _, entry := range e.Terms() {
		assert.True(t, entry.Postings.Ascending(), entry.Term)
		assert.Len(t, entry.Postings, e.DocumentFrequency(entry.Term))
	}
}

func TestUnknownTermAndOutOfRange(t *testing.T) {
	e := buildEngine(t, sampleCorpus()...)

	assert.Empty(t, e.Postings("missing"))
	assert.Zero(t, e.DocumentFrequency("missing"))
	// Lookups are by lower-case term only.
	assert.Empty(t, e.Postings("About"))

	_, err := e.URLOf(2)
	assert.ErrorIs(t, err, apperrors.ErrOutOfRange)
	_, err = e.TextOf(100)
	assert.ErrorIs(t, err, apperrors.ErrOutOfRange)
}

func TestPostingsReturnsCopy(t *testing.T) {
	e := buildEngine(t, sampleCorpus()...)
	first := e.Postings("some")
	first[0].Score = -1
	assert.Equal(t, e.Postings("some"), e.Postings("some"))
	assert.NotEqual(t, first, e.Postings("some"))
}

func TestBuildIsDeterministic(t *testing.T) {
	a := buildEngine(t, sampleCorpus()...)
	b := buildEngine(t, sampleCorpus()...)
	assert.Equal(t, a.Terms(), b.Terms())
	assert.Equal(t, a.Vocabulary(), b.Vocabulary())
}

func TestEmptyCorpus(t *testing.T) {
	e := buildEngine(t)
	assert.Zero(t, e.NumDocuments())
	assert.Empty(t, e.Vocabulary())
	_, err := e.URLOf(0)
	assert.ErrorIs(t, err, apperrors.ErrOutOfRange)
}

type failingReader struct {
	records []ingestion.Record
	err     error
}

func (f *failingReader) Next() (ingestion.Record, error) {
	if len(f.records) == 0 {
		return ingestion.Record{}, f.err
	}
	rec := f.records[0]
	f.records = f.records[1:]
	return rec, nil
}

func TestBuildMalformedInput(t *testing.T) {
	e := NewEngine(index.DefaultBM25())
	err := e.Build(&failingReader{
		records: sampleCorpus(),
		err:     fmt.Errorf("line 4: missing tab separator: %w", apperrors.ErrMalformedInput),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
	assert.False(t, e.Ready())
	assert.Panics(t, func() { e.Postings("some") })

	// The engine is left empty and can be built again.
	require.NoError(t, e.Build(ingestion.FromRecords(sampleCorpus()...)))
	assert.Equal(t, 2, e.NumDocuments())
}

func TestBuildTwice(t *testing.T) {
	e := buildEngine(t, sampleCorpus()...)
	err := e.Build(&failingReader{err: io.EOF})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestQueryBeforeBuildPanics(t *testing.T) {
	e := NewEngine(index.DefaultBM25())
	assert.False(t, e.Ready())
	assert.Panics(t, func() { e.Postings("x") })
	assert.Panics(t, func() { e.URLOf(0) })
	assert.Panics(t, func() { e.Stats() })
}

func BenchmarkBuild(b *testing.B) {
	records := make([]ingestion.Record, 1000)
	for i := range records {
		records[i] = ingestion.Record{
			URL:  fmt.Sprintf("https://example.com/%d", i),
			Text: "search engine with distributed indexing and query processing over many documents",
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := NewEngine(index.DefaultBM25())
		if err := e.Build(ingestion.FromRecords(records...)); err != nil {
			b.Fatal(err)
		}
	}
}

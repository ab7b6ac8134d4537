package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusTSV = "https://a.example\tApproximate search\r\n" +
	"https://b.example\tEdit distance\n" +
	"https://c.example\tk-gram index"

func readAll(t *testing.T, r ingestion.RecordReader) []ingestion.Record {
	t.Helper()
	var out []ingestion.Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestLineReader(t *testing.T) {
	recs := readAll(t, NewLineReader(strings.NewReader(corpusTSV)))
	require.Len(t, recs, 3)
	assert.Equal(t, ingestion.Record{URL: "https://a.example", Text: "Approximate search", Line: 1}, recs[0])
	assert.Equal(t, "Edit distance", recs[1].Text)
	assert.Equal(t, "k-gram index", recs[2].Text)
	assert.Equal(t, 3, recs[2].Line)
}

func TestLineReaderTrailingNewline(t *testing.T) {
	r := NewLineReader(strings.NewReader("u\tone\nv\ttwo\n"))
	recs := readAll(t, r)
	assert.Len(t, recs, 2)
	assert.Equal(t, 2, r.Lines())
}

func TestLineReaderKeepsTabsInText(t *testing.T) {
	recs := readAll(t, NewLineReader(strings.NewReader("u\ta\tb\n")))
	require.Len(t, recs, 1)
	assert.Equal(t, "a\tb", recs[0].Text)
}

func TestLineReaderMalformed(t *testing.T) {
	r := NewLineReader(strings.NewReader("u\tok\nno separator here\n"))
	_, err := r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLineReaderEmpty(t *testing.T) {
	_, err := NewLineReader(strings.NewReader("")).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDetectCompression(t *testing.T) {
	assert.Equal(t, CompressionGzip, DetectCompression("corpus.tsv.gz"))
	assert.Equal(t, CompressionZstd, DetectCompression("s3://b/corpus.tsv.zst"))
	assert.Equal(t, CompressionLZ4, DetectCompression("corpus.lz4"))
	assert.Equal(t, CompressionNone, DetectCompression("corpus.tsv"))
}

func writeCorpus(t *testing.T, name string) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewCompressor(&buf, DetectCompression(name))
	require.NoError(t, err)
	_, err = io.WriteString(w, corpusTSV)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestOpenFileCompressed(t *testing.T) {
	for _, name := range []string{"corpus.tsv", "corpus.tsv.gz", "corpus.tsv.zst", "corpus.tsv.lz4"} {
		t.Run(name, func(t *testing.T) {
			corpus, err := OpenFile(writeCorpus(t, name))
			require.NoError(t, err)
			defer corpus.Close()

			recs := readAll(t, corpus)
			require.Len(t, recs, 3)
			assert.Equal(t, "https://c.example", recs[2].URL)
		})
	}
}

func TestOpenFileErrors(t *testing.T) {
	_, err := OpenFile("")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.tsv"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	bad := filepath.Join(t.TempDir(), "bad.tsv.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not gzip"), 0o644))
	_, err = OpenFile(bad)
	assert.Error(t, err)
}

func TestOpenDispatch(t *testing.T) {
	cfg := config.Default()
	cfg.Corpus.Path = writeCorpus(t, "corpus.tsv")
	corpus, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer corpus.Close()
	assert.Equal(t, cfg.Corpus.Path, corpus.Name)
	assert.Len(t, readAll(t, corpus), 3)

	cfg.Corpus.Source = "ftp"
	_, err = Open(context.Background(), cfg)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	cfg.Corpus.Source = config.SourceS3
	cfg.Corpus.Bucket = ""
	_, err = Open(context.Background(), cfg)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type fakeRows struct {
	rows [][2]string
	pos  int
	err  error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	*dest[0].(*string) = row[0]
	*dest[1].(*string) = row[1]
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestRowReader(t *testing.T) {
	rows := &fakeRows{rows: [][2]string{
		{"https://a.example", "first"},
		{"https://b.example", strings.Repeat("x", ingestion.MaxTextLength+10)},
	}}
	recs := readAll(t, NewRowReader(rows))
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Line)
	assert.Len(t, recs[1].Text, ingestion.MaxTextLength)
}

func TestRowReaderErrors(t *testing.T) {
	_, err := NewRowReader(&fakeRows{err: errors.New("connection reset")}).Next()
	assert.ErrorContains(t, err, "connection reset")

	long := strings.Repeat("u", ingestion.MaxURLLength+1)
	_, err = NewRowReader(&fakeRows{rows: [][2]string{{long, "t"}}}).Next()
	assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
}

type closeRecorder struct {
	name  string
	order *[]string
}

func (c closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return nil
}

func TestCorpusCloseOrder(t *testing.T) {
	var order []string
	c := &Corpus{
		reader:  ingestion.FromRecords(),
		closers: []io.Closer{closeRecorder{"file", &order}, closeRecorder{"decoder", &order}},
	}
	require.NoError(t, c.Close())
	assert.Equal(t, []string{"decoder", "file"}, order)
	require.NoError(t, c.Close())
	assert.Len(t, order, 2)
}

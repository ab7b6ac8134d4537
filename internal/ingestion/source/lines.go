package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion/validator"
)

// LineReader yields one record per URL<TAB>TEXT line. Both "\n" and
// "\r\n" terminators are accepted, and the final line need not have one.
type LineReader struct {
	r    *bufio.Reader
	line int
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (l *LineReader) Next() (ingestion.Record, error) {
	text, err := l.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return ingestion.Record{}, fmt.Errorf("reading line %d: %w", l.line+1, err)
	}
	if text == "" && err != nil {
		return ingestion.Record{}, io.EOF
	}
	l.line++
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return validator.ParseLine(text, l.line)
}

// Lines reports how many lines have been consumed.
func (l *LineReader) Lines() int { return l.line }

// Package ingestion defines the corpus record type shared by every corpus
// source and consumed by the index engine.
package ingestion

import "io"

const (
	// MaxURLLength is the longest URL a record may carry.
	MaxURLLength = 2047
	// MaxTextLength caps the text of a single record; longer text is
	// truncated, not rejected.
	MaxTextLength = 100000
)

// Record is one URL<TAB>TEXT line of a corpus.
type Record struct {
	URL  string `json:"url"`
	Text string `json:"text"`
	// Line is the 1-based position of the record in its source.
	Line int `json:"line,omitempty"`
}

// RecordReader yields records in corpus order. Next returns io.EOF once
// the corpus is exhausted.
type RecordReader interface {
	Next() (Record, error)
}

type sliceReader struct {
	records []Record
	pos     int
}

// FromRecords returns a RecordReader over an in-memory slice.
func FromRecords(records ...Record) RecordReader {
	return &sliceReader{records: records}
}

func (s *sliceReader) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	if rec.Line == 0 {
		rec.Line = s.pos
	}
	return rec, nil
}

// Package validator parses and checks corpus records. Every source funnels
// its records through here so the length rules apply the same way to a
// TSV file, an S3 object and a database query.
package validator

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
)

// ParseLine splits a URL<TAB>TEXT line at its first tab and validates the
// result. Any line terminator must already be stripped.
func ParseLine(line string, lineNo int) (ingestion.Record, error) {
	url, text, ok := strings.Cut(line, "\t")
	if !ok {
		return ingestion.Record{}, fmt.Errorf("line %d: missing tab separator: %w",
			lineNo, apperrors.ErrMalformedInput)
	}
	rec := ingestion.Record{URL: url, Text: text, Line: lineNo}
	if err := ValidateRecord(&rec); err != nil {
		return ingestion.Record{}, err
	}
	return rec, nil
}

// ValidateRecord rejects an over-long URL and truncates over-long text in
// place.
func ValidateRecord(rec *ingestion.Record) error {
	if len(rec.URL) > ingestion.MaxURLLength {
		return fmt.Errorf("line %d: url is %d bytes, at most %d allowed: %w",
			rec.Line, len(rec.URL), ingestion.MaxURLLength, apperrors.ErrMalformedInput)
	}
	if len(rec.Text) > ingestion.MaxTextLength {
		rec.Text = rec.Text[:ingestion.MaxTextLength]
	}
	return nil
}

package source

import (
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion/validator"
)

// Rows is the subset of *sql.Rows a RowReader needs.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// RowReader yields one record per (url, text) row.
type RowReader struct {
	rows Rows
	line int
}

func NewRowReader(rows Rows) *RowReader {
	return &RowReader{rows: rows}
}

func (r *RowReader) Next() (ingestion.Record, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return ingestion.Record{}, fmt.Errorf("iterating corpus rows: %w", err)
		}
		return ingestion.Record{}, io.EOF
	}
	r.line++
	rec := ingestion.Record{Line: r.line}
	if err := r.rows.Scan(&rec.URL, &rec.Text); err != nil {
		return ingestion.Record{}, fmt.Errorf("row %d: scanning: %w", r.line, err)
	}
	if err := validator.ValidateRecord(&rec); err != nil {
		return ingestion.Record{}, err
	}
	return rec, nil
}

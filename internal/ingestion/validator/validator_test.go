package validator

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	rec, err := ParseLine("first_url\tsome record about nothing", 1)
	require.NoError(t, err)
	assert.Equal(t, "first_url", rec.URL)
	assert.Equal(t, "some record about nothing", rec.Text)
	assert.Equal(t, 1, rec.Line)
}

func TestParseLineSplitsAtFirstTab(t *testing.T) {
	rec, err := ParseLine("u\ta\tb", 3)
	require.NoError(t, err)
	assert.Equal(t, "u", rec.URL)
	assert.Equal(t, "a\tb", rec.Text)
}

func TestParseLineEmptyText(t *testing.T) {
	rec, err := ParseLine("u\t", 1)
	require.NoError(t, err)
	assert.Empty(t, rec.Text)
}

func TestParseLineMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no tab", "just some text"},
		{"empty", ""},
		{"url too long", strings.Repeat("u", ingestion.MaxURLLength+1) + "\ttext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line, 7)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
			assert.Contains(t, err.Error(), "line 7")
		})
	}
}

func TestValidateRecordLimits(t *testing.T) {
	rec := ingestion.Record{
		URL:  strings.Repeat("u", ingestion.MaxURLLength),
		Text: strings.Repeat("x", ingestion.MaxTextLength+50),
	}
	require.NoError(t, ValidateRecord(&rec))
	assert.Len(t, rec.Text, ingestion.MaxTextLength)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpus = "https://a.example\tSearch engines index documents\n" +
	"https://b.example\tapproximate search with edit distance\n" +
	"https://c.example\tsearch engines rank documents with scores\n"

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.tsv")
	require.NoError(t, os.WriteFile(path, []byte(corpus), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"searchctl"}, args...))
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	out, err := run(t, "--corpus", writeCorpus(t), "search", "-n", "5", "with", "documents")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "https://c.example"), lines[0])
	assert.Equal(t, "1 of 1 matching documents", lines[1])
}

func TestSuggestCommand(t *testing.T) {
	out, err := run(t, "--corpus", writeCorpus(t), "suggest", "edit serch")
	require.NoError(t, err)
	assert.Equal(t, "edit search\n", out)
}

func TestQueryRequired(t *testing.T) {
	_, err := run(t, "--corpus", writeCorpus(t), "search")
	assert.Error(t, err)
}

func TestStatsDump(t *testing.T) {
	out, err := run(t, "--corpus", writeCorpus(t), "stats", "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, "documents:     3")
	assert.Contains(t, out, "approximate\t1:")
	assert.Contains(t, out, "search\t0:0 1:0 2:0")
}

func TestPackRoundTrip(t *testing.T) {
	src := writeCorpus(t)
	packed := filepath.Join(t.TempDir(), "corpus.tsv.zst")
	out, err := run(t, "pack", "--in", src, "--out", packed)
	require.NoError(t, err)
	assert.Contains(t, out, "(zstd)")

	out, err = run(t, "--corpus", packed, "suggest", "serch")
	require.NoError(t, err)
	assert.Equal(t, "search\n", out)
}

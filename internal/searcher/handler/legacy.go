package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/logger"
)

// Callback names the bundled web page expects.
const (
	SimilarWordsCallback  = "similarWordsCallback"
	SearchRecordsCallback = "searchRecordsCallback"
)

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"ico":  "image/vnd.microsoft.icon",
	"html": "text/html; charset=utf-8",
	"css":  "text/css; charset=utf-8",
	"less": "text/x-less; charset=utf-8",
	"js":   "application/javascript; charset=utf-8",
}

// Legacy answers JSONP lookups when the request has a query string and
// serves the web root otherwise. A lookup may carry vocabularyLookup,
// searchQuery or both; the suggestions come first in the response.
func (h *Handler) Legacy(w http.ResponseWriter, r *http.Request) {
	if r.URL.RawQuery == "" {
		h.serveStatic(w, r)
		return
	}
	log := logger.FromContext(r.Context())
	q := r.URL.Query()
	n := h.legacyLimit(q.Get("number"))

	var body bytes.Buffer
	if word := q.Get("vocabularyLookup"); word != "" {
		matches := h.processor.SimilarWords(n, word)
		log.Debug("vocabulary lookup", "query", word, "number", n, "matches", len(matches))
		writeCallback(&body, SimilarWordsCallback, matches)
	}
	if query := q.Get("searchQuery"); query != "" {
		ids := h.processor.SearchRecords(n, query)
		urls := make([]string, 0, len(ids))
		for _, id := range ids {
			url, err := h.processor.Engine().URLOf(id)
			if err != nil {
				log.Error("resolving search hit", "doc_id", id, "error", err)
				continue
			}
			urls = append(urls, url)
		}
		log.Debug("record search", "query", query, "number", n, "matches", len(urls))
		writeCallback(&body, SearchRecordsCallback, urls)
	}

	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
}

// legacyLimit treats a missing or unusable number as the default.
func (h *Handler) legacyLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		n = h.defaultLimit
	}
	if h.maxResults > 0 && n > h.maxResults {
		n = h.maxResults
	}
	return n
}

func writeCallback(buf *bytes.Buffer, callback string, matches []string) {
	if matches == nil {
		matches = []string{}
	}
	payload, _ := json.Marshal(struct {
		Matches []string `json:"matches"`
	}{matches})
	buf.WriteString(callback)
	buf.WriteByte('(')
	buf.Write(payload)
	buf.WriteString(");")
}

func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request) {
	name, mime, err := ResolveStatic(r.URL.Path)
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}
	// os.OpenInRoot refuses names that would leave the web root, including
	// through symlinks.
	f, err := os.OpenInRoot(h.webRoot, name)
	if err != nil {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("%s: %v", r.URL.Path, apperrors.ErrNotFound))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("%s: %v", r.URL.Path, apperrors.ErrNotFound))
		return
	}
	if mime == "" {
		h.writeError(w, http.StatusNotImplemented, fmt.Sprintf("%q: %v", path.Ext(name), apperrors.ErrUnsupportedType))
		return
	}
	w.Header().Set("Content-Type", mime)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// ResolveStatic maps a request path to a file name relative to the web
// root and its content type. A trailing slash selects index.html. The
// content type is empty for suffixes that are not served; the caller
// still checks that the file exists first so a missing file stays a 404.
func ResolveStatic(urlPath string) (name, mime string, err error) {
	if strings.HasSuffix(urlPath, "/") {
		urlPath += "index.html"
	}
	clean := path.Clean("/" + urlPath)
	name = strings.TrimPrefix(clean, "/")
	if !fs.ValidPath(name) || name == "." {
		return "", "", fmt.Errorf("%s: %w", urlPath, apperrors.ErrNotFound)
	}
	return name, mimeTypes[strings.TrimPrefix(path.Ext(name), ".")], nil
}

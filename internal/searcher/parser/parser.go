// Package parser turns raw query strings into the terms the processor
// looks up. Queries are split at spaces, commas and plus signs.
package parser

import (
	"strings"
)

// QueryPlan is a parsed conjunctive query.
type QueryPlan struct {
	// Terms are lower-cased and in query order. Repeats are kept.
	Terms    []string
	RawQuery string
}

func isDelimiter(r rune) bool {
	return r == ' ' || r == ',' || r == '+'
}

// Split breaks query at delimiters and drops empty pieces, so runs of
// delimiters and leading or trailing ones are ignored.
func Split(query string) []string {
	return strings.FieldsFunc(query, isDelimiter)
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	for _, word := range Split(query) {
		plan.Terms = append(plan.Terms, strings.ToLower(word))
	}
	return plan
}

// SplitLast separates the last token of query from everything before it.
// prefix is returned verbatim, including the delimiter that preceded the
// token; word is lower-cased. Trailing delimiters are discarded. A query
// with no tokens yields two empty strings.
func SplitLast(query string) (prefix, word string) {
	end := strings.LastIndexFunc(query, func(r rune) bool { return !isDelimiter(r) }) + 1
	if end == 0 {
		return "", ""
	}
	start := strings.LastIndexFunc(query[:end], isDelimiter) + 1
	return query[:start], strings.ToLower(query[start:end])
}

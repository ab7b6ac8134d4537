// Package tokenizer provides text tokenisation for the search engine.
// A token is a maximal run of ASCII letters; runs shorter than MinLength
// are dropped. Tokens are lower-cased.
package tokenizer

// MinLength is the shortest run of letters that counts as a word.
const MinLength = 3

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased Tokens. Positions count only
// kept tokens.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/8)
	Each(text, func(term string) {
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	})
	return tokens
}

// Terms returns the lowercased terms of text in order of occurrence.
func Terms(text string) []string {
	terms := make([]string, 0, len(text)/8)
	Each(text, func(term string) {
		terms = append(terms, term)
	})
	return terms
}

// Each calls fn for every term in text without building a slice.
func Each(text string, fn func(term string)) {
	pos := 0
	for pos < len(text) {
		for pos < len(text) && !isAlpha(text[pos]) {
			pos++
		}
		start := pos
		for pos < len(text) && isAlpha(text[pos]) {
			pos++
		}
		if pos-start >= MinLength {
			fn(lower(text[start:pos]))
		}
	}
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// lower lower-cases an ASCII letter run, returning word unchanged when it
// has no upper-case letters.
func lower(word string) string {
	upper := false
	for i := 0; i < len(word); i++ {
		if word[i] >= 'A' && word[i] <= 'Z' {
			upper = true
			break
		}
	}
	if !upper {
		return word
	}
	b := make([]byte, len(word))
	for i := 0; i < len(word); i++ {
		c := word[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

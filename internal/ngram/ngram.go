package ngram

import (
	"strings"
	"unicode"
)

// strippedRunes are removed before gram extraction: the FTS5 query
// metacharacters plus path separators and underscores. Stripping them on
// the write side keeps user queries and indexed names aligned even when
// the query sanitizer has already eaten its share.
const strippedRunes = "(){}[]/\\\"'.*?!:^~+-,_"

// Normalize lowercases text and strips whitespace, FTS metacharacters,
// and separator runes. An empty result means the text has nothing
// searchable in it.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) || strings.ContainsRune(strippedRunes, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Grams returns the deduplicated unigrams and bigrams of each text, in
// first-seen order. Grams are rune-based so multibyte scripts index one
// character per unigram.
func Grams(texts ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(g string) {
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}

	for _, text := range texts {
		runes := []rune(Normalize(text))
		for i := range runes {
			add(string(runes[i]))
			if i+1 < len(runes) {
				add(string(runes[i : i+2]))
			}
		}
	}
	return out
}

// Tokens space-joins Grams into the form FTS5 consumes, where a space
// between terms means AND. The same call serves both the indexed token
// column and the MATCH expression.
func Tokens(texts ...string) string {
	return strings.Join(Grams(texts...), " ")
}

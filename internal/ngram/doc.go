// Package ngram builds the character n-gram tokens behind the gallery's
// substring search.
//
// SQLite's FTS5 matches whole terms, which makes "each" miss "beach" and
// any CJK query miss entirely. Instead of matching filenames directly,
// both sides of the search speak n-grams: the indexer stores the unigrams
// and bigrams of each item's name, and the query builder emits the same
// grams for the user's text. A row matches when it contains every gram of
// the query, which behaves like substring search over the original name.
//
// Normalization must be identical on both sides or grams stop lining up;
// that is why this package is the only place it happens.
package ngram

// Package search answers substring queries over the media index.
//
// Query text and indexed names meet in n-gram space (see the ngram
// package), so partial words and CJK input match without FTS5 prefix
// tricks. A query is sanitized of FTS metacharacters, tokenized into the
// same unigrams and bigrams the indexer stored, and run against the FTS
// table twice with one WHERE clause: a count, then a page ordered albums
// first and by rank within each group.
//
// Albums nested inside other matched albums are suppressed so a query
// matching a whole subtree returns the subtree root once instead of every
// directory under it. Hits are enriched through the browse service, which
// resolves covers, dimensions, and URLs the same way listings do.
//
// While the index is empty or still building, searches fail with
// SEARCH_UNAVAILABLE rather than returning a silently incomplete result.
package search

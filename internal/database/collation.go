package database

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// natcaseCompare builds the comparison function behind the NATCASE
// collation: case-insensitive and numeric-aware, so "img2" sorts before
// "img10". Collators are not safe for concurrent use, so every SQLite
// connection gets its own instance via the connect hook.
func natcaseCompare() func(a, b string) int {
	c := collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
	return c.CompareString
}

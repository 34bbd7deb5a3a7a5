package ngram

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Beach2024", "beach2024"},
		{"strips whitespace", "summer trip", "summertrip"},
		{"strips path separators", "albums/2024/beach", "albums2024beach"},
		{"strips fts metacharacters", `what?! "quoted" (x) [y] {z}`, "whatquotedxyz"},
		{"strips dots dashes underscores", "IMG_2024-06-01.final", "img20240601final"},
		{"keeps multibyte letters", "夏の写真", "夏の写真"},
		{"empty after stripping", `"...?!"`, ""},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGrams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		texts []string
		want  []string
	}{
		{
			name:  "single word",
			texts: []string{"abc"},
			want:  []string{"a", "ab", "b", "bc", "c"},
		},
		{
			name:  "single rune has no bigram",
			texts: []string{"x"},
			want:  []string{"x"},
		},
		{
			name:  "repeats dedup in first-seen order",
			texts: []string{"aaa"},
			want:  []string{"a", "aa"},
		},
		{
			name:  "multibyte runes gram by character",
			texts: []string{"写真"},
			want:  []string{"写", "写真", "真"},
		},
		{
			name:  "second text never bridges into the first",
			texts: []string{"ab", "cd"},
			want:  []string{"a", "ab", "b", "c", "cd", "d"},
		},
		{
			name:  "nothing searchable",
			texts: []string{"..."},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Grams(tt.texts...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Grams(%q) = %v, want %v", tt.texts, got, tt.want)
			}
		})
	}
}

// Matching is subset containment: every gram of the query must be indexed.
// This is the property the browse-and-search pair relies on.
func TestQueryGramsAreSubsetOfIndexGrams(t *testing.T) {
	t.Parallel()

	indexed := Grams("Summer-Beach_2024/IMG 0042", "photo")
	set := make(map[string]bool, len(indexed))
	for _, g := range indexed {
		set[g] = true
	}

	queries := []string{"beach", "BEACH", "img 0042", "img-0042", "photo", "er_be"}
	for _, q := range queries {
		q := q
		t.Run(q, func(t *testing.T) {
			t.Parallel()
			for _, g := range Grams(q) {
				if !set[g] {
					t.Errorf("query gram %q not produced by the index side", g)
				}
			}
		})
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	if got := Tokens("ab"); got != "a ab b" {
		t.Errorf("Tokens(ab) = %q, want %q", got, "a ab b")
	}
	if got := Tokens("..."); got != "" {
		t.Errorf("Tokens(...) = %q, want empty", got)
	}
}

package watcher

import (
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"media-gallery/internal/indexer"
	"media-gallery/internal/relpath"
)

// rawEvent is one observed filesystem change, recorded before
// consolidation. hash is set only for file adds, where it suppresses
// duplicate events for an unchanged file.
type rawEvent struct {
	typ  indexer.ChangeType
	rel  relpath.Path
	hash string
}

// consolidate reduces a burst of raw events to at most one change per
// path, preserving first-seen path order:
//
//	add then unlink        -> nothing happened
//	unlink then add        -> update
//	two adds, same hash    -> one add
//	anything else same-path -> update
func consolidate(events []rawEvent) []indexer.Change {
	type state struct {
		typ  indexer.ChangeType
		hash string
		dead bool
	}
	order := make([]string, 0, len(events))
	byPath := make(map[string]*state, len(events))

	for _, ev := range events {
		key := ev.rel.String()
		st, seen := byPath[key]
		if !seen {
			byPath[key] = &state{typ: ev.typ, hash: ev.hash}
			order = append(order, key)
			continue
		}
		if st.dead {
			// A canceled pair followed by more activity: treat the new
			// event as the first sighting.
			st.dead = false
			st.typ = ev.typ
			st.hash = ev.hash
			continue
		}

		switch {
		case isAdd(st.typ) && isDelete(ev.typ):
			st.dead = true
		case isDelete(st.typ) && isAdd(ev.typ):
			st.typ = indexer.ChangeUpdate
		case st.typ == indexer.ChangeAdd && ev.typ == indexer.ChangeAdd &&
			st.hash != "" && st.hash == ev.hash:
			// Duplicate notification for identical content; keep one add.
		default:
			st.typ = indexer.ChangeUpdate
		}
	}

	out := make([]indexer.Change, 0, len(order))
	for _, key := range order {
		st := byPath[key]
		if st.dead {
			continue
		}
		out = append(out, indexer.Change{Type: st.typ, Path: key})
	}
	return out
}

func isAdd(t indexer.ChangeType) bool {
	return t == indexer.ChangeAdd || t == indexer.ChangeAddDir
}

func isDelete(t indexer.ChangeType) bool {
	return t == indexer.ChangeUnlink || t == indexer.ChangeUnlinkDir
}

// contentHash returns the BLAKE2b-256 of a file's bytes. It is only used
// to suppress duplicate add events and is never persisted. Errors return
// an empty hash, which consolidation treats as "assume changed".
func contentHash(abs string) string {
	f, err := os.Open(abs)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	h, err := blake2b.New256(nil)
	if err != nil {
		return ""
	}
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

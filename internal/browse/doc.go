// Package browse answers directory listings and view-history updates.
//
// A listing is a single SQL pass over the direct children of one album,
// paged and sorted in the database. The viewed_desc strategy (and smart
// order inside subdirectories) is finished locally: the page comes back
// name-ordered and is re-sorted against the user's view history, which
// lives in a separate database file and cannot be joined.
//
// After paging, album rows are decorated with covers and media rows with
// dimensions. Covers resolve cheapest-first: an in-process LRU, Redis,
// the album_covers table, a windowed query over items, and finally a
// bounded filesystem scan for albums the index predates.
package browse

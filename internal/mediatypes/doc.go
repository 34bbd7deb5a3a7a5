// Package mediatypes provides shared type definitions and utilities for
// media file handling across the gallery server.
//
// This package exists as a dependency-free foundation that can be imported
// by other packages without creating import cycles. It contains the
// extension whitelist, item type constants, thumbnail path mapping, and the
// hidden/vendor directory skip rules shared by the indexer and the watcher.
//
// # Item Types
//
//	mediatypes.TypeAlbum // directories under the media root
//	mediatypes.TypePhoto // jpeg, jpg, png, webp, gif
//	mediatypes.TypeVideo // mp4, webm, mov
//	mediatypes.TypeOther // anything else; never indexed
//
// # Thumbnail Mapping
//
// Thumbnails mirror the media tree one-to-one by relative path with the
// extension rewritten: photos get .webp, videos get .jpg.
//
//	mediatypes.ThumbRelPath("A/p1.jpg") // "A/p1.webp"
//	mediatypes.ThumbRelPath("B/v.mp4")  // "B/v.jpg"
package mediatypes

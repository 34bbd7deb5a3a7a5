package mediatypes

import "strings"

// ItemType classifies a row in the gallery index.
type ItemType string

const (
	// TypeAlbum is a directory under the media root.
	TypeAlbum ItemType = "album"
	// TypePhoto is a still image.
	TypePhoto ItemType = "photo"
	// TypeVideo is a video file.
	TypeVideo ItemType = "video"
	// TypeOther is anything the gallery does not index.
	TypeOther ItemType = "other"
)

// PhotoExtensions is the indexable still-image whitelist.
var PhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// VideoExtensions is the indexable video whitelist.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
}

// MimeTypes maps whitelisted extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",

	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// ignoredDirs are vendor and system directories the walker and watcher
// never descend into.
var ignoredDirs = map[string]bool{
	"@eaDir":      true,
	"#recycle":    true,
	".thumbnails": true,
}

// TypeForExt returns the item type for a lowercase extension including the
// leading dot. Unrecognized extensions return TypeOther.
func TypeForExt(ext string) ItemType {
	if PhotoExtensions[ext] {
		return TypePhoto
	}
	if VideoExtensions[ext] {
		return TypeVideo
	}
	return TypeOther
}

// TypeForName classifies a file by its name.
func TypeForName(name string) ItemType {
	return TypeForExt(extOf(name))
}

// IsMediaFile reports whether name carries a whitelisted media extension.
func IsMediaFile(name string) bool {
	return TypeForName(name) != TypeOther
}

// MimeTypeForName returns the MIME type for a whitelisted file name, or
// application/octet-stream.
func MimeTypeForName(name string) string {
	if mime, ok := MimeTypes[extOf(name)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ThumbExt returns the extension of the mirrored thumbnail file for an
// item type: .webp for photos, .jpg for videos.
func ThumbExt(t ItemType) string {
	if t == TypeVideo {
		return ".jpg"
	}
	return ".webp"
}

// ThumbRelPath rewrites a media relative path into its mirrored thumbnail
// relative path, swapping the extension per ThumbExt.
func ThumbRelPath(rel string) string {
	ext := extOf(rel)
	return rel[:len(rel)-len(ext)] + ThumbExt(TypeForExt(ext))
}

// IsHiddenName reports whether a file or directory name is hidden.
func IsHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// IsIgnoredDir reports whether a directory name is skipped entirely
// (hidden directories and vendor system directories like @eaDir).
func IsIgnoredDir(name string) bool {
	return IsHiddenName(name) || ignoredDirs[name]
}

func extOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx:])
}

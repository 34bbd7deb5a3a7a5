package relpath

import (
	"path"
	"path/filepath"
	"strings"

	"media-gallery/internal/errs"
)

// Path is a validated relative path under the media root: forward slashes,
// no leading slash, no "..", no backslashes, no database-file extensions.
// The zero value is presumed to be the media root itself. Construct non-root
// values only through New or FromFS.
type Path struct {
	p string
}

// Root is the media root.
var Root = Path{}

// New validates and normalizes a client- or filesystem-supplied relative
// path. Empty input and "." mean the media root.
func New(raw string) (Path, error) {
	if raw == "" || raw == "." {
		return Root, nil
	}
	if strings.ContainsRune(raw, '\\') {
		return Path{}, errs.Ef(errs.InvalidOrUnsafePath, "path contains backslash: %q", raw)
	}
	if strings.ContainsRune(raw, 0) {
		return Path{}, errs.Ef(errs.InvalidOrUnsafePath, "path contains NUL byte")
	}
	if strings.HasPrefix(raw, "/") {
		return Path{}, errs.Ef(errs.InvalidOrUnsafePath, "path must be relative: %q", raw)
	}

	cleaned := path.Clean(raw)
	if cleaned == "." {
		return Root, nil
	}
	// After Clean, any remaining ".." segments sit at the front.
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return Path{}, errs.Ef(errs.InvalidOrUnsafePath, "path escapes the media root: %q", raw)
	}
	if HasDBExtension(cleaned) {
		return Path{}, errs.Ef(errs.InvalidOrUnsafePath, "database files are not media: %q", raw)
	}

	return Path{p: cleaned}, nil
}

// FromFS converts an absolute filesystem path under root into a Path.
func FromFS(root, abs string) (Path, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return Path{}, errs.E(errs.InvalidOrUnsafePath, "path is not under the media root", err)
	}
	return New(filepath.ToSlash(rel))
}

// HasDBExtension reports whether name looks like a SQLite database file or
// one of its sidecars. Such names are never indexed or watched.
func HasDBExtension(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	switch ext {
	case ".db", ".db-wal", ".db-shm", ".wal", ".shm":
		return true
	}
	return strings.HasPrefix(ext, ".sqlite")
}

// String returns the stored form: forward slashes, no leading slash,
// empty string for the root.
func (p Path) String() string {
	return p.p
}

// IsRoot reports whether p is the media root.
func (p Path) IsRoot() bool {
	return p.p == ""
}

// Name returns the final path element, or "" for the root.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	return path.Base(p.p)
}

// Ext returns the lowercased extension including the dot, or "".
func (p Path) Ext() string {
	return strings.ToLower(path.Ext(p.p))
}

// Parent returns the containing directory, or the root for top-level
// entries and the root itself.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return Root
	}
	dir := path.Dir(p.p)
	if dir == "." {
		return Root
	}
	return Path{p: dir}
}

// Ancestors returns every containing directory from the immediate parent
// up to and including the root.
func (p Path) Ancestors() []Path {
	var out []Path
	for cur := p.Parent(); ; cur = cur.Parent() {
		out = append(out, cur)
		if cur.IsRoot() {
			return out
		}
	}
}

// Join appends a child element, revalidating the result.
func (p Path) Join(elem string) (Path, error) {
	if p.IsRoot() {
		return New(elem)
	}
	return New(p.p + "/" + elem)
}

// Under returns the absolute filesystem location of p beneath root,
// using the platform separator.
func (p Path) Under(root string) string {
	if p.IsRoot() {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(p.p))
}

// IsAncestorOf reports whether p strictly contains other. The root
// contains every non-root path.
func (p Path) IsAncestorOf(other Path) bool {
	if p.p == other.p {
		return false
	}
	if p.IsRoot() {
		return !other.IsRoot()
	}
	return strings.HasPrefix(other.p, p.p+"/")
}

package indexer

// ChangeType names one kind of filesystem change the watcher reports.
type ChangeType string

const (
	// ChangeAdd is a new media file.
	ChangeAdd ChangeType = "add"
	// ChangeAddDir is a new directory.
	ChangeAddDir ChangeType = "addDir"
	// ChangeUnlink is a removed media file.
	ChangeUnlink ChangeType = "unlink"
	// ChangeUnlinkDir is a removed directory (its contents go with it).
	ChangeUnlinkDir ChangeType = "unlinkDir"
	// ChangeUpdate is a rewrite of an existing media file.
	ChangeUpdate ChangeType = "update"
)

// Change is one consolidated filesystem change. Path is slash-separated
// and relative to the media root, but otherwise unvalidated; Apply runs
// it through the validating path factory and drops anything unsafe.
type Change struct {
	Type ChangeType
	Path string
}

// IsDelete reports whether the change removes index rows.
func (c Change) IsDelete() bool {
	return c.Type == ChangeUnlink || c.Type == ChangeUnlinkDir
}

package thumbnailer

import "media-gallery/internal/relpath"

// task is one thumbnail generation request. mtime carries the source
// mtime when the enqueuer already knows it; workers re-stat regardless.
type task struct {
	rel   relpath.Path
	abs   string
	mtime int64
}

// deque is a slice-backed double-ended task queue. Head insertion lets
// user-visible requests jump ahead of queued background work.
type deque struct {
	items []task
}

func (d *deque) pushTail(t task) {
	d.items = append(d.items, t)
}

func (d *deque) pushHead(t task) {
	d.items = append([]task{t}, d.items...)
}

func (d *deque) pop() (task, bool) {
	if len(d.items) == 0 {
		return task{}, false
	}
	t := d.items[0]
	d.items = d.items[1:]
	return t, true
}

func (d *deque) len() int {
	return len(d.items)
}

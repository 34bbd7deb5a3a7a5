// Package relpath defines the validated relative-path value the rest of
// the application passes around instead of raw strings.
//
// Every path that reaches a query, a thumbnail job, or a cache tag went
// through [New] or [FromFS] first, so traversal checks happen exactly once
// at the trust boundary: no leading slash, no "..", no backslashes or NUL,
// no database-file extensions. Downstream code operates on the normalized
// forward-slash form and converts back to a filesystem location with
// [Path.Under].
package relpath

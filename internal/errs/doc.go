// Package errs defines the error kinds the application reports and their
// mapping to HTTP status codes.
//
// A [Kind] is a stable machine-readable code (PATH_NOT_FOUND,
// VALIDATION_ERROR, SQLITE_TIMEOUT, ...) that travels in API error bodies
// and drives retry decisions. Construct errors with [E] (wrapping a cause)
// or [Ef] (formatted message); discriminate with [KindOf] or [Is], which
// walk wrapped chains via errors.As. Errors that never received a kind
// report INTERNAL_ERROR.
//
// [HTTPStatus] is the single place a kind turns into a status code, so
// handlers never pick numbers themselves.
package errs

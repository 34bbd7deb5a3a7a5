// Package handlers provides the HTTP request handlers for the gallery API.
//
// It includes handlers for:
//   - Directory browsing and view-time tracking
//   - On-demand thumbnails with placeholder fallbacks
//   - Full-text search
//   - Album cover listing (full and cursor-paged)
//   - Server-sent events for live thumbnail updates
//   - Index status, settings, caption jobs, and cache administration
//
// Handlers translate domain errors into typed JSON bodies; request ids,
// access logging, compression, route caching, and panic recovery live in
// the middleware package.
package handlers

// Package middleware is the HTTP wrapping layer: request IDs, W3C access
// logging, panic recovery, Prometheus request metrics, gzip compression,
// and the Redis route-response cache.
//
// Chain order matters. main.go applies, outermost first: RequestID,
// Logger, Recovery, Metrics, Compression, RouteCache. Everything below
// RequestID can rely on the id being present; the route cache sits
// innermost so cached bodies still flow through compression.
package middleware

// Package server provides HTTP routing, middleware and the JSON API of the music metadata service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering and a JSON 404
// for unknown routes.
//
// # Middleware
//
// [NewHandler] installs, outermost first: [RequestID], [Logging], [Recover] and [CORS].
//
// # Routes
//
//	GET    /test                       health message
//	GET    /api                        health message
//	GET    /api/browse/new-releases    enriched new releases (?refresh=true bypasses the cache)
//	GET    /api/browse/track-info      best catalog match (?title=&artist=)
//	GET    /api/test-endpoints         catalog endpoint probe
//	GET    /api/top-tracks             chart top tracks (?limit=)
//	GET    /api/track-info             chart track details (?artist=&track=)
//	GET    /api/chords/test            health message
//	POST   /api/chords/generate        chord analysis for {"title","artist"}
//	GET    /api/cache/stats            release cache statistics
//	DELETE /api/cache                  drop the cached release listing
//	GET    /metrics                    Prometheus exposition
//
// # Errors
//
// Failures are answered as {"error": "..."} with the status chosen by [StatusFor].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server

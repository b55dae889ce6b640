// Package server provides HTTP routing, middleware, and the playlist download API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /download/status/{jobId}").
//
// # API
//
// [APIHandler] serves:
//
//	GET  /health
//	GET  /playlist/{id}                    enhanced playlist with tidalMatchingStats
//	POST /download/start                   {playlistId} -> 201 {jobId, totalTracks, message}
//	GET  /download/status/{jobId}          job snapshot
//	POST /download/status/{jobId}/update   worker progress report -> {success: true}
//	POST /download/cancel/{jobId}          mark the job failed
//	GET  /download/file/{jobId}            stream the archive once, then delete it
//
// Errors are {"error": "..."} with status 400, 404, 409 or 500.
//
// # Server
//
// [Server] wraps [http.Server] with fixed timeouts, an optional single-instance file lock, and graceful
// shutdown when its context ends.
package server

// Package services implements the HTTP clients for both catalogs and for the app's own API.
//
// # Source Catalog
//
// [SpotifyService] implements [PlaylistSource]. It authenticates with the client-credentials grant through
// [clientcredentials.Config], whose token source refreshes automatically, and follows playlist paging so
// long playlists are exported in full.
//
// # Target Catalog
//
// [TidalService] implements [CatalogMatcher]: single and batched ISRC lookups plus fetch-by-id.
// Its bearer token comes from [AuthCache], which keeps one token per process and renews it five minutes
// before expiry.
//
// # App API Client
//
// [APIService] is a thin client for the server's own endpoints, used by the archive worker and the
// job watcher, and for dispatching work to the worker.
//
// # Error Handling
//
// Upstream failures that must carry a status are typed:
//   - [AuthError] : missing credentials or a rejected exchange; wraps [shared.ErrAuthFailed]
//   - [LookupError] : catalog query failure other than "not found"; wraps [shared.ErrLookupFailed]
//
// A 404 from the target catalog is never an error: lookups return nil or an empty map.
//
// Every outbound call runs under a [shared.RetryPolicy]: per-attempt timeout and bounded exponential
// backoff. 4xx responses other than 408/429 are not retried.
package services

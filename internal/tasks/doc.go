// Package tasks matches source playlists against the target catalog with progress reporting.
//
// # Core Operations
//
//  1. [MatchEngine.MatchAll] : resolve every track by recording code
//     - Tracks without a code are marked no_code without a lookup
//     - Codes are looked up in batches of at most [services.CatalogMatcher.MaxBatchSize]
//     - A failed batch falls back to per-track lookups so siblings keep their results
//     - A fixed pause separates consecutive batches
//
//  2. [Summarize] : pure aggregation of match results
//
//  3. [PlaylistEnhancer.Enhance] : export, match, and summarize a playlist in one call
//
// # Progress Reporting
//
// Operations accept a channel of [ProgressUpdate]. Sends use select with default so a slow reader never
// blocks matching.
//
// # Candidate Caching
//
// The optional [CandidateCache] short-circuits lookups for codes seen before. Cache failures are logged
// and never surface to the caller.
package tasks

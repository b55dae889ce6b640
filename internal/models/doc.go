// Package models defines the domain entities shared by the matching engine, the job pipeline and the HTTP surface.
//
// Catalog data:
//   - [Track] : a source catalog (Spotify) track, with an optional ISRC
//   - [CandidateTrack] : a target catalog (TIDAL) track believed to be the same recording
//
// Matching:
//   - [MatchResult] : the outcome for one source track, built only through the New*Result constructors
//   - [MatchSummary] : aggregate counts and rates over a matching pass
//   - [EnhancedPlaylist] : a source playlist annotated with per-track results and its summary
//
// Jobs:
//   - [DownloadJob] : one asynchronous "download and archive" request and its state machine
//
// Values handed out by the job store are copies; see [DownloadJob.Clone].
package models

// Package repositories implements SQLite persistence for catalog candidates.
//
// [CandidateRepository] caches resolved target-catalog tracks keyed by recording code so repeated matching
// passes skip the catalog API. Rows are soft deleted via deleted_at and excluded from queries by default.
//
// Sequence numbers provide stable, human-readable ordering (e.g. candidate #42) independent of UUIDs and
// timestamps. [NextSequence] atomically increments per-table counters in dedicated sequence tables.
package repositories

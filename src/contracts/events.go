// Package contracts defines the events published by the update site.
package contracts

import "time"

// TopicArchivesFetched receives one ArchiveFetched per archive download.
// Key: {run_id}
const TopicArchivesFetched = "chunky.archives.fetched"

// ArchiveFetched is published after a build archive was downloaded from
// upstream (a cache miss). Cache hits publish nothing.
type ArchiveFetched struct {
	// Request that triggered the download.
	RequestID string `json:"request_id"`
	// Build run the archive belongs to.
	RunID int64 `json:"run_id"`
	// Human-readable build identifier, e.g. "PR #1276" or "branch master".
	Identifier string `json:"identifier"`
	// Name of the first entry in the archive.
	EntryName string `json:"entry_name"`
	// Size of the downloaded archive.
	ArchiveBytes int `json:"archive_bytes"`
	// Whether the archive was written to the cache.
	Cached bool `json:"cached"`
	// Completion time of the download.
	FetchedAt time.Time `json:"fetched_at"`
}

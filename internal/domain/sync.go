package domain

import "time"

// SyncStatus reports the current state of the background sync loop.
type SyncStatus struct {
	Running        bool       `json:"running"`
	RepositoryName string     `json:"repository_name"`
	Interval       string     `json:"interval"`
	TotalSynced    int        `json:"total_synced"`
	ErrorCount     int        `json:"error_count"`
	LastSyncAt     *time.Time `json:"last_sync_at"`
}

// SyncResult is the outcome of one sync pass (manual or scheduled).
type SyncResult struct {
	CommitsSynced  int    `json:"commits_synced"`
	CommitsSkipped int    `json:"commits_skipped"`
	Failures       int    `json:"failures"`
	Message        string `json:"message,omitempty"`
}

package sync

import "time"

// Status is the aggregate view the host application shows instead of
// surfacing individual sync errors.
type Status struct {
	Online       bool       `json:"online"`
	Draining     bool       `json:"draining"`
	PendingItems int        `json:"pendingItems"`
	SyncedItems  int        `json:"syncedItems"`
	FailedItems  int        `json:"failedItems"`
	DroppedItems int        `json:"droppedItems"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

// DrainResult summarizes one drain pass. A pass skipped because another is
// in progress or the remote is unreachable reports Skipped with zero counts.
type DrainResult struct {
	Skipped   bool `json:"skipped"`
	Processed int  `json:"processed"`
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
	Dropped   int  `json:"dropped"`
}

// DownloadResult summarizes one remote download merge. A download skipped
// because the remote is unreachable or no user is signed in reports Skipped
// with zero counts, matching DrainResult.
type DownloadResult struct {
	Skipped    bool `json:"skipped"`
	Points     int  `json:"points"`
	Messages   int  `json:"messages"`
	Profile    bool `json:"profile"`
	Duplicates int  `json:"duplicates"` // ids already present locally
}

package repository

import "time"

type ListSyncLogsParams struct {
	TenantID uint64
	SyncType *string
	Success  *bool
	Since    *time.Time
	Limit    int
	Offset   int
}

// SyncTypeStats aggregates audit entries of one sync type.
type SyncTypeStats struct {
	SyncType      string  `json:"sync_type"`
	Total         int64   `json:"total"`
	Successful    int64   `json:"successful"`
	Records       int64   `json:"records"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// ActivityQuery matches cart-related activity for one tenant. A row matches
// when any of the non-empty identifiers match.
type ActivityQuery struct {
	TenantID           uint64
	CartToken          string
	CustomerExternalID string
	Email              string
	Since              time.Time
}

func (q ActivityQuery) HasIdentity() bool {
	return q.CartToken != "" || q.CustomerExternalID != "" || q.Email != ""
}

package domain

import "time"

// User holds the per-user sync metadata. Identity itself is issued by
// the external auth service; the server only sees the id.
type User struct {
	ID           string     `json:"id"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

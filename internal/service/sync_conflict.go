package service

import "paperlib-sync-server/internal/domain"

const defaultClientVersion int64 = 1

// resolveVersion gates a write by the version the client last saw. A write
// is accepted when the client is at least as new as the server; the stored
// version then advances by exactly one. The client's number is never adopted.
func resolveVersion(clientVersion domain.Opt[int64], serverVersion int64) (int64, error) {
	declared := clientVersion.Or(defaultClientVersion)
	if declared < serverVersion {
		return 0, ErrVersionConflict
	}
	return serverVersion + 1, nil
}

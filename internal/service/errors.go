package service

import (
	"errors"
	"fmt"
)

// The messages of these errors double as the conflict reasons reported
// back to sync clients.
var (
	ErrVersionConflict = errors.New("version conflict")
	ErrNotFound        = errors.New("not found")
	ErrRecordDeleted   = errors.New("record deleted")
	ErrPaperNotFound   = errors.New("paper not found")
	ErrBatchTooLarge   = errors.New("batch too large")
	ErrDuplicateDOI    = errors.New("doi already used by another paper")
)

// InvalidChangeError rejects a single change whose payload is unusable.
type InvalidChangeError struct {
	Field  string
	Reason string
}

func (e *InvalidChangeError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

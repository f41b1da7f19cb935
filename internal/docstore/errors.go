package docstore

import "errors"

var (
	ErrNotFound             = errors.New("record not found")
	ErrOptimisticLockFailed = errors.New("optimistic lock failed")
	ErrInvalidQuery         = errors.New("invalid query")
	ErrCorruptCollection    = errors.New("collection file is not a JSON array")
)

package analysis

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

const (
	ErrorCodeValidation   = "VALIDATION_ERROR"
	ErrorCodeIndexTimeout = "INDEXING_TIMEOUT"
	ErrorCodeIndexFailed  = "INDEXING_FAILED"
	ErrorCodeStorage      = "STORAGE_ERROR"
	ErrorCodeInternal     = "INTERNAL_ERROR"
)

package credits

import "errors"

var (
	ErrNotFound            = errors.New("ledger not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

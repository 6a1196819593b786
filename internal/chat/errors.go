package chat

import "errors"

// Error kinds surfaced by every component. Callers match with errors.Is;
// anything that matches none of them is an internal error.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("temporarily unavailable")
)

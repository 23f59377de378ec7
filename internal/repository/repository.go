package repository

import "errors"

// ErrNotFound is returned by lookup methods when no row matches.
// Store-unavailable conditions surface as the underlying driver error.
var ErrNotFound = errors.New("record not found")

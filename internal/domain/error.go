package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid execution context")
	ErrStore               = errors.New("store operation failed")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrRateLimited         = errors.New("too many requests")
)

// ErrReadDatabaseRow is a scan failure; it is a kind of ErrStore.
var ErrReadDatabaseRow = fmt.Errorf("failed to read database row: %w", ErrStore)

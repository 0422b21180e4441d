package app

import "errors"

// Service error values.
var (
	// ErrMissingStore indicates no persistence backend was configured.
	ErrMissingStore = errors.New("service requires a store")
	// ErrMissingCollector indicates no primary platform collector was
	// configured.
	ErrMissingCollector = errors.New("service requires a primary collector")
	// ErrUserNotFound indicates the requested user is not registered.
	ErrUserNotFound = errors.New("user not found")
	// ErrRefreshBusy indicates a full refresh is already running.
	ErrRefreshBusy = errors.New("refresh already in progress")
)

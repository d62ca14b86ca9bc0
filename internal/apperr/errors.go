// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrFilesystem marks directory creation or write failures inside the vault.
	ErrFilesystem = errors.New("filesystem error")
	// ErrWriteVerification marks a write that reported success but left no content on disk.
	ErrWriteVerification = errors.New("write verification failed")
	// ErrInvalidRequest marks caller input that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnavailable marks an optional component (such as the note catalog) that is turned off.
	ErrUnavailable = errors.New("unavailable")
)

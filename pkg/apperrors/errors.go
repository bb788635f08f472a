package apperrors

import "errors"

var (
	// ErrNotFound indicates a referenced contract, billing record, or
	// matching result does not exist. Sweeps skip the record and count it
	// as an error instead of aborting.
	ErrNotFound = errors.New("not found")

	// ErrInvalidData indicates an entity that slipped past upstream
	// validation (e.g. a contract whose end date precedes its start date).
	ErrInvalidData = errors.New("invalid data")

	// ErrWriteConflict indicates a concurrent upsert race. The orchestrator
	// retries once with a re-read before surfacing it.
	ErrWriteConflict = errors.New("write conflict")

	// ErrFrozen indicates an attempt to overwrite a resolved matching
	// result without forceRerun. Silently skipped, never counted as error.
	ErrFrozen = errors.New("matching result is resolved")

	// ErrRepositoryUnavailable indicates the backing store cannot be read
	// or written at all. This is the only condition fatal to a whole sweep.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

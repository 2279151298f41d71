package jobserver

import "errors"

var (
	// ErrBatchNotFound is returned when no batch with the given id is known
	ErrBatchNotFound = errors.New("batch not found")

	// ErrServerStopped is returned when a batch is added after the server shut down
	ErrServerStopped = errors.New("job server is stopped")
)

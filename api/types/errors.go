package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRequest is returned when a request has neither targets, search terms nor URLs
	ErrEmptyRequest = errors.New("request has no targets, search terms or urls")

	// ErrUnsupportedCombination is returned when a request uses fields the chosen provider cannot express
	ErrUnsupportedCombination = errors.New("unsupported field combination for provider")

	// ErrUnknownProvider is returned when no actor is configured for a provider id
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrBackendUnavailable is returned when a pinned backend has no credentials
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNoBackendAvailable is returned when automatic selection finds no usable backend
	ErrNoBackendAvailable = errors.New("no scraping backend available")

	// ErrTimedOut is returned when a job did not reach a terminal status within its budget
	ErrTimedOut = errors.New("job timed out")

	// ErrRunNotSucceeded is returned when a run ended in a terminal status other than SUCCEEDED
	ErrRunNotSucceeded = errors.New("run did not succeed")
)

// SubmissionError is returned when the remote service rejects or cannot receive a job.
// It is fatal for that job only.
type SubmissionError struct {
	ActorID    string
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submitting run for actor %s: %v", e.ActorID, e.Err)
	}
	return fmt.Sprintf("submitting run for actor %s: unexpected status code %d: %s", e.ActorID, e.StatusCode, e.Body)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransportError is returned for any non-2xx response or transport failure while polling or fetching.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status code %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Unsupported reports a request field the provider cannot express.
func Unsupported(provider ProviderId, field string) error {
	return fmt.Errorf("%w: %s does not support %s", ErrUnsupportedCombination, provider, field)
}

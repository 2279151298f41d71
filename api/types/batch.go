package types

import (
	"encoding/json"
	"errors"
	"time"
)

// Batch is one orchestrated invocation: a request plus the policy used to run it.
type Batch struct {
	ID      string     `json:"id"`
	Request JobRequest `json:"request"`
	Backend Backend    `json:"backend"`

	Keywords []string `json:"keywords,omitempty"`
	MinViews int64    `json:"min_views,omitempty"`

	// MaxConcurrentJobs bounds in-flight remote jobs for single-target providers.
	MaxConcurrentJobs int `json:"max_concurrent_jobs,omitempty"`
	// PollTimeout and PollInterval travel as seconds in JSON.
	PollTimeout  time.Duration `json:"poll_timeout,omitempty"`
	PollInterval time.Duration `json:"poll_interval,omitempty"`
}

func (b Batch) MarshalJSON() ([]byte, error) {
	type plain Batch
	return json.Marshal(struct {
		plain
		PollTimeout  float64 `json:"poll_timeout,omitempty"`
		PollInterval float64 `json:"poll_interval,omitempty"`
	}{plain(b), b.PollTimeout.Seconds(), b.PollInterval.Seconds()})
}

func (b *Batch) UnmarshalJSON(data []byte) error {
	type plain Batch
	aux := struct {
		*plain
		PollTimeout  float64 `json:"poll_timeout,omitempty"`
		PollInterval float64 `json:"poll_interval,omitempty"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.PollTimeout = fromSeconds(aux.PollTimeout)
	b.PollInterval = fromSeconds(aux.PollInterval)
	return nil
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// BatchState tracks how far the orchestrator got with a batch.
type BatchState string

const (
	BatchNotStarted    BatchState = "not_started"
	BatchBackendChosen BatchState = "backend_chosen"
	BatchPerTargetLoop BatchState = "per_target_loop"
	BatchAggregated    BatchState = "aggregated"
	BatchFiltered      BatchState = "filtered"
	BatchDone          BatchState = "done"
)

// TargetFailure records one target whose job produced no records because of an error.
type TargetFailure struct {
	Target string `json:"target"`
	JobID  string `json:"job_id,omitempty"`
	Err    error  `json:"-"`
}

// Reason is the error text of the failure.
func (f TargetFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// TimedOut reports whether the failure was a poll timeout.
func (f TargetFailure) TimedOut() bool {
	return errors.Is(f.Err, ErrTimedOut)
}

// JobSummary is the per-job trace kept on a batch result.
type JobSummary struct {
	Targets []string  `json:"targets"`
	RunID   string    `json:"run_id,omitempty"`
	Status  JobStatus `json:"status"`
	Records int       `json:"records"`
}

// Outcome classifies a finished batch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePartialSuccess
	OutcomeEmptyResult
	OutcomeFailed
)

// ExitCode maps the outcome onto the CLI process status.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomePartialSuccess:
		return 2
	case OutcomeEmptyResult:
		return 3
	default:
		return 1
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartialSuccess:
		return "partial_success"
	case OutcomeEmptyResult:
		return "empty_result"
	default:
		return "failed"
	}
}

// BatchResult is what the orchestrator hands back once a batch is done.
type BatchResult struct {
	ID       string     `json:"id"`
	Backend  Backend    `json:"backend"`
	Provider ProviderId `json:"provider"`
	State    BatchState `json:"state"`

	Records []CanonicalRecord `json:"records"`
	// TotalFetched counts normalised records before post-filtering.
	TotalFetched int             `json:"total_fetched"`
	Failures     []TargetFailure `json:"failures"`
	Jobs         []JobSummary    `json:"jobs"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Outcome derives the batch outcome from its records and failures.
func (r *BatchResult) Outcome() Outcome {
	switch {
	case len(r.Failures) == 0 && len(r.Records) > 0:
		return OutcomeSuccess
	case len(r.Records) > 0:
		return OutcomePartialSuccess
	case len(r.Failures) > 0 && len(r.Failures) >= len(r.Jobs):
		return OutcomeFailed
	default:
		return OutcomeEmptyResult
	}
}

// BatchResponse is returned by the serve mode when a batch is accepted.
type BatchResponse struct {
	UID string `json:"uid"`
}

// BatchError is the error body returned by the serve mode.
type BatchError struct {
	Error string `json:"error"`
}

// FailureReport is the JSON view of a TargetFailure.
type FailureReport struct {
	Target   string `json:"target"`
	JobID    string `json:"job_id,omitempty"`
	Reason   string `json:"reason"`
	TimedOut bool   `json:"timed_out"`
}

// BatchReport is the JSON view of a finished batch served over HTTP.
type BatchReport struct {
	ID           string            `json:"id"`
	Backend      Backend           `json:"backend"`
	Provider     ProviderId        `json:"provider"`
	State        BatchState        `json:"state"`
	Outcome      string            `json:"outcome"`
	TotalFetched int               `json:"total_fetched"`
	Records      []CanonicalRecord `json:"records"`
	Failures     []FailureReport   `json:"failures"`
	Jobs         []JobSummary      `json:"jobs"`
	Error        string            `json:"error,omitempty"`
}

// Report converts the result into its JSON view.
func (r *BatchResult) Report() BatchReport {
	rep := BatchReport{
		ID:           r.ID,
		Backend:      r.Backend,
		Provider:     r.Provider,
		State:        r.State,
		Outcome:      r.Outcome().String(),
		TotalFetched: r.TotalFetched,
		Records:      r.Records,
		Failures:     make([]FailureReport, 0, len(r.Failures)),
		Jobs:         r.Jobs,
	}
	if rep.Records == nil {
		rep.Records = []CanonicalRecord{}
	}
	for _, f := range r.Failures {
		rep.Failures = append(rep.Failures, FailureReport{
			Target:   f.Target,
			JobID:    f.JobID,
			Reason:   f.Reason(),
			TimedOut: f.TimedOut(),
		})
	}
	return rep
}

package types

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ProviderId names one remote scraping backend together with its payload and result schema.
type ProviderId string

// SessionProvider identifies records fetched over the authenticated session backend.
const SessionProvider ProviderId = "telegram-session"

// Family groups providers whose results share field naming conventions.
type Family string

const (
	FamilyTelegram Family = "telegram"
	FamilyX        Family = "x"
	FamilyLinkedIn Family = "linkedin"
	FamilySession  Family = "session"
)

// Backend is the execution path used for a batch.
type Backend string

const (
	BackendAuto    Backend = "auto"
	BackendApify   Backend = "apify"
	BackendSession Backend = "session"
)

// ParseBackend accepts the backend names used on the command line and in batch files.
// "telethon" is kept as an alias of the session backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BackendAuto, nil
	case "apify":
		return BackendApify, nil
	case "session", "telethon":
		return BackendSession, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// JobRequest is the logical, provider independent description of what to scrape.
// It is built once per invocation and never mutated afterwards.
type JobRequest struct {
	Targets      []string   `json:"targets,omitempty"`
	SearchTerms  []string   `json:"search_terms,omitempty"`
	URLs         []string   `json:"urls,omitempty"`
	Limit        uint       `json:"limit"`
	Provider     ProviderId `json:"provider"`
	DateFrom     *time.Time `json:"date_from,omitempty"`
	DateTo       *time.Time `json:"date_to,omitempty"`
	Days         uint       `json:"days,omitempty"`
	PostsFrom    uint       `json:"posts_from,omitempty"`
	PostsTo      uint       `json:"posts_to,omitempty"`
	Sort         string     `json:"sort,omitempty"`
	Lang         string     `json:"lang,omitempty"`
	IncludeMedia bool       `json:"include_media,omitempty"`
	// ResumeFrom is accepted and carried along but no scrape path consults it.
	ResumeFrom string `json:"resume_from,omitempty"`
	MemoryMB   uint   `json:"memory_mb,omitempty"`
	// Timeout travels as seconds in JSON.
	Timeout time.Duration `json:"timeout,omitempty"`
}

func (r JobRequest) MarshalJSON() ([]byte, error) {
	type plain JobRequest
	return json.Marshal(struct {
		plain
		Timeout float64 `json:"timeout,omitempty"`
	}{plain(r), r.Timeout.Seconds()})
}

func (r *JobRequest) UnmarshalJSON(data []byte) error {
	type plain JobRequest
	aux := struct {
		*plain
		Timeout float64 `json:"timeout,omitempty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Timeout = fromSeconds(aux.Timeout)
	return nil
}

// Validate checks the request invariants that do not depend on the provider.
func (r JobRequest) Validate() error {
	if len(r.Targets) == 0 && len(r.SearchTerms) == 0 && len(r.URLs) == 0 {
		return ErrEmptyRequest
	}
	if r.DateFrom != nil && r.DateTo != nil && r.DateTo.Before(*r.DateFrom) {
		return fmt.Errorf("date_to %s is before date_from %s", r.DateTo.Format(time.RFC3339), r.DateFrom.Format(time.RFC3339))
	}
	if r.PostsFrom > 0 && r.PostsTo > 0 && r.PostsTo < r.PostsFrom {
		return fmt.Errorf("posts_to %d is before posts_from %d", r.PostsTo, r.PostsFrom)
	}
	return nil
}

// HasPostRange reports whether the request asks for a post-number range.
func (r JobRequest) HasPostRange() bool {
	return r.PostsFrom > 0 || r.PostsTo > 0
}

// ForTarget returns a copy of the request scoped to a single target.
func (r JobRequest) ForTarget(target string) JobRequest {
	out := r.clone()
	out.Targets = []string{target}
	out.SearchTerms = nil
	out.URLs = nil
	return out
}

// ForSearchTerm returns a copy of the request scoped to a single search term.
func (r JobRequest) ForSearchTerm(term string) JobRequest {
	out := r.clone()
	out.Targets = nil
	out.SearchTerms = []string{term}
	out.URLs = nil
	return out
}

func (r JobRequest) clone() JobRequest {
	out := r
	out.Targets = slices.Clone(r.Targets)
	out.SearchTerms = slices.Clone(r.SearchTerms)
	out.URLs = slices.Clone(r.URLs)
	return out
}

// JobSpec is the provider specific payload derived from a JobRequest.
// Input is opaque to everything except the remote job client.
type JobSpec struct {
	Provider ProviderId `json:"provider"`
	ActorID  string     `json:"actor_id"`
	Input    any        `json:"input"`
	MemoryMB uint       `json:"memory_mb,omitempty"`
	// Timeout is forwarded to the remote service as the run's own time budget.
	Timeout time.Duration `json:"timeout,omitempty"`
	// Targets lists the targets covered by this spec, already normalised.
	Targets []string `json:"targets"`
	// Limit is the effective per-target result limit after provider clamping.
	Limit       uint `json:"limit"`
	MultiTarget bool `json:"multi_target"`
}

// Label identifies the spec in logs and failure reports.
func (s JobSpec) Label() string {
	return strings.Join(s.Targets, ",")
}

// JobStatus is the lifecycle state of a remote job.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusSucceeded JobStatus = "SUCCEEDED"
	StatusFailed    JobStatus = "FAILED"
	StatusAborted   JobStatus = "ABORTED"
	StatusTimedOut  JobStatus = "TIMED_OUT"
)

// IsTerminal reports whether no further status transition is expected.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

// ParseRunStatus maps a remote run status string onto a JobStatus.
// Transitional states (TIMING-OUT, ABORTING) are reported as still running.
func ParseRunStatus(remote string) JobStatus {
	switch strings.ToUpper(remote) {
	case "READY", "":
		return StatusPending
	case "RUNNING", "TIMING-OUT", "ABORTING":
		return StatusRunning
	case "SUCCEEDED":
		return StatusSucceeded
	case "FAILED":
		return StatusFailed
	case "ABORTED":
		return StatusAborted
	case "TIMED-OUT":
		return StatusTimedOut
	default:
		return StatusRunning
	}
}

// JobHandle identifies one in-flight remote job.
type JobHandle struct {
	RunID       string     `json:"run_id"`
	DatasetID   string     `json:"dataset_id,omitempty"`
	ActorID     string     `json:"actor_id"`
	Provider    ProviderId `json:"provider"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// WithDataset returns a copy of the handle pointing at the given dataset.
func (h JobHandle) WithDataset(datasetID string) JobHandle {
	h.DatasetID = datasetID
	return h
}

// ProgressSnapshot is reported on every poll attempt.
type ProgressSnapshot struct {
	RunID     string        `json:"run_id"`
	Status    JobStatus     `json:"status"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
}

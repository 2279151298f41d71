package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
)

// Apify is the remote job API used by the orchestrator.
type Apify interface {
	Submit(ctx context.Context, spec types.JobSpec) (types.JobHandle, error)
	Poll(ctx context.Context, handle types.JobHandle, timeout, interval time.Duration) (types.JobStatus, types.JobHandle, error)
	FetchResults(ctx context.Context, datasetID string, fn func(types.RawRecord) error) error
	ValidateApiKey(ctx context.Context) error
}

// ApifyClient represents a client for the Apify API
type ApifyClient struct {
	apiToken string
	baseUrl  string
	options  *Options
}

var _ Apify = (*ApifyClient)(nil)

// ActorRunResponse represents the response from running an actor
type ActorRunResponse struct {
	Data struct {
		ID               string `json:"id"`
		ActId            string `json:"actId"`
		Status           string `json:"status"`
		DefaultDatasetId string `json:"defaultDatasetId"`
	} `json:"data"`
}

// NewApifyClient creates a new Apify client with functional options
func NewApifyClient(apiToken string, opts ...Option) (*ApifyClient, error) {
	logrus.Debug("Creating new ApifyClient")

	if apiToken == "" {
		return nil, errors.New("apify api token is required")
	}

	options, err := NewOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create options: %w", err)
	}

	return &ApifyClient{
		apiToken: apiToken,
		baseUrl:  options.BaseURL,
		options:  options,
	}, nil
}

func (c *ApifyClient) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if !c.options.BearerAuth {
		query.Set("token", c.apiToken)
	}
	u := c.baseUrl + path
	if enc := query.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// do executes the request and returns the status code and body. Transport
// errors are stripped of the request URL, which carries the token.
func (c *ApifyClient) do(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating %s request: %w", method, redact(err))
	}
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}
	if c.options.BearerAuth {
		req.Header.Add("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.options.HttpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("error making %s request: %w", method, redact(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// Submit starts an actor run for the spec. It is never retried.
func (c *ApifyClient) Submit(ctx context.Context, spec types.JobSpec) (types.JobHandle, error) {
	query := url.Values{}
	if spec.MemoryMB > 0 {
		query.Set("memory", fmt.Sprint(spec.MemoryMB))
	}
	if spec.Timeout > 0 {
		query.Set("timeout", fmt.Sprint(int64(spec.Timeout.Seconds())))
	}
	log := logrus.WithFields(logrus.Fields{"actor": spec.ActorID, "provider": spec.Provider})
	log.Infof("Running actor %s for %s", spec.ActorID, spec.Label())

	inputJSON, err := json.Marshal(spec.Input)
	if err != nil {
		log.Errorf("error marshaling actor input: %v", err)
		return types.JobHandle{}, &types.SubmissionError{ActorID: spec.ActorID, Err: fmt.Errorf("error marshaling actor input: %w", err)}
	}

	status, body, err := c.do(ctx, http.MethodPost, c.endpoint("/acts/"+url.PathEscape(spec.ActorID)+"/runs", query), inputJSON)
	if err != nil {
		log.Errorf("error submitting run: %v", err)
		return types.JobHandle{}, &types.SubmissionError{ActorID: spec.ActorID, StatusCode: status, Err: err}
	}
	if status != http.StatusCreated {
		log.Errorf("unexpected status code %d: %s", status, string(body))
		return types.JobHandle{}, &types.SubmissionError{ActorID: spec.ActorID, StatusCode: status, Body: string(body)}
	}

	var runResp ActorRunResponse
	if err := json.Unmarshal(body, &runResp); err != nil {
		log.Errorf("error parsing response: %v", err)
		return types.JobHandle{}, &types.SubmissionError{ActorID: spec.ActorID, StatusCode: status, Err: fmt.Errorf("error parsing response: %w", err)}
	}
	if runResp.Data.ID == "" {
		return types.JobHandle{}, &types.SubmissionError{ActorID: spec.ActorID, StatusCode: status, Err: errors.New("response carries no run id")}
	}

	log.Infof("Actor run started with ID: %s", runResp.Data.ID)
	return types.JobHandle{
		RunID:       runResp.Data.ID,
		DatasetID:   runResp.Data.DefaultDatasetId,
		ActorID:     spec.ActorID,
		Provider:    spec.Provider,
		SubmittedAt: c.options.Clock.Now(),
	}, nil
}

// GetActorRun gets the status of an actor run
func (c *ApifyClient) GetActorRun(ctx context.Context, runId string) (*ActorRunResponse, error) {
	logrus.Debugf("Getting actor run status: %s", runId)

	op := "getting actor run " + runId
	status, body, err := c.do(ctx, http.MethodGet, c.endpoint("/actor-runs/"+url.PathEscape(runId), nil), nil)
	if err != nil {
		return nil, &types.TransportError{Op: op, StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		logrus.Errorf("unexpected status code %d: %s", status, string(body))
		return nil, &types.TransportError{Op: op, StatusCode: status, Body: string(body)}
	}

	var runResp ActorRunResponse
	if err := json.Unmarshal(body, &runResp); err != nil {
		logrus.Errorf("error parsing response: %v", err)
		return nil, &types.TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("error parsing response: %w", err)}
	}
	return &runResp, nil
}

// Poll observes a run until it reaches a terminal status or timeout elapses.
// Sleeps never run past the budget and the status is checked once more when it
// is spent. Running past the budget yields StatusTimedOut without an error; the
// remote run may keep going. The returned handle carries the run's dataset id.
func (c *ApifyClient) Poll(ctx context.Context, handle types.JobHandle, timeout, interval time.Duration) (types.JobStatus, types.JobHandle, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	clock := c.options.Clock
	start := clock.Now()
	log := logrus.WithFields(logrus.Fields{"run": handle.RunID, "provider": handle.Provider})

	for {
		run, err := c.GetActorRun(ctx, handle.RunID)
		if err != nil {
			return "", handle, err
		}
		status := types.ParseRunStatus(run.Data.Status)
		if run.Data.DefaultDatasetId != "" {
			handle = handle.WithDataset(run.Data.DefaultDatasetId)
		}

		elapsed := clock.Now().Sub(start)
		remaining := max(timeout-elapsed, 0)
		c.progress(handle.RunID, status, elapsed, remaining)
		if status.IsTerminal() {
			log.Infof("Run finished with status %s", run.Data.Status)
			return status, handle, nil
		}
		if remaining == 0 {
			log.Warnf("Timeout after %s, the run may still be running remotely", timeout)
			c.progress(handle.RunID, types.StatusTimedOut, elapsed, 0)
			return types.StatusTimedOut, handle, nil
		}
		log.Debugf("Status: %s | Elapsed: %ds | Remaining: %ds", run.Data.Status, int(elapsed.Seconds()), int(remaining.Seconds()))

		if err := clock.Sleep(ctx, min(interval, remaining)); err != nil {
			return "", handle, fmt.Errorf("polling run %s: %w", handle.RunID, err)
		}
	}
}

func (c *ApifyClient) progress(runID string, status types.JobStatus, elapsed, remaining time.Duration) {
	if c.options.Progress == nil {
		return
	}
	c.options.Progress(types.ProgressSnapshot{RunID: runID, Status: status, Elapsed: elapsed, Remaining: remaining})
}

// GetDatasetItems gets one page of items from a dataset
func (c *ApifyClient) GetDatasetItems(ctx context.Context, datasetId string, offset, limit int) ([]json.RawMessage, error) {
	logrus.Debugf("Getting dataset items: %s (offset: %d, limit: %d)", datasetId, offset, limit)

	query := url.Values{}
	query.Set("offset", fmt.Sprint(offset))
	query.Set("limit", fmt.Sprint(limit))
	query.Set("format", "json")

	op := "getting items of dataset " + datasetId
	status, body, err := c.do(ctx, http.MethodGet, c.endpoint("/datasets/"+url.PathEscape(datasetId)+"/items", query), nil)
	if err != nil {
		return nil, &types.TransportError{Op: op, StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		logrus.Errorf("unexpected status code %d: %s", status, string(body))
		return nil, &types.TransportError{Op: op, StatusCode: status, Body: string(body)}
	}

	// Apify returns a direct array of items, not wrapped in a data object
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		logrus.Errorf("error parsing response: %v", err)
		return nil, &types.TransportError{Op: op, StatusCode: status, Err: fmt.Errorf("error parsing response: %w", err)}
	}

	logrus.Debugf("Retrieved %d items from dataset", len(items))
	return items, nil
}

// FetchResults walks the dataset page by page and hands every item to fn.
// Iteration ends on the first page shorter than the page size. Items that are
// not JSON objects are skipped.
func (c *ApifyClient) FetchResults(ctx context.Context, datasetID string, fn func(types.RawRecord) error) error {
	pageSize := c.options.PageSize
	offset := 0
	for {
		items, err := c.GetDatasetItems(ctx, datasetID, offset, pageSize)
		if err != nil {
			return err
		}
		for i, item := range items {
			var rec types.RawRecord
			if err := json.Unmarshal(item, &rec); err != nil {
				logrus.Warnf("skipping dataset item %d: %v", offset+i, err)
				continue
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		if len(items) < pageSize {
			return nil
		}
		offset += len(items)
	}
}

// ValidateApiKey tests if the API token is valid by making a request to /users/me
// This endpoint doesn't consume any actor runs or quotas - it's perfect for validation
func (c *ApifyClient) ValidateApiKey(ctx context.Context) error {
	logrus.Debug("Testing Apify API token")

	status, _, err := c.do(ctx, http.MethodGet, c.endpoint("/users/me", nil), nil)
	if err != nil {
		logrus.Errorf("error making auth test request: %v", err)
		return fmt.Errorf("error making auth test request: %w", err)
	}

	switch status {
	case http.StatusOK:
		logrus.Debug("Apify API token validation successful")
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("invalid Apify API token")
	case http.StatusForbidden:
		return fmt.Errorf("insufficient permissions for Apify API token")
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limit exceeded")
	default:
		return fmt.Errorf("Apify API auth test failed with status: %d", status)
	}
}

package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/masa-finance/unified-scraper/api/types"
)

// ErrBatchPending is returned by GetResult while a batch is still running.
var ErrBatchPending = errors.New("batch is still running")

// Client represents a client to interact with the scraper running in serve mode.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	options    *Options
}

// NewClient creates a new Client instance.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	options, err := NewOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create options: %w", err)
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: options.HttpClient,
		options:    options,
	}, nil
}

func (c *Client) newRequest(method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.options.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.options.APIKey)
	}
	return req, nil
}

// SubmitBatch submits a new batch to the server and returns a handle to wait on.
func (c *Client) SubmitBatch(batch types.Batch) (*PendingBatch, error) {
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("error marshaling batch: %w", err)
	}

	req, err := c.newRequest(http.MethodPost, "/batch/add", bytes.NewBuffer(batchJSON))
	if err != nil {
		return nil, fmt.Errorf("error creating POST request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending POST request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error: received status code %d: %s", resp.StatusCode, string(body))
	}

	var batchResp types.BatchResponse
	if err := json.Unmarshal(body, &batchResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	return &PendingBatch{UUID: batchResp.UID, client: c, maxRetries: 120, delay: 5 * time.Second}, nil
}

// GetResult retrieves the report of a batch. The boolean is false while the
// batch is still running or when it does not exist.
func (c *Client) GetResult(batchUUID string) (*types.BatchReport, bool, error) {
	req, err := c.newRequest(http.MethodGet, "/batch/status/"+batchUUID, nil)
	if err != nil {
		return nil, false, fmt.Errorf("error creating GET request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("error sending GET request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("error reading response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, false, fmt.Errorf("batch not found")
	case http.StatusAccepted:
		return nil, false, ErrBatchPending
	case http.StatusOK:
		var report types.BatchReport
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, false, fmt.Errorf("error unmarshaling report: %w", err)
		}
		return &report, true, nil
	}

	respErr := types.BatchError{}
	_ = json.Unmarshal(body, &respErr)
	if respErr.Error != "" {
		return nil, true, fmt.Errorf("error: %s", respErr.Error)
	}
	return nil, false, fmt.Errorf("error: received status code %d", resp.StatusCode)
}

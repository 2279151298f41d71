package client

import (
	"fmt"
	"time"

	"github.com/masa-finance/unified-scraper/api/types"
)

// PendingBatch is a batch accepted by the server whose report is not fetched yet.
type PendingBatch struct {
	UUID       string
	maxRetries int
	delay      time.Duration
	client     *Client
}

func (pb *PendingBatch) SetMaxRetries(maxRetries int) {
	pb.maxRetries = maxRetries
}

func (pb *PendingBatch) SetDelay(delay time.Duration) {
	pb.delay = delay
}

func (pb *PendingBatch) getResult() (*types.BatchReport, bool, error) {
	return pb.client.GetResult(pb.UUID)
}

// Get polls the server until the batch report is ready or the retries run out.
func (pb *PendingBatch) Get() (report *types.BatchReport, err error) {
	retries := 0
	var resultIsAvailable bool

	for {
		if retries >= pb.maxRetries {
			return nil, fmt.Errorf("max retries reached: %w", err)
		}
		retries++

		report, resultIsAvailable, err = pb.getResult()
		if resultIsAvailable {
			break
		}
		time.Sleep(pb.delay)
	}

	return
}

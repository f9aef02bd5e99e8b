// Package batch executes arbitrarily long lists of put or delete requests
// against DynamoDB's size-capped BatchWriteItem API.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/lifeomic/dynamost/pkg/core"
	dsterrors "github.com/lifeomic/dynamost/pkg/errors"
)

const (
	// MaxBatchItems is DynamoDB's hard per-call item limit for BatchWriteItem.
	MaxBatchItems = 25

	// MaxInFlight bounds concurrent chunk requests. DynamoDB throttles
	// clients issuing many large requests at once, so two in flight is the
	// default budget.
	MaxInFlight = 2

	// MaxAttempts is the per-chunk attempt budget before unprocessed items
	// become a terminal failure.
	MaxAttempts = 5

	// DefaultBaseDelay seeds the exponential backoff between retries of a
	// chunk's unprocessed remainder.
	DefaultBaseDelay = 100 * time.Millisecond
)

// sleepFn is swapped out by tests to avoid real backoff delays.
var sleepFn = time.Sleep

// Executor splits write requests into chunks, runs the chunks with bounded
// concurrency and retries each chunk's unprocessed remainder with exponential
// backoff. The zero values of the limit fields fall back to the package
// defaults, so Executor{Client: c} is ready to use.
type Executor struct {
	Client    core.DynamoDBAPI
	ChunkSize int
	InFlight  int
	Attempts  int
	BaseDelay time.Duration
}

// PutRequests wraps marshalled items as put write requests.
func PutRequests(items []map[string]types.AttributeValue) []types.WriteRequest {
	reqs := make([]types.WriteRequest, len(items))
	for i, item := range items {
		reqs[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
	}
	return reqs
}

// DeleteRequests wraps key maps as delete write requests.
func DeleteRequests(keys []map[string]types.AttributeValue) []types.WriteRequest {
	reqs := make([]types.WriteRequest, len(keys))
	for i, key := range keys {
		reqs[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}}
	}
	return reqs
}

// Write sends all requests to the named table. Chunks may complete in any
// order; the only outcomes are full success or an error once a chunk's
// attempt budget is spent. Individual in-chunk successes are not reported.
func (e *Executor) Write(ctx context.Context, table string, requests []types.WriteRequest) error {
	if len(requests) == 0 {
		return nil
	}

	chunkSize := e.ChunkSize
	if chunkSize <= 0 || chunkSize > MaxBatchItems {
		chunkSize = MaxBatchItems
	}
	inFlight := e.InFlight
	if inFlight <= 0 {
		inFlight = MaxInFlight
	}

	var chunks [][]types.WriteRequest
	for start := 0; start < len(requests); start += chunkSize {
		end := start + chunkSize
		if end > len(requests) {
			end = len(requests)
		}
		chunks = append(chunks, requests[start:end])
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, inFlight)
	errCh := make(chan error, len(chunks))

	for _, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(reqs []types.WriteRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.writeChunk(ctx, table, reqs, 0); err != nil {
				errCh <- err
			}
		}(chunk)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

// writeChunk issues one chunk and recurses on the unprocessed remainder until
// it drains or the attempt budget runs out.
func (e *Executor) writeChunk(ctx context.Context, table string, requests []types.WriteRequest, attempt int) error {
	attempts := e.Attempts
	if attempts <= 0 {
		attempts = MaxAttempts
	}
	if attempt >= attempts {
		return dsterrors.New("batch write", table,
			fmt.Errorf("%w: %d items unprocessed after %d attempts",
				dsterrors.ErrRetriesExhausted, len(requests), attempts))
	}

	if attempt > 0 {
		base := e.BaseDelay
		if base <= 0 {
			base = DefaultBaseDelay
		}
		sleepFn(base * (1 << attempt) / 2)
	}

	out, err := e.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{table: requests},
	})
	if err != nil {
		return err
	}

	unprocessed := out.UnprocessedItems[table]
	if len(unprocessed) == 0 {
		return nil
	}
	return e.writeChunk(ctx, table, unprocessed, attempt+1)
}

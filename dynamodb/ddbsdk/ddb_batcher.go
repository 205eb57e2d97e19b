package ddbsdk

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/acksell/ddbpersist/dynamodb/table"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxBatchWriteItems is the DynamoDB limit of requests in one BatchWriteItem call.
const MaxBatchWriteItems = 25

func NewBatcher(ddb AWSDynamoClientV2, opts ...BatchOption) *batcher {
	b := &batcher{
		awsddb:  ddb,
		ids:     make(map[string]bool),
		keyDefs: make(map[string]table.PrimaryKeyDefinition),
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	// Default exponential backoff: 50ms base, 2x multiplier, 5s cap, full jitter
	if b.opts.backoff == nil {
		b.opts.backoff = DefaultBackoff
	}
	return b
}

type pendingWrite struct {
	id     string
	action BatchAction
	req    types.WriteRequest
}

type batcher struct {
	awsddb AWSDynamoClientV2
	opts   batchOpts

	// pending writes in the order they were added.
	pending []pendingWrite
	ids     map[string]bool
	keyDefs map[string]table.PrimaryKeyDefinition
	rounds  int
}

var _ Batcher = &batcher{}

// AddAction adds BatchActions (Put or Delete) to the batch.
// Returns error if an action with the same table+primarykey already exists,
// or if the action has a condition expression set. Nothing is added on error.
func (b *batcher) AddAction(actions ...BatchAction) error {
	staged := make([]pendingWrite, 0, len(actions))
	seen := make(map[string]bool, len(actions))
	for _, a := range actions {
		if a.TableName() == nil || *a.TableName() == "" {
			return fmt.Errorf("missing table name for action %T on key %s", a, a.PrimaryKey())
		}
		req, err := a.ToBatchWriteRequest()
		if err != nil {
			return err
		}
		id := actionID(*a.TableName(), a.PrimaryKey())
		if b.ids[id] || seen[id] {
			return fmt.Errorf("duplicate action for table %s key %s", *a.TableName(), a.PrimaryKey())
		}
		seen[id] = true
		staged = append(staged, pendingWrite{id: id, action: a, req: req})
	}
	for _, w := range staged {
		b.ids[w.id] = true
		b.keyDefs[*w.action.TableName()] = w.action.PrimaryKey().Definition
		b.pending = append(b.pending, w)
	}
	return nil
}

// Exec sends every pending write once, in calls of at most MaxBatchWriteItems.
// Writes DynamoDB leaves unprocessed, or that were throttled, stay pending and are
// reported in the result.
func (b *batcher) Exec(ctx context.Context) (ExecResult, error) {
	if len(b.pending) == 0 {
		return b.result(), nil
	}
	b.rounds++

	var left []pendingWrite
	queue := b.pending
	for len(queue) > 0 {
		n := min(MaxBatchWriteItems, len(queue))
		chunk := queue[:n]
		queue = queue[n:]

		unprocessed, err := b.write(ctx, chunk)
		if err != nil {
			b.pending = append(append(left, chunk...), queue...)
			if ddbiface.IsThrottle(err) {
				return b.result(), nil
			}
			return b.result(), err
		}
		left = append(left, unprocessed...)
	}
	b.pending = left
	return b.result(), nil
}

func (b *batcher) write(ctx context.Context, chunk []pendingWrite) ([]pendingWrite, error) {
	items := make(map[string][]types.WriteRequest)
	byID := make(map[string]pendingWrite, len(chunk))
	for _, w := range chunk {
		tableName := *w.action.TableName()
		items[tableName] = append(items[tableName], w.req)
		byID[w.id] = w
	}
	res, err := b.awsddb.BatchWriteItem(ctx, &dynamodbv2.BatchWriteItemInput{
		RequestItems: items,
	})
	if err != nil {
		return nil, ddbiface.NewStorageError("BatchWriteItem", err)
	}
	if len(res.UnprocessedItems) == 0 {
		return nil, nil
	}
	var unprocessed []pendingWrite
	for tableName, reqs := range res.UnprocessedItems {
		for _, req := range reqs {
			pk, err := b.keyDefs[tableName].ExtractPrimaryKey(requestKey(req))
			if err != nil {
				return nil, fmt.Errorf("unprocessed item in %s: %w", tableName, err)
			}
			w, ok := byID[actionID(tableName, pk)]
			if !ok {
				return nil, fmt.Errorf("unprocessed item in %s for key %s that was not requested", tableName, pk)
			}
			unprocessed = append(unprocessed, w)
		}
	}
	// keep the order the writes were added in
	order := make(map[string]int, len(chunk))
	for i, w := range chunk {
		order[w.id] = i
	}
	slices.SortFunc(unprocessed, func(a, b pendingWrite) int {
		return order[a.id] - order[b.id]
	})
	return unprocessed, nil
}

func (b *batcher) result() ExecResult {
	res := ExecResult{Retries: max(b.rounds-1, 0)}
	if len(b.pending) == 0 {
		return res
	}
	res.Unprocessed = make(map[string][]types.WriteRequest)
	for _, w := range b.pending {
		tableName := *w.action.TableName()
		res.Unprocessed[tableName] = append(res.Unprocessed[tableName], w.req)
		res.UnprocessedActions = append(res.UnprocessedActions, w.action)
	}
	return res
}

// ExecAndRetry writes all pending items, retrying until complete or limits exceeded.
// At least one of [WithMaxRetries] or [WithTimeout] must be configured.
// Uses exponential backoff by default (50ms, 100ms, 200ms, ...), override with [WithCustomBackoff].
//
// Running out of retries or hitting the timeout is not an error: the result lists
// what was not written. Cancellation of ctx itself is returned as an error.
//
// Example:
//
//	batch := client.NewBatch(ddbsdk.WithMaxRetries(5))
//	batch.AddAction(putUser, putOrder, deleteOldItem)
//	res, err := batch.ExecAndRetry(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := res.Err(); err != nil {
//	    log.Printf("%d writes left: %v", len(res.UnprocessedActions), err)
//	}
func (b *batcher) ExecAndRetry(ctx context.Context) (ExecResult, error) {
	if b.opts.maxRetries == 0 && b.opts.timeout == 0 {
		return b.result(), fmt.Errorf("ExecAndRetry requires WithMaxRetries or WithTimeout to be configured")
	}
	parent := ctx
	if b.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.timeout)
		defer cancel()
	}
	for {
		res, err := b.Exec(ctx)
		if err != nil {
			if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return b.result(), nil
			}
			return res, err
		}
		if res.Done() {
			return res, nil
		}
		if b.opts.maxRetries > 0 && res.Retries >= b.opts.maxRetries {
			return res, nil
		}
		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return res, parent.Err()
			}
			return res, nil
		case <-time.After(b.opts.backoff(res.Retries)):
		}
	}
}

// requestKey returns the attributes of a WriteRequest that hold its key.
func requestKey(wr types.WriteRequest) map[string]types.AttributeValue {
	if wr.PutRequest != nil {
		return wr.PutRequest.Item
	}
	if wr.DeleteRequest != nil {
		return wr.DeleteRequest.Key
	}
	return nil
}

func countRequests(m map[string][]types.WriteRequest) int {
	var n int
	for _, reqs := range m {
		n += len(reqs)
	}
	return n
}

// ExecResult contains the result of a Write operation.
type ExecResult struct {
	Unprocessed map[string][]types.WriteRequest
	// UnprocessedActions are the actions behind Unprocessed, in the order they were added.
	UnprocessedActions []BatchAction
	// Retries is the number of rounds after the first.
	Retries int
}

// Done returns true if all items were successfully processed.
func (r ExecResult) Done() bool {
	return len(r.Unprocessed) == 0
}

// Err returns nil if Done(), otherwise returns an error.
func (r ExecResult) Err() error {
	if r.Done() {
		return nil
	}
	return fmt.Errorf("batch incomplete: %d items unprocessed after %d retries", countRequests(r.Unprocessed), r.Retries)
}

type BatchOption func(*batchOpts)

// BackoffFunc returns the duration to wait before retry attempt n.
type BackoffFunc func(attempt int) time.Duration

// WithMaxRetries sets the maximum number of retry attempts for [ExecAndRetry].
func WithMaxRetries(n int) BatchOption {
	return func(o *batchOpts) {
		o.maxRetries = n
	}
}

// WithTimeout sets a timeout for [ExecAndRetry].
func WithTimeout(d time.Duration) BatchOption {
	return func(o *batchOpts) {
		o.timeout = d
	}
}

// WithCustomBackoff sets a custom backoff function for [ExecAndRetry].
func WithCustomBackoff(fn BackoffFunc) BatchOption {
	return func(o *batchOpts) {
		o.backoff = fn
	}
}

// WithExponentialBackoff sets exponential backoff for [ExecAndRetry].
// See [ExponentialBackoff] for details.
func WithExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BatchOption {
	return WithCustomBackoff(ExponentialBackoff(base, multiplier, cap))
}

// ExponentialBackoff returns a capped exponential backoff with full jitter.
// Wait time is: rand(0, min(cap, base * multiplier^attempt))
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func ExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		factor := 1.0
		for i := 0; i < attempt; i++ {
			factor *= multiplier
		}
		backoff := time.Duration(float64(base) * factor)
		if backoff > cap {
			backoff = cap
		}
		if backoff <= 0 {
			return 0
		}
		// Full jitter: random duration between 0 and backoff
		return time.Duration(rand.Int64N(int64(backoff)))
	}
}

// DefaultBackoff is [ExponentialBackoff] with 50ms base, 2x multiplier, 5s cap.
var DefaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

type batchOpts struct {
	maxRetries int
	timeout    time.Duration
	backoff    BackoffFunc
}

package ddbsdk

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/acksell/ddbpersist/dynamodb/table"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxBatchGetKeys is the DynamoDB limit of keys in one BatchGetItem call.
const MaxBatchGetKeys = 100

// DefaultMaxGetAttempts bounds the BatchGetItem calls made for one chunk of keys.
const DefaultMaxGetAttempts = 8

type getter struct {
	awsddb AWSDynamoClientV2

	opts getOpts
}

var _ Getter = &getter{}

func NewGetter(ddb AWSDynamoClientV2, opts ...GetOption) *getter {
	g := &getter{
		awsddb: ddb,
		opts: getOpts{
			backoff:     DefaultBackoff,
			maxAttempts: DefaultMaxGetAttempts,
		},
	}
	for _, opt := range opts {
		opt(&g.opts)
	}
	return g
}

// GetItemRequest identifies an item to retrieve with optional projection.
// Projection is per-item since different items may have different schemas.
type GetItemRequest struct {
	Table      table.TableDefinition
	Key        table.PrimaryKey
	Projection []string // Optional: limits which attributes are returned
}

// GetItem retrieves a single item from DynamoDB using GetItem.
func (g *getter) GetItem(ctx context.Context, item GetItemRequest) (Item, error) {
	key, err := item.Key.DDB()
	if err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}
	input := &dynamodbv2.GetItemInput{
		TableName:      &item.Table.Name,
		Key:            key,
		ConsistentRead: ptr(!g.opts.eventuallyConsistent),
	}

	if err := applyProjectionToGetInput(input, item.Projection); err != nil {
		return nil, fmt.Errorf("failed to apply projection: %w", err)
	}

	res, err := g.awsddb.GetItem(ctx, input)
	if err != nil {
		return nil, ddbiface.NewStorageError("GetItem", err)
	}

	if len(res.Item) == 0 {
		return nil, nil
	}

	return res.Item, nil
}

// GetItemsTx retrieves multiple items transactionally using TransactGetItems.
// All items are retrieved atomically - either all succeed or all fail.
// Maximum 100 items per transaction (DynamoDB limit).
// Each item can have its own projection since items may have different schemas.
func (g *getter) GetItemsTx(ctx context.Context, items ...GetItemRequest) ([]Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	if len(items) > MaxTransactActions {
		return nil, &TransactionTooLargeError{Actions: len(items), Limit: MaxTransactActions}
	}

	transactItems := make([]types.TransactGetItem, 0, len(items))
	for _, item := range items {
		key, err := item.Key.DDB()
		if err != nil {
			return nil, fmt.Errorf("key: %w", err)
		}
		get := &types.Get{
			TableName: &item.Table.Name,
			Key:       key,
		}

		if err := applyProjectionToGet(get, item.Projection); err != nil {
			return nil, fmt.Errorf("failed to apply projection: %w", err)
		}

		transactItems = append(transactItems, types.TransactGetItem{Get: get})
	}

	res, err := g.awsddb.TransactGetItems(ctx, &dynamodbv2.TransactGetItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return nil, ddbiface.NewStorageError("TransactGetItems", err)
	}
	if len(res.Responses) != len(items) {
		return nil, fmt.Errorf("transact get items returned %d responses for %d items", len(res.Responses), len(items))
	}

	return extractItemsFromResponses(res.Responses), nil
}

// BatchGetItem applies projection per-table, so all items from the same table use the
// projection from the first item encountered for that table. The key attributes are
// always added to a projection, they are needed to match results to requests.
func (g *getter) GetItemsBatch(ctx context.Context, items ...GetItemRequest) ([]Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	// slot of each request in the deduplicated key list
	slots := make([]int, len(items))
	unique := make([]GetItemRequest, 0, len(items))
	ids := make(map[string]int, len(items))
	for i, item := range items {
		id := actionID(item.Table.Name, item.Key)
		slot, ok := ids[id]
		if !ok {
			slot = len(unique)
			ids[id] = slot
			unique = append(unique, item)
		}
		slots[i] = slot
	}

	found := make(map[string]Item, len(unique))
	for chunk := range slices.Chunk(unique, MaxBatchGetKeys) {
		if err := g.batchGet(ctx, chunk, found); err != nil {
			return nil, err
		}
	}

	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = found[actionID(item.Table.Name, unique[slots[i]].Key)]
	}
	return out, nil
}

// batchGet reads one chunk of unique keys into found, retrying unprocessed keys.
func (g *getter) batchGet(ctx context.Context, chunk []GetItemRequest, found map[string]Item) error {
	requestItems, keyDefs, err := g.buildBatchRequestItems(chunk)
	if err != nil {
		return err
	}

	for attempt := 0; len(requestItems) > 0; attempt++ {
		if attempt >= g.opts.maxAttempts {
			return fmt.Errorf("%w: %d keys after %d attempts", ErrUnprocessedKeys, countKeys(requestItems), attempt)
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.opts.backoff(attempt - 1)):
			}
		}

		res, err := g.awsddb.BatchGetItem(ctx, &dynamodbv2.BatchGetItemInput{
			RequestItems: requestItems,
		})
		if err != nil {
			if ddbiface.IsThrottle(err) {
				continue
			}
			return ddbiface.NewStorageError("BatchGetItem", err)
		}

		for tableName, tableItems := range res.Responses {
			def, ok := keyDefs[tableName]
			if !ok {
				return fmt.Errorf("batch get returned items for table %s that was not requested", tableName)
			}
			for _, item := range tableItems {
				pk, err := def.ExtractPrimaryKey(item)
				if err != nil {
					return fmt.Errorf("batch get result in %s: %w", tableName, err)
				}
				found[actionID(tableName, pk)] = item
			}
		}

		requestItems = res.UnprocessedKeys
	}
	return nil
}

func (g *getter) buildBatchRequestItems(items []GetItemRequest) (map[string]types.KeysAndAttributes, map[string]table.PrimaryKeyDefinition, error) {
	requestItems := make(map[string]types.KeysAndAttributes)
	keyDefs := make(map[string]table.PrimaryKeyDefinition)

	for _, item := range items {
		tableName := item.Table.Name

		keysAndAttrs, exists := requestItems[tableName]
		if !exists {
			keysAndAttrs = types.KeysAndAttributes{
				ConsistentRead: ptr(!g.opts.eventuallyConsistent),
			}
			keyDefs[tableName] = item.Table.KeyDefinitions

			// For BatchGetItem, projection is per-table, use first item's projection
			projection := withKeyAttributes(item.Projection, item.Table.KeyDefinitions)
			if err := applyProjectionToKeysAndAttributes(&keysAndAttrs, projection); err != nil {
				return nil, nil, fmt.Errorf("failed to apply projection: %w", err)
			}
		}

		key, err := item.Key.DDB()
		if err != nil {
			return nil, nil, fmt.Errorf("key: %w", err)
		}
		keysAndAttrs.Keys = append(keysAndAttrs.Keys, key)
		requestItems[tableName] = keysAndAttrs
	}

	return requestItems, keyDefs, nil
}

func withKeyAttributes(projection []string, def table.PrimaryKeyDefinition) []string {
	if len(projection) == 0 {
		return nil
	}
	out := slices.Clone(projection)
	if !slices.Contains(out, def.PartitionKey.Name) {
		out = append(out, def.PartitionKey.Name)
	}
	if def.HasSortKey() && !slices.Contains(out, def.SortKey.Name) {
		out = append(out, def.SortKey.Name)
	}
	return out
}

func countKeys(m map[string]types.KeysAndAttributes) int {
	var n int
	for _, ka := range m {
		n += len(ka.Keys)
	}
	return n
}

func applyProjectionToGetInput(input *dynamodbv2.GetItemInput, projection []string) error {
	if len(projection) == 0 {
		return nil
	}

	expr, err := buildProjectionExpression(projection)
	if err != nil {
		return err
	}

	input.ProjectionExpression = expr.Projection()
	input.ExpressionAttributeNames = expr.Names()
	return nil
}

func applyProjectionToGet(get *types.Get, projection []string) error {
	if len(projection) == 0 {
		return nil
	}

	expr, err := buildProjectionExpression(projection)
	if err != nil {
		return err
	}

	get.ProjectionExpression = expr.Projection()
	get.ExpressionAttributeNames = expr.Names()
	return nil
}

func applyProjectionToKeysAndAttributes(keysAndAttrs *types.KeysAndAttributes, projection []string) error {
	if len(projection) == 0 {
		return nil
	}

	expr, err := buildProjectionExpression(projection)
	if err != nil {
		return err
	}

	keysAndAttrs.ProjectionExpression = expr.Projection()
	keysAndAttrs.ExpressionAttributeNames = expr.Names()
	return nil
}

func buildProjectionExpression(attributes []string) (expression2.Expression, error) {
	if len(attributes) == 0 {
		return expression2.Expression{}, nil
	}

	var proj expression2.ProjectionBuilder
	for i, attr := range attributes {
		if i == 0 {
			proj = expression2.NamesList(expression2.Name(attr))
		} else {
			proj = proj.AddNames(expression2.Name(attr))
		}
	}

	return expression2.NewBuilder().WithProjection(proj).Build()
}

func extractItemsFromResponses(responses []types.ItemResponse) []Item {
	items := make([]Item, 0, len(responses))
	for _, resp := range responses {
		if len(resp.Item) == 0 {
			items = append(items, nil)
			continue
		}
		items = append(items, resp.Item)
	}
	return items
}

func ptr[T any](v T) *T {
	return &v
}

// GetOption configures the getter behavior.
// Options apply to all getter methods: GetItem, GetItemsTx, and GetItemsBatch.
type GetOption func(*getOpts)

type getOpts struct {
	// Note: TransactGetItems always uses serializable isolation.
	eventuallyConsistent bool

	backoff     BackoffFunc
	maxAttempts int
}

// WithEventualConsistency enables eventually consistent reads for lookups.
// By default, reads are strongly consistent.
// Note: This option has no effect on GetItemsTx, which always uses serializable isolation.
func WithEventualConsistency() GetOption {
	return func(o *getOpts) {
		o.eventuallyConsistent = true
	}
}

// WithGetBackoff sets the wait between GetItemsBatch calls for unprocessed keys,
// and how many calls are made for one chunk of keys before giving up.
func WithGetBackoff(fn BackoffFunc, maxAttempts int) GetOption {
	return func(o *getOpts) {
		if fn != nil {
			o.backoff = fn
		}
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
	}
}

package ddbstore

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// maxBatchWriteItems is DynamoDB's limit of requests per BatchWriteItem call.
const maxBatchWriteItems = 25

// BatchWriteItem performs multiple put/delete operations.
// The applied requests commit together. Requests beyond StoreOptions.MaxBatchWriteItems
// are returned as UnprocessedItems.
func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if len(params.RequestItems) == 0 {
		return nil, validationError("RequestItems must not be empty")
	}
	total := 0
	for _, reqs := range params.RequestItems {
		total += len(reqs)
	}
	if total > maxBatchWriteItems {
		return nil, validationError("Too many items requested for the BatchWriteItem call")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tableNames := make([]string, 0, len(params.RequestItems))
	for name := range params.RequestItems {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	type resolvedRequest struct {
		schema *tableSchema
		key    []byte
		req    types.WriteRequest
		table  string
	}
	var requests []resolvedRequest
	for _, name := range tableNames {
		tabl, err := s.getTable(&name)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		for _, req := range params.RequestItems[name] {
			var attrs map[string]types.AttributeValue
			switch {
			case req.PutRequest != nil && req.DeleteRequest == nil:
				attrs = req.PutRequest.Item
			case req.DeleteRequest != nil && req.PutRequest == nil:
				attrs = req.DeleteRequest.Key
			default:
				return nil, validationError("a WriteRequest must contain exactly one of PutRequest or DeleteRequest")
			}
			key, err := tabl.itemKey(attrs)
			if err != nil {
				return nil, err
			}
			if seen[string(key)] {
				return nil, validationError("Provided list of item keys contains duplicates")
			}
			seen[string(key)] = true
			requests = append(requests, resolvedRequest{schema: tabl, key: key, req: req, table: name})
		}
	}

	unprocessed := make(map[string][]types.WriteRequest)
	err := s.db.Update(func(txn *badger.Txn) error {
		for i, r := range requests {
			if s.opts.MaxBatchWriteItems > 0 && i >= s.opts.MaxBatchWriteItems {
				unprocessed[r.table] = append(unprocessed[r.table], r.req)
				continue
			}
			oldItem, err := readItem(txn, r.key)
			if err != nil {
				return err
			}
			if r.req.PutRequest != nil {
				err = writeItem(txn, r.schema, r.key, r.req.PutRequest.Item, oldItem)
			} else {
				err = removeItem(txn, r.schema, r.key, oldItem)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, writeConflict(err)
	}

	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: unprocessed,
	}, nil
}

package ddbstore

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// maxBatchGetKeys is DynamoDB's limit of keys per BatchGetItem call.
const maxBatchGetKeys = 100

// BatchGetItem retrieves multiple items by their primary keys.
// Missing items are left out of the response. Keys beyond StoreOptions.MaxBatchGetKeys
// are returned as UnprocessedKeys.
func (s *Store) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if len(params.RequestItems) == 0 {
		return nil, validationError("RequestItems must not be empty")
	}
	total := 0
	for _, ka := range params.RequestItems {
		if len(ka.Keys) == 0 {
			return nil, validationError("Keys must not be empty")
		}
		total += len(ka.Keys)
	}
	if total > maxBatchGetKeys {
		return nil, validationError("Too many items requested for the BatchGetItem call")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tableNames := make([]string, 0, len(params.RequestItems))
	for name := range params.RequestItems {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	type tableKeys struct {
		schema *tableSchema
		keys   [][]byte
	}
	resolved := make(map[string]tableKeys, len(tableNames))
	for _, name := range tableNames {
		tabl, err := s.getTable(&name)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		tk := tableKeys{schema: tabl}
		for _, keyAttrs := range params.RequestItems[name].Keys {
			key, err := tabl.itemKey(keyAttrs)
			if err != nil {
				return nil, err
			}
			if seen[string(key)] {
				return nil, validationError("Provided list of item keys contains duplicates")
			}
			seen[string(key)] = true
			tk.keys = append(tk.keys, key)
		}
		resolved[name] = tk
	}

	response := &dynamodb.BatchGetItemOutput{
		Responses:       make(map[string][]map[string]types.AttributeValue),
		UnprocessedKeys: make(map[string]types.KeysAndAttributes),
	}
	served := 0
	err := s.db.View(func(txn *badger.Txn) error {
		for _, name := range tableNames {
			req := params.RequestItems[name]
			for i, key := range resolved[name].keys {
				if s.opts.MaxBatchGetKeys > 0 && served >= s.opts.MaxBatchGetKeys {
					unprocessed := response.UnprocessedKeys[name]
					unprocessed.Keys = append(unprocessed.Keys, req.Keys[i])
					unprocessed.ProjectionExpression = req.ProjectionExpression
					unprocessed.ExpressionAttributeNames = req.ExpressionAttributeNames
					unprocessed.ConsistentRead = req.ConsistentRead
					response.UnprocessedKeys[name] = unprocessed
					continue
				}
				served++

				item, err := readItem(txn, key)
				if err != nil {
					return err
				}
				if item == nil {
					continue
				}
				item, err = project(req.ProjectionExpression, req.ExpressionAttributeNames, item)
				if err != nil {
					return err
				}
				response.Responses[name] = append(response.Responses[name], item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

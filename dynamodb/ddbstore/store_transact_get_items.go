package ddbstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// TransactGetItems retrieves multiple items from one consistent snapshot.
// Responses are in request order, with an empty ItemResponse for missing items.
func (s *Store) TransactGetItems(ctx context.Context, params *dynamodb.TransactGetItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if len(params.TransactItems) == 0 {
		return nil, validationError("TransactItems must not be empty")
	}
	if len(params.TransactItems) > maxTransactItems {
		return nil, validationError("Member must have length less than or equal to %d", maxTransactItems)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	response := &dynamodb.TransactGetItemsOutput{
		Responses: make([]types.ItemResponse, 0, len(params.TransactItems)),
	}
	err := s.db.View(func(txn *badger.Txn) error {
		for _, item := range params.TransactItems {
			if item.Get == nil {
				return validationError("empty transact get item request")
			}
			tabl, err := s.getTable(item.Get.TableName)
			if err != nil {
				return err
			}
			key, err := tabl.itemKey(item.Get.Key)
			if err != nil {
				return err
			}
			docItem, err := readItem(txn, key)
			if err != nil {
				return err
			}
			docItem, err = project(item.Get.ProjectionExpression, item.Get.ExpressionAttributeNames, docItem)
			if err != nil {
				return err
			}
			response.Responses = append(response.Responses, types.ItemResponse{Item: docItem})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

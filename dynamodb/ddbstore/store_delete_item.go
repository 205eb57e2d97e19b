package ddbstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// DeleteItem removes an item by its primary key. Deleting a missing item succeeds
// unless a condition requires the item to exist.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.Key == nil {
		return nil, validationError("key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tabl.itemKey(params.Key)
	if err != nil {
		return nil, err
	}

	var oldItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		oldItem, err = readItem(txn, key)
		if err != nil {
			return err
		}
		ok, err := evalCondition(conditionInput{
			expression: params.ConditionExpression,
			names:      params.ExpressionAttributeNames,
			values:     params.ExpressionAttributeValues,
		}, oldItem)
		if err != nil {
			return err
		}
		if !ok {
			return conditionalCheckFailed()
		}
		return removeItem(txn, tabl, key, oldItem)
	})
	if err != nil {
		return nil, writeConflict(err)
	}

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && oldItem != nil {
		out.Attributes = oldItem
	}
	return out, nil
}

package ddbstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// PutItem creates or replaces an item.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.Item == nil {
		return nil, validationError("item is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tabl, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := tabl.itemKey(params.Item)
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
		return writeItem(txn, tabl, key, params.Item, oldItem)
	})
	if err != nil {
		return nil, writeConflict(err)
	}

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && oldItem != nil {
		out.Attributes = oldItem
	}
	return out, nil
}

package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// maxTransactItems is DynamoDB's limit of actions per transaction.
const maxTransactItems = 100

// cancellation reason codes, as reported by DynamoDB.
const (
	reasonNone                   = "None"
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonTransactionConflict    = "TransactionConflict"
)

type transactAction struct {
	schema    *tableSchema
	key       []byte
	item      map[string]types.AttributeValue // nil unless Put
	delete    bool
	condition conditionInput
}

// TransactWriteItems performs multiple write operations atomically.
//
// Like DynamoDB it rejects more than 100 actions and more than one action on the
// same item with a ValidationException. When a condition fails nothing is written
// and a TransactionCanceledException carries one reason per action. A concurrent
// write to one of the items cancels it with TransactionConflict reasons.
func (s *Store) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
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

	actions := make([]transactAction, 0, len(params.TransactItems))
	seen := make(map[string]bool, len(params.TransactItems))
	for i, ti := range params.TransactItems {
		action, err := s.resolveTransactAction(ti)
		if err != nil {
			return nil, fmt.Errorf("transact item %d: %w", i, err)
		}
		id := action.schema.definition.Name + "\x00" + string(action.key)
		if seen[id] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		seen[id] = true
		actions = append(actions, action)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		current := make([]map[string]types.AttributeValue, len(actions))
		reasons := make([]types.CancellationReason, len(actions))
		failed := false
		for i, a := range actions {
			existing, err := readItem(txn, a.key)
			if err != nil {
				return err
			}
			current[i] = existing
			reasons[i] = types.CancellationReason{Code: aws.String(reasonNone)}

			ok, err := evalCondition(a.condition, existing)
			if err != nil {
				return err
			}
			if !ok {
				failed = true
				reasons[i] = types.CancellationReason{
					Code:    aws.String(reasonConditionalCheckFailed),
					Message: aws.String("The conditional request failed"),
				}
			}
		}
		if failed {
			return transactionCanceled(reasons)
		}

		for i, a := range actions {
			var err error
			switch {
			case a.item != nil:
				err = writeItem(txn, a.schema, a.key, a.item, current[i])
			case a.delete:
				err = removeItem(txn, a.schema, a.key, current[i])
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		// badger does not say which item conflicted
		reasons := make([]types.CancellationReason, len(actions))
		for i := range reasons {
			reasons[i] = types.CancellationReason{
				Code:    aws.String(reasonTransactionConflict),
				Message: aws.String("Transaction is ongoing for the item"),
			}
		}
		return nil, transactionCanceled(reasons)
	}
	if err != nil {
		return nil, err
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (s *Store) resolveTransactAction(ti types.TransactWriteItem) (transactAction, error) {
	var (
		tableName *string
		attrs     map[string]types.AttributeValue
		action    transactAction
		set       int
	)
	if p := ti.Put; p != nil {
		set++
		tableName, attrs = p.TableName, p.Item
		action.item = p.Item
		action.condition = conditionInput{p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues}
	}
	if d := ti.Delete; d != nil {
		set++
		tableName, attrs = d.TableName, d.Key
		action.delete = true
		action.condition = conditionInput{d.ConditionExpression, d.ExpressionAttributeNames, d.ExpressionAttributeValues}
	}
	if c := ti.ConditionCheck; c != nil {
		set++
		if c.ConditionExpression == nil {
			return transactAction{}, validationError("ConditionCheck requires a ConditionExpression")
		}
		tableName, attrs = c.TableName, c.Key
		action.condition = conditionInput{c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues}
	}
	if ti.Update != nil {
		return transactAction{}, validationError("Update actions are not supported by the local store")
	}
	if set != 1 {
		return transactAction{}, validationError("a TransactWriteItem must contain exactly one action")
	}
	if attrs == nil {
		return transactAction{}, validationError("item or key is required")
	}

	tabl, err := s.getTable(tableName)
	if err != nil {
		return transactAction{}, err
	}
	key, err := tabl.itemKey(attrs)
	if err != nil {
		return transactAction{}, err
	}
	action.schema = tabl
	action.key = key
	return action, nil
}

func transactionCanceled(reasons []types.CancellationReason) error {
	codes := make([]string, len(reasons))
	for i, r := range reasons {
		codes[i] = aws.ToString(r.Code)
	}
	return &types.TransactionCanceledException{
		Message: aws.String(fmt.Sprintf(
			"Transaction cancelled, please refer cancellation reasons for specific reasons [%s]",
			strings.Join(codes, ", "),
		)),
		CancellationReasons: reasons,
	}
}

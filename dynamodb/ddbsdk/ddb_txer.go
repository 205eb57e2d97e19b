package ddbsdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

func NewTx(ddb AWSDynamoClientV2, opts ...TxOption) Txer {
	tx := &txer{
		awsddb: ddb,
		index:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(&tx.opts)
	}
	return tx
}

type txer struct {
	awsddb AWSDynamoClientV2

	opts txOpts

	// errors from AddAction can be returned when calling Commit().
	// This is to enable a nicer API where you don't have to check for errors after each AddAction call.
	errs []error
	// actions in the order they were added, which is the order they are sent in.
	actions []Action
	// Only one action per item is allowed in a transaction.
	index map[string]int
}

func (tx *txer) addError(err error) error {
	tx.errs = append(tx.errs, err)
	return err
}

// AddAction stages the action for the commit.
// Handling the error is optional, the call to Commit() will return these errors later.
func (tx *txer) AddAction(a Action) error {
	if a.TableName() == nil || *a.TableName() == "" {
		return tx.addError(fmt.Errorf("missing table name for action %T on key %s", a, a.PrimaryKey()))
	}
	id := actionID(*a.TableName(), a.PrimaryKey())
	if _, found := tx.index[id]; found {
		return tx.addError(&TransactionConflictError{
			Table: *a.TableName(),
			Key:   a.PrimaryKey().String(),
			Err:   ErrDuplicateAction,
		})
	}
	tx.index[id] = len(tx.actions)
	tx.actions = append(tx.actions, a)
	return nil
}

func (tx *txer) Len() int {
	return len(tx.actions)
}

// Commit writes all staged actions atomically.
// More than MaxTransactActions actions fail with a TransactionTooLargeError without
// calling DynamoDB.
func (tx *txer) Commit(ctx context.Context) error {
	if len(tx.errs) > 0 {
		return errors.Join(tx.errs...)
	}
	switch n := len(tx.actions); {
	case n == 0:
		return nil
	case n > MaxTransactActions:
		return &TransactionTooLargeError{Actions: n, Limit: MaxTransactActions}
	case n == 1:
		// use operation directly instead of TransactWriteItems, to avoid transactional overhead
		return tx.commitSingle(ctx, tx.actions[0])
	}

	txInputs := make([]types.TransactWriteItem, 0, len(tx.actions))
	for _, action := range tx.actions {
		twi, err := action.ToTransactWriteItem()
		if err != nil {
			return fmt.Errorf("failed to convert action to transact write item: %w", err)
		}
		txInputs = append(txInputs, twi)
	}
	token := tx.opts.idempotencyToken
	if token == "" {
		token = uuid.NewString()
	}
	_, err := tx.awsddb.TransactWriteItems(ctx, &dynamodbv2.TransactWriteItemsInput{
		TransactItems:      txInputs,
		ClientRequestToken: &token,
	})
	return tx.classify("TransactWriteItems", err)
}

func (tx *txer) commitSingle(ctx context.Context, action Action) error {
	switch a := action.(type) {
	case *Put:
		put, err := a.ToPutItem()
		if err != nil {
			return fmt.Errorf("failed to convert put to put item: %w", err)
		}
		_, err = tx.awsddb.PutItem(ctx, put)
		return tx.classify("PutItem", err)
	case *Delete:
		del, err := a.ToDeleteItem()
		if err != nil {
			return fmt.Errorf("failed to convert delete to delete item: %w", err)
		}
		_, err = tx.awsddb.DeleteItem(ctx, del)
		return tx.classify("DeleteItem", err)
	default:
		return fmt.Errorf("unknown operation type: %T", a)
	}
}

// classify turns contention into a TransactionConflictError. Everything else is a
// StorageError, which still unwraps to the service exception.
func (tx *txer) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		e := &TransactionConflictError{Err: err}
		if len(tx.actions) == 1 {
			e.Table = *tx.actions[0].TableName()
			e.Key = tx.actions[0].PrimaryKey().String()
		}
		return e
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			if reason.Code == nil || *reason.Code != "TransactionConflict" {
				continue
			}
			e := &TransactionConflictError{Err: err}
			if i < len(tx.actions) {
				e.Table = *tx.actions[i].TableName()
				e.Key = tx.actions[i].PrimaryKey().String()
			}
			return e
		}
	}
	return ddbiface.NewStorageError(op, err)
}

// IsConditionFailed reports whether err is a failed condition expression, either
// from a single write or as the cancellation reason of a transaction.
func IsConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

type TxOption func(*txOpts) *txOpts

type txOpts struct {
	idempotencyToken string
}

// IdempotencyTokens last for 10 minutes according to AWS documentation.
// If used after that, the request will be treated as new.
// Therefore, use with care.
// Without this option every commit gets a random token.
// https://docs.aws.amazon.com/amazondynamodb/latest/APIReference/API_TransactWriteItems.html
func WithIdempotencyToken(token string) TxOption {
	return func(opts *txOpts) *txOpts {
		opts.idempotencyToken = token
		return opts
	}
}

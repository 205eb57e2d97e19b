package ddbsdk

import (
	"errors"
	"fmt"
)

// MaxTransactActions is the DynamoDB limit of actions in one TransactWriteItems
// or TransactGetItems call.
const MaxTransactActions = 100

var (
	// ErrDuplicateAction is wrapped by the TransactionConflictError returned when two
	// actions target the same item.
	ErrDuplicateAction = errors.New("more than one action on the same item")
	// ErrUnprocessedKeys is returned by GetItemsBatch when keys stay unprocessed
	// after all attempts.
	ErrUnprocessedKeys = errors.New("unprocessed keys")
)

// TransactionConflictError means the transaction could not be applied because of
// contention on an item, or because two of its actions target the same item.
// Nothing was written.
type TransactionConflictError struct {
	Table string
	// Key is the canonical form of the conflicting key, empty when the service
	// did not say which item conflicted.
	Key string
	Err error
}

func (e *TransactionConflictError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("transaction conflict: %v", e.Err)
	}
	return fmt.Sprintf("transaction conflict on %s %s: %v", e.Table, e.Key, e.Err)
}

func (e *TransactionConflictError) Unwrap() error {
	return e.Err
}

// TransactionTooLargeError is returned before any call is made when a transaction
// has more actions than DynamoDB accepts. Transactions are never split.
type TransactionTooLargeError struct {
	Actions int
	Limit   int
}

func (e *TransactionTooLargeError) Error() string {
	return fmt.Sprintf("transaction has %d actions, the limit is %d", e.Actions, e.Limit)
}

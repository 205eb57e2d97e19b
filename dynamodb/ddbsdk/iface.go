package ddbsdk

import (
	"context"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type AWSDynamoClientV2 = ddbiface.AWSDynamoClientV2

type IO interface {
	Writer
	Reader
}

type Writer interface {
	NewTx(...TxOption) Txer
	NewBatch(...BatchOption) Batcher

	PutItem(context.Context, *Put) error
	DeleteItem(context.Context, *Delete) error
}

type Reader interface {
	NewLookup(...GetOption) Getter
}

type Txer interface {
	// AddAction stages an action. The error is also returned by Commit.
	AddAction(Action) error
	Commit(context.Context) error
	// Len is the number of staged actions.
	Len() int
}

type Batcher interface {
	AddAction(...BatchAction) error
	Exec(context.Context) (ExecResult, error)
	ExecAndRetry(context.Context) (ExecResult, error)
}

// ConsistentReads are enabled by default.
// To use EventuallyConsistent reads, add the WithEventualConsistency option.
type Getter interface {
	// GetItem retrieves a single item from DynamoDB.
	// Returns a nil Item when there is none.
	GetItem(context.Context, GetItemRequest) (Item, error)
	// GetItemsTx retrieves multiple items.
	// Serializable isolation.
	// Maximum 100 items per transaction (DynamoDB limit).
	// Each item can have its own projection since items may have different schemas.
	GetItemsTx(context.Context, ...GetItemRequest) ([]Item, error)
	// GetItemsBatch retrieves multiple items using BatchGetItem.
	//
	// As a batch unit, not serializable isolation. Only read-committed isolation.
	// On a per-item basis, it is serializable.
	// Translation:
	// If there's a concurrent transaction write request in-flight,
	// it's possible that you'll be able to read the new state of
	// some of the items and the old state of the other items.
	// If you need better isolation guarantees, use GetItemsTx.
	//
	// The result has one entry per request in request order, nil for missing items.
	// Requests are split into calls of 100 keys, and unprocessed keys are retried.
	GetItemsBatch(context.Context, ...GetItemRequest) ([]Item, error)
}

// Item represents a raw DynamoDB item as returned from Get operations.
// Callers should use attributevalue.UnmarshalMap to convert to their struct.
type Item = map[string]types.AttributeValue

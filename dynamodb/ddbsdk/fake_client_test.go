package ddbsdk

import (
	"context"

	"github.com/acksell/ddbpersist/dynamodb/ddbstore"
	"github.com/acksell/ddbpersist/dynamodb/table"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// recordingClient counts calls to an in-memory store and lets tests
// replace individual operations.
type recordingClient struct {
	AWSDynamoClientV2

	calls map[string]int

	putItem       func(*dynamodbv2.PutItemInput) (*dynamodbv2.PutItemOutput, error)
	transactWrite func(*dynamodbv2.TransactWriteItemsInput) (*dynamodbv2.TransactWriteItemsOutput, error)
	batchWrite    func(*dynamodbv2.BatchWriteItemInput) (*dynamodbv2.BatchWriteItemOutput, error)
	batchGet      func(*dynamodbv2.BatchGetItemInput) (*dynamodbv2.BatchGetItemOutput, error)
	lastTxInput   *dynamodbv2.TransactWriteItemsInput
}

func newRecordingClient(defs ...table.TableDefinition) *recordingClient {
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true}, defs...)
	if err != nil {
		panic(err)
	}
	return &recordingClient{AWSDynamoClientV2: store, calls: make(map[string]int)}
}

func (c *recordingClient) total() int {
	var n int
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *recordingClient) PutItem(ctx context.Context, in *dynamodbv2.PutItemInput, opts ...func(*dynamodbv2.Options)) (*dynamodbv2.PutItemOutput, error) {
	c.calls["PutItem"]++
	if c.putItem != nil {
		return c.putItem(in)
	}
	return c.AWSDynamoClientV2.PutItem(ctx, in, opts...)
}

func (c *recordingClient) DeleteItem(ctx context.Context, in *dynamodbv2.DeleteItemInput, opts ...func(*dynamodbv2.Options)) (*dynamodbv2.DeleteItemOutput, error) {
	c.calls["DeleteItem"]++
	return c.AWSDynamoClientV2.DeleteItem(ctx, in, opts...)
}

func (c *recordingClient) TransactWriteItems(ctx context.Context, in *dynamodbv2.TransactWriteItemsInput, opts ...func(*dynamodbv2.Options)) (*dynamodbv2.TransactWriteItemsOutput, error) {
	c.calls["TransactWriteItems"]++
	c.lastTxInput = in
	if c.transactWrite != nil {
		return c.transactWrite(in)
	}
	return c.AWSDynamoClientV2.TransactWriteItems(ctx, in, opts...)
}

func (c *recordingClient) BatchWriteItem(ctx context.Context, in *dynamodbv2.BatchWriteItemInput, opts ...func(*dynamodbv2.Options)) (*dynamodbv2.BatchWriteItemOutput, error) {
	c.calls["BatchWriteItem"]++
	if c.batchWrite != nil {
		return c.batchWrite(in)
	}
	return c.AWSDynamoClientV2.BatchWriteItem(ctx, in, opts...)
}

func (c *recordingClient) BatchGetItem(ctx context.Context, in *dynamodbv2.BatchGetItemInput, opts ...func(*dynamodbv2.Options)) (*dynamodbv2.BatchGetItemOutput, error) {
	c.calls["BatchGetItem"]++
	if c.batchGet != nil {
		return c.batchGet(in)
	}
	return c.AWSDynamoClientV2.BatchGetItem(ctx, in, opts...)
}

func (c *recordingClient) TransactGetItems(ctx context.Context, in *dynamodbv2.TransactGetItemsInput, opts ...func(*dynamodbv2.Options)) (*dynamodbv2.TransactGetItemsOutput, error) {
	c.calls["TransactGetItems"]++
	return c.AWSDynamoClientV2.TransactGetItems(ctx, in, opts...)
}

package ddbsdk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var txTestTable = table.TableDefinition{
	Name: "tx-test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
}

func txTestKey(pk, sk string) table.PrimaryKey {
	return table.PrimaryKey{
		Definition: txTestTable.KeyDefinitions,
		Values:     table.PrimaryKeyValues{PartitionKey: pk, SortKey: sk},
	}
}

func txPut(t *testing.T, e *testEntity) *Put {
	t.Helper()
	return NewPut(txTestTable, txTestKey(e.PK, e.SK), testItem(t, e))
}

func getEntity(t *testing.T, db *Client, pk table.PrimaryKey) *testEntity {
	t.Helper()
	item, err := db.NewLookup().GetItem(context.Background(), GetItemRequest{Table: txTestTable, Key: pk})
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item == nil {
		return nil
	}
	var e testEntity
	if err := attributevalue.UnmarshalMap(item, &e); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return &e
}

func TestTransaction_SinglePut(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	db := New(ddb)
	ctx := context.Background()

	tx := db.NewTx()
	entity := &testEntity{PK: "user#1", SK: "profile", Name: "Alice", Age: 30}
	tx.AddAction(txPut(t, entity))

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Transaction commit failed: %v", err)
	}
	if ddb.calls["PutItem"] != 1 || ddb.calls["TransactWriteItems"] != 0 {
		t.Errorf("expected a single PutItem call, got %v", ddb.calls)
	}
	if getEntity(t, db, txTestKey("user#1", "profile")) == nil {
		t.Fatal("expected item to exist")
	}
}

func TestTransaction_MultiplePuts(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	db := New(ddb)
	ctx := context.Background()

	tx := db.NewTx(WithIdempotencyToken("token-1"))

	items := []testEntity{
		{PK: "user#1", SK: "profile", Name: "Alice", Age: 30},
		{PK: "user#2", SK: "profile", Name: "Bob", Age: 25},
		{PK: "user#3", SK: "profile", Name: "Charlie", Age: 35},
	}
	for i := range items {
		tx.AddAction(txPut(t, &items[i]))
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Transaction commit failed: %v", err)
	}
	if ddb.calls["TransactWriteItems"] != 1 {
		t.Fatalf("expected one TransactWriteItems call, got %v", ddb.calls)
	}
	if got := aws.ToString(ddb.lastTxInput.ClientRequestToken); got != "token-1" {
		t.Errorf("expected idempotency token token-1, got %q", got)
	}
	// actions are sent in the order they were added
	for i, twi := range ddb.lastTxInput.TransactItems {
		pk := twi.Put.Item["pk"].(*types.AttributeValueMemberS).Value
		if pk != items[i].PK {
			t.Errorf("item %d: expected %s, got %s", i, items[i].PK, pk)
		}
	}

	for _, item := range items {
		if getEntity(t, db, txTestKey(item.PK, item.SK)) == nil {
			t.Errorf("expected item %s/%s to exist", item.PK, item.SK)
		}
	}
}

func TestTransaction_GeneratesToken(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	db := New(ddb)

	tx := db.NewTx()
	tx.AddAction(txPut(t, &testEntity{PK: "user#1", SK: "profile"}))
	tx.AddAction(txPut(t, &testEntity{PK: "user#2", SK: "profile"}))
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Transaction commit failed: %v", err)
	}
	if aws.ToString(ddb.lastTxInput.ClientRequestToken) == "" {
		t.Error("expected a generated client request token")
	}
}

func TestTransaction_PutAndDelete(t *testing.T) {
	db := NewMemoryClient(txTestTable)
	ctx := context.Background()

	existing := &testEntity{PK: "user#1", SK: "profile", Name: "Alice"}
	if err := db.PutItem(ctx, txPut(t, existing)); err != nil {
		t.Fatalf("Initial put failed: %v", err)
	}

	tx := db.NewTx()
	tx.AddAction(NewDelete(txTestTable, txTestKey("user#1", "profile")))
	tx.AddAction(txPut(t, &testEntity{PK: "user#2", SK: "profile", Name: "Bob"}))

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Transaction commit failed: %v", err)
	}

	if getEntity(t, db, txTestKey("user#1", "profile")) != nil {
		t.Error("expected old item to be deleted")
	}
	if getEntity(t, db, txTestKey("user#2", "profile")) == nil {
		t.Error("expected new item to exist")
	}
}

func TestTransaction_ConditionFails(t *testing.T) {
	db := NewMemoryClient(txTestTable)
	ctx := context.Background()

	existing := &testEntity{PK: "user#1", SK: "profile", Name: "Alice", Active: false}
	if err := db.PutItem(ctx, txPut(t, existing)); err != nil {
		t.Fatalf("Initial put failed: %v", err)
	}

	tx := db.NewTx()
	cond := expression.Equal(expression.Name("active"), expression.Value(true))
	tx.AddAction(txPut(t, &testEntity{PK: "user#1", SK: "profile", Name: "Alice Updated"}).WithCondition(cond))
	tx.AddAction(txPut(t, &testEntity{PK: "user#2", SK: "profile", Name: "Bob"}))

	// Should fail because active=false
	err := tx.Commit(ctx)
	if err == nil {
		t.Fatal("expected transaction to fail due to condition")
	}
	if !IsConditionFailed(err) {
		t.Errorf("expected condition failure, got %v", err)
	}

	if got := getEntity(t, db, txTestKey("user#1", "profile")); got.Name != "Alice" {
		t.Errorf("expected Name='Alice' (unchanged), got %q", got.Name)
	}
	if getEntity(t, db, txTestKey("user#2", "profile")) != nil {
		t.Error("expected no partial write")
	}
}

func TestTransaction_DuplicateAction_Fails(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	db := New(ddb)

	tx := db.NewTx()
	entity := &testEntity{PK: "user#1", SK: "profile", Name: "Alice"}

	if err := tx.AddAction(txPut(t, entity)); err != nil {
		t.Fatalf("first AddAction failed: %v", err)
	}
	addErr := tx.AddAction(NewDelete(txTestTable, txTestKey("user#1", "profile")))
	if addErr == nil {
		t.Fatal("expected AddAction to reject a second action on the same item")
	}

	err := tx.Commit(context.Background())
	var conflict *TransactionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected TransactionConflictError, got %v", err)
	}
	if !errors.Is(err, ErrDuplicateAction) {
		t.Errorf("expected ErrDuplicateAction, got %v", err)
	}
	if conflict.Table != txTestTable.Name {
		t.Errorf("expected table %s, got %s", txTestTable.Name, conflict.Table)
	}
	if ddb.total() != 0 {
		t.Errorf("expected no calls, got %v", ddb.calls)
	}
}

func TestTransaction_EmptyTransaction(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	tx := New(ddb).NewTx()

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Empty transaction should succeed: %v", err)
	}
	if ddb.total() != 0 {
		t.Errorf("expected no calls, got %v", ddb.calls)
	}
}

func TestTransaction_TooLarge(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	tx := New(ddb).NewTx()

	for i := 0; i < MaxTransactActions+1; i++ {
		if err := tx.AddAction(txPut(t, &testEntity{PK: fmt.Sprintf("user#%d", i), SK: "profile"})); err != nil {
			t.Fatalf("AddAction failed: %v", err)
		}
	}
	err := tx.Commit(context.Background())
	var tooLarge *TransactionTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected TransactionTooLargeError, got %v", err)
	}
	if tooLarge.Actions != 101 || tooLarge.Limit != 100 {
		t.Errorf("unexpected error fields: %+v", tooLarge)
	}
	if ddb.total() != 0 {
		t.Errorf("expected no calls, got %v", ddb.calls)
	}
}

func TestTransaction_ExactlyAtLimit(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	tx := New(ddb).NewTx()

	for i := 0; i < MaxTransactActions; i++ {
		tx.AddAction(txPut(t, &testEntity{PK: fmt.Sprintf("user#%d", i), SK: "profile"}))
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Transaction commit failed: %v", err)
	}
	if ddb.calls["TransactWriteItems"] != 1 {
		t.Errorf("expected one TransactWriteItems call, got %v", ddb.calls)
	}
}

func TestTransaction_ContentionIsConflict(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	ddb.transactWrite = func(*dynamodbv2.TransactWriteItemsInput) (*dynamodbv2.TransactWriteItemsOutput, error) {
		return nil, &types.TransactionCanceledException{
			Message: aws.String("Transaction cancelled"),
			CancellationReasons: []types.CancellationReason{
				{Code: aws.String("None")},
				{Code: aws.String("TransactionConflict")},
			},
		}
	}
	tx := New(ddb).NewTx()
	tx.AddAction(txPut(t, &testEntity{PK: "user#1", SK: "profile"}))
	tx.AddAction(txPut(t, &testEntity{PK: "user#2", SK: "profile"}))

	err := tx.Commit(context.Background())
	var conflict *TransactionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected TransactionConflictError, got %v", err)
	}
	if conflict.Key != txTestKey("user#2", "profile").String() {
		t.Errorf("expected conflict on user#2, got %q", conflict.Key)
	}
	if errors.Is(err, ErrDuplicateAction) {
		t.Error("contention is not a duplicate action")
	}
}

func TestTransaction_SingleActionContentionIsConflict(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	ddb.putItem = func(*dynamodbv2.PutItemInput) (*dynamodbv2.PutItemOutput, error) {
		return nil, &types.TransactionConflictException{Message: aws.String("Transaction is ongoing for the item")}
	}
	tx := New(ddb).NewTx()
	tx.AddAction(txPut(t, &testEntity{PK: "user#1", SK: "profile"}))

	err := tx.Commit(context.Background())
	var conflict *TransactionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected TransactionConflictError, got %v", err)
	}
	if conflict.Key != txTestKey("user#1", "profile").String() {
		t.Errorf("expected conflict on user#1, got %q", conflict.Key)
	}
	var tce *types.TransactionConflictException
	if !errors.As(err, &tce) {
		t.Errorf("expected the service error to be preserved, got %v", err)
	}
	if ddb.calls["PutItem"] != 1 || ddb.calls["TransactWriteItems"] != 0 {
		t.Errorf("expected a single PutItem call, got %v", ddb.calls)
	}
}

func TestTransaction_ServiceErrorIsStorageError(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	ddb.transactWrite = func(*dynamodbv2.TransactWriteItemsInput) (*dynamodbv2.TransactWriteItemsOutput, error) {
		return nil, &types.InternalServerError{Message: aws.String("boom")}
	}
	tx := New(ddb).NewTx()
	tx.AddAction(txPut(t, &testEntity{PK: "user#1", SK: "profile"}))
	tx.AddAction(txPut(t, &testEntity{PK: "user#2", SK: "profile"}))

	err := tx.Commit(context.Background())
	var conflict *TransactionConflictError
	if errors.As(err, &conflict) {
		t.Fatalf("did not expect a conflict, got %v", err)
	}
	var ise *types.InternalServerError
	if !errors.As(err, &ise) {
		t.Errorf("expected the service error to be preserved, got %v", err)
	}
	if !contains(err.Error(), "TransactWriteItems") {
		t.Errorf("expected the operation in the error, got %v", err)
	}
}

func TestTransaction_GetItemsTx(t *testing.T) {
	db := NewMemoryClient(txTestTable)
	ctx := context.Background()

	items := []testEntity{
		{PK: "user#1", SK: "profile", Name: "Alice", Age: 30},
		{PK: "user#3", SK: "profile", Name: "Charlie", Age: 35},
	}
	for i := range items {
		if err := db.PutItem(ctx, txPut(t, &items[i])); err != nil {
			t.Fatalf("PutItem failed: %v", err)
		}
	}

	results, err := db.NewLookup().GetItemsTx(ctx,
		GetItemRequest{Table: txTestTable, Key: txTestKey("user#3", "profile")},
		GetItemRequest{Table: txTestTable, Key: txTestKey("user#2", "profile")},
		GetItemRequest{Table: txTestTable, Key: txTestKey("user#1", "profile")},
	)
	if err != nil {
		t.Fatalf("GetItemsTx failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1] != nil {
		t.Errorf("expected nil for missing user#2, got %v", results[1])
	}
	for i, want := range []string{"Charlie", "", "Alice"} {
		if want == "" {
			continue
		}
		var entity testEntity
		if err := attributevalue.UnmarshalMap(results[i], &entity); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if entity.Name != want {
			t.Errorf("result %d: expected %s, got %s", i, want, entity.Name)
		}
	}
}

func TestTransaction_GetItemsTx_WithProjection(t *testing.T) {
	db := NewMemoryClient(txTestTable)
	ctx := context.Background()

	items := []testEntity{
		{PK: "user#1", SK: "profile", Name: "Alice", Email: "alice@example.com", Age: 30},
		{PK: "user#2", SK: "profile", Name: "Bob", Email: "bob@example.com", Age: 25},
	}
	for i := range items {
		if err := db.PutItem(ctx, txPut(t, &items[i])); err != nil {
			t.Fatalf("PutItem failed: %v", err)
		}
	}

	results, err := db.NewLookup().GetItemsTx(ctx,
		GetItemRequest{Table: txTestTable, Key: txTestKey("user#1", "profile"), Projection: []string{"pk", "sk", "name"}},
		GetItemRequest{Table: txTestTable, Key: txTestKey("user#2", "profile"), Projection: []string{"pk", "sk", "name"}},
	)
	if err != nil {
		t.Fatalf("GetItemsTx failed: %v", err)
	}

	// Verify only projected fields are present
	for _, item := range results {
		if _, ok := item["email"]; ok {
			t.Error("expected email field to be excluded")
		}
		if _, ok := item["age"]; ok {
			t.Error("expected age field to be excluded")
		}
		if _, ok := item["name"]; !ok {
			t.Error("expected name field to be present")
		}
	}
}

func TestTransaction_GetItemsTx_TooManyItems(t *testing.T) {
	ddb := newRecordingClient(txTestTable)
	requests := make([]GetItemRequest, 101)
	for i := range requests {
		requests[i] = GetItemRequest{
			Table: txTestTable,
			Key:   txTestKey(fmt.Sprintf("user#%d", i), "profile"),
		}
	}

	_, err := New(ddb).NewLookup().GetItemsTx(context.Background(), requests...)
	var tooLarge *TransactionTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected TransactionTooLargeError, got %v", err)
	}
	if ddb.total() != 0 {
		t.Errorf("expected no calls, got %v", ddb.calls)
	}
}

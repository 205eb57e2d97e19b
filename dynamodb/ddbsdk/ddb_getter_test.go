package ddbsdk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/acksell/ddbpersist/dynamodb/ddbstore"
	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var getterTestTable = table.TableDefinition{
	Name: "getter-test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
}

var getterOtherTable = table.TableDefinition{
	Name: "getter-other-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "id", Kind: table.KeyKindN},
	},
}

func getterTestKey(pk, sk string) table.PrimaryKey {
	return table.PrimaryKey{
		Definition: getterTestTable.KeyDefinitions,
		Values:     table.PrimaryKeyValues{PartitionKey: pk, SortKey: sk},
	}
}

func otherKey(id int) table.PrimaryKey {
	return table.PrimaryKey{
		Definition: getterOtherTable.KeyDefinitions,
		Values:     table.PrimaryKeyValues{PartitionKey: id},
	}
}

var noBackoff = WithGetBackoff(func(int) time.Duration { return 0 }, 0)

func seedGetter(t *testing.T, db *Client, entities ...testEntity) {
	t.Helper()
	for i := range entities {
		e := &entities[i]
		put := NewPut(getterTestTable, getterTestKey(e.PK, e.SK), testItem(t, e))
		if err := db.PutItem(context.Background(), put); err != nil {
			t.Fatalf("PutItem failed: %v", err)
		}
	}
}

func names(t *testing.T, items []Item) []string {
	t.Helper()
	out := make([]string, len(items))
	for i, item := range items {
		if item == nil {
			out[i] = "<nil>"
			continue
		}
		var e testEntity
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		out[i] = e.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGetter_GetItem_Found(t *testing.T) {
	db := NewMemoryClient(getterTestTable)
	ctx := context.Background()
	seedGetter(t, db, testEntity{PK: "user#1", SK: "profile", Name: "Alice", Email: "alice@example.com", Age: 30})

	item, err := db.NewLookup().GetItem(ctx, GetItemRequest{
		Table: getterTestTable,
		Key:   getterTestKey("user#1", "profile"),
	})
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item == nil {
		t.Fatal("expected item to be found")
	}

	var retrieved testEntity
	if err := attributevalue.UnmarshalMap(item, &retrieved); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if retrieved.Name != "Alice" || retrieved.Email != "alice@example.com" || retrieved.Age != 30 {
		t.Errorf("retrieved entity mismatch: got %+v", retrieved)
	}
}

func TestGetter_GetItem_NotFound(t *testing.T) {
	db := NewMemoryClient(getterTestTable)

	item, err := db.NewLookup().GetItem(context.Background(), GetItemRequest{
		Table: getterTestTable,
		Key:   getterTestKey("user#999", "profile"),
	})
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item != nil {
		t.Errorf("expected item to be nil, got %v", item)
	}
}

func TestGetter_GetItem_WithProjection(t *testing.T) {
	db := NewMemoryClient(getterTestTable)
	seedGetter(t, db, testEntity{PK: "user#1", SK: "profile", Name: "Alice", Email: "alice@example.com", Age: 30})

	item, err := db.NewLookup().GetItem(context.Background(), GetItemRequest{
		Table:      getterTestTable,
		Key:        getterTestKey("user#1", "profile"),
		Projection: []string{"name"},
	})
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if _, ok := item["email"]; ok {
		t.Error("expected email field to be excluded")
	}
	if _, ok := item["name"]; !ok {
		t.Error("expected name field to be present")
	}
}

func TestGetter_GetItemsBatch_Empty(t *testing.T) {
	ddb := newRecordingClient(getterTestTable)

	items, err := New(ddb).NewLookup().GetItemsBatch(context.Background())
	if err != nil {
		t.Fatalf("GetItemsBatch failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
	if ddb.total() != 0 {
		t.Errorf("expected no calls, got %v", ddb.calls)
	}
}

func TestGetter_GetItemsBatch_OrderAndMisses(t *testing.T) {
	db := NewMemoryClient(getterTestTable, getterOtherTable)
	ctx := context.Background()
	seedGetter(t, db,
		testEntity{PK: "user#1", SK: "profile", Name: "Alice"},
		testEntity{PK: "user#2", SK: "profile", Name: "Bob"},
	)
	other := NewPut(getterOtherTable, otherKey(7), testItem(t, &testEntity{Name: "Seven"}))
	if err := db.PutItem(ctx, other); err != nil {
		t.Fatalf("PutItem failed: %v", err)
	}

	items, err := db.NewLookup().GetItemsBatch(ctx,
		GetItemRequest{Table: getterTestTable, Key: getterTestKey("user#2", "profile")},
		GetItemRequest{Table: getterOtherTable, Key: otherKey(7)},
		GetItemRequest{Table: getterTestTable, Key: getterTestKey("user#404", "profile")},
		GetItemRequest{Table: getterTestTable, Key: getterTestKey("user#1", "profile")},
		GetItemRequest{Table: getterTestTable, Key: getterTestKey("user#2", "profile")},
	)
	if err != nil {
		t.Fatalf("GetItemsBatch failed: %v", err)
	}
	want := []string{"Bob", "Seven", "<nil>", "Alice", "Bob"}
	if got := names(t, items); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestGetter_GetItemsBatch_ChunksAbove100(t *testing.T) {
	ddb := newRecordingClient(getterTestTable)
	db := New(ddb)
	ctx := context.Background()

	var requests []GetItemRequest
	var want []string
	for i := 0; i < 250; i++ {
		e := testEntity{PK: fmt.Sprintf("user#%03d", i), SK: "profile", Name: fmt.Sprintf("name-%d", i)}
		if i%2 == 0 {
			seedGetter(t, db, e)
			want = append(want, e.Name)
		} else {
			want = append(want, "<nil>")
		}
		requests = append(requests, GetItemRequest{Table: getterTestTable, Key: getterTestKey(e.PK, e.SK)})
	}

	items, err := db.NewLookup().GetItemsBatch(ctx, requests...)
	if err != nil {
		t.Fatalf("GetItemsBatch failed: %v", err)
	}
	if got := names(t, items); !equalStrings(got, want) {
		t.Errorf("results out of order or incomplete")
	}
	if ddb.calls["BatchGetItem"] != 3 {
		t.Errorf("expected 3 BatchGetItem calls, got %d", ddb.calls["BatchGetItem"])
	}
}

func TestGetter_GetItemsBatch_RetriesUnprocessedKeys(t *testing.T) {
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true, MaxBatchGetKeys: 2}, getterTestTable)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ddb := &recordingClient{AWSDynamoClientV2: store, calls: make(map[string]int)}
	db := New(ddb)
	ctx := context.Background()

	var requests []GetItemRequest
	var want []string
	for i := 0; i < 5; i++ {
		e := testEntity{PK: fmt.Sprintf("user#%d", i), SK: "profile", Name: fmt.Sprintf("name-%d", i)}
		seedGetter(t, db, e)
		want = append(want, e.Name)
		requests = append(requests, GetItemRequest{Table: getterTestTable, Key: getterTestKey(e.PK, e.SK)})
	}

	items, err := db.NewLookup(noBackoff).GetItemsBatch(ctx, requests...)
	if err != nil {
		t.Fatalf("GetItemsBatch failed: %v", err)
	}
	if got := names(t, items); !equalStrings(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if ddb.calls["BatchGetItem"] != 3 {
		t.Errorf("expected 3 BatchGetItem calls, got %d", ddb.calls["BatchGetItem"])
	}
}

func TestGetter_GetItemsBatch_GivesUp(t *testing.T) {
	ddb := newRecordingClient(getterTestTable)
	ddb.batchGet = func(in *dynamodbv2.BatchGetItemInput) (*dynamodbv2.BatchGetItemOutput, error) {
		return &dynamodbv2.BatchGetItemOutput{UnprocessedKeys: in.RequestItems}, nil
	}

	_, err := New(ddb).NewLookup(WithGetBackoff(func(int) time.Duration { return 0 }, 3)).GetItemsBatch(context.Background(),
		GetItemRequest{Table: getterTestTable, Key: getterTestKey("user#1", "profile")},
	)
	if !errors.Is(err, ErrUnprocessedKeys) {
		t.Fatalf("expected ErrUnprocessedKeys, got %v", err)
	}
	if ddb.calls["BatchGetItem"] != 3 {
		t.Errorf("expected 3 BatchGetItem calls, got %d", ddb.calls["BatchGetItem"])
	}
}

func TestGetter_GetItemsBatch_ProjectionKeepsKeys(t *testing.T) {
	db := NewMemoryClient(getterTestTable)
	seedGetter(t, db,
		testEntity{PK: "user#1", SK: "profile", Name: "Alice", Email: "alice@example.com"},
		testEntity{PK: "user#2", SK: "profile", Name: "Bob", Email: "bob@example.com"},
	)

	items, err := db.NewLookup().GetItemsBatch(context.Background(),
		GetItemRequest{Table: getterTestTable, Key: getterTestKey("user#2", "profile"), Projection: []string{"name"}},
		GetItemRequest{Table: getterTestTable, Key: getterTestKey("user#1", "profile")},
	)
	if err != nil {
		t.Fatalf("GetItemsBatch failed: %v", err)
	}
	if got := names(t, items); !equalStrings(got, []string{"Bob", "Alice"}) {
		t.Errorf("expected [Bob Alice], got %v", got)
	}
	for _, item := range items {
		if _, ok := item["email"]; ok {
			t.Error("expected email field to be excluded")
		}
		if _, ok := item["pk"]; !ok {
			t.Error("expected key attributes to be kept")
		}
	}
}

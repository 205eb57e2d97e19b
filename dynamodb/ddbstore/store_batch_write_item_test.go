package ddbstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_BatchWriteItem(t *testing.T) {
	t.Run("puts and deletes", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		ctx := context.Background()
		seed(t, store, singleTableDesign.Name, item("old", "1"))

		out, err := store.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				singleTableDesign.Name: {
					{PutRequest: &types.PutRequest{Item: item("new", "1")}},
					{DeleteRequest: &types.DeleteRequest{Key: key("old", "1")}},
				},
			},
		})
		require.NoError(t, err)
		assert.Empty(t, out.UnprocessedItems)

		got, err := store.GetItem(ctx, &dynamodb.GetItemInput{TableName: &singleTableDesign.Name, Key: key("new", "1")})
		require.NoError(t, err)
		assert.NotNil(t, got.Item)
		got, err = store.GetItem(ctx, &dynamodb.GetItemInput{TableName: &singleTableDesign.Name, Key: key("old", "1")})
		require.NoError(t, err)
		assert.Nil(t, got.Item)
	})

	t.Run("cap leaves unprocessed items", func(t *testing.T) {
		store := newTestStoreWithOptions(t, StoreOptions{InMemory: true, MaxBatchWriteItems: 1}, singleTableDesign)

		out, err := store.BatchWriteItem(context.Background(), &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				singleTableDesign.Name: {
					{PutRequest: &types.PutRequest{Item: item("a", "1")}},
					{PutRequest: &types.PutRequest{Item: item("b", "1")}},
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []types.WriteRequest{
			{PutRequest: &types.PutRequest{Item: item("b", "1")}},
		}, out.UnprocessedItems[singleTableDesign.Name])
	})

	t.Run("duplicate keys", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)

		_, err := store.BatchWriteItem(context.Background(), &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				singleTableDesign.Name: {
					{PutRequest: &types.PutRequest{Item: item("a", "1")}},
					{DeleteRequest: &types.DeleteRequest{Key: key("a", "1")}},
				},
			},
		})
		require.ErrorContains(t, err, "contains duplicates")
	})
}

package ddbstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_TransactGetItems(t *testing.T) {
	t.Run("responses follow request order", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign, noSortKeyTable)
		seed(t, store, singleTableDesign.Name, item("a", "1", "data", "x"))
		seed(t, store, noSortKeyTable.Name, map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "solo"}})

		out, err := store.TransactGetItems(context.Background(), &dynamodb.TransactGetItemsInput{
			TransactItems: []types.TransactGetItem{
				{Get: &types.Get{
					TableName: &noSortKeyTable.Name,
					Key:       map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: "solo"}},
				}},
				{Get: &types.Get{TableName: &singleTableDesign.Name, Key: key("missing", "1")}},
				{Get: &types.Get{
					TableName:                &singleTableDesign.Name,
					Key:                      key("a", "1"),
					ProjectionExpression:     aws.String("#d"),
					ExpressionAttributeNames: map[string]string{"#d": "data"},
				}},
			},
		})
		require.NoError(t, err)
		require.Len(t, out.Responses, 3)
		assert.Equal(t, "solo", out.Responses[0].Item["pk"].(*types.AttributeValueMemberS).Value)
		assert.Nil(t, out.Responses[1].Item)
		assert.Equal(t, map[string]types.AttributeValue{"data": &types.AttributeValueMemberS{Value: "x"}}, out.Responses[2].Item)
	})

	t.Run("empty get", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)

		_, err := store.TransactGetItems(context.Background(), &dynamodb.TransactGetItemsInput{
			TransactItems: []types.TransactGetItem{{}},
		})
		require.Error(t, err)
	})
}

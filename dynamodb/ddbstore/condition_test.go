package ddbstore

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalCondition(t *testing.T) {
	doc := map[string]types.AttributeValue{
		"pk":    &types.AttributeValueMemberS{Value: "a"},
		"count": &types.AttributeValueMemberN{Value: "3"},
		"meta": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"owner": &types.AttributeValueMemberS{Value: "ann"},
		}},
	}
	names := map[string]string{"#pk": "pk", "#c": "count", "#m": "meta", "#o": "owner", "#x": "missing"}
	values := map[string]types.AttributeValue{
		":three": &types.AttributeValueMemberN{Value: "3.0"},
		":ann":   &types.AttributeValueMemberS{Value: "ann"},
	}

	tests := []struct {
		expr string
		item map[string]types.AttributeValue
		want bool
	}{
		{"attribute_exists(#pk)", doc, true},
		{"attribute_not_exists(#pk)", doc, false},
		{"attribute_not_exists (#pk)", nil, true},
		{"#c = :three", doc, true},
		{"#c <> :three", doc, false},
		{"#m.#o = :ann", doc, true},
		{"#x = :ann", doc, false},
		{"#x <> :ann", doc, false},
		{"attribute_exists(#x) OR #c = :three", doc, true},
		{"(attribute_exists(#pk)) AND (NOT attribute_exists(#x))", doc, true},
		{"NOT (#c = :three AND attribute_exists(#pk))", doc, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalCondition(conditionInput{aws.String(tt.expr), names, values}, tt.item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalCondition_Errors(t *testing.T) {
	for _, expr := range []string{
		"#undefined = :ann",
		"pk = :undefined",
		"pk > :ann",
		"attribute_exists(pk",
		"begins_with(pk, :ann)",
		"pk[0] = :ann",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := evalCondition(conditionInput{
				expression: aws.String(expr),
				values:     map[string]types.AttributeValue{":ann": &types.AttributeValueMemberS{Value: "ann"}},
			}, nil)
			require.Error(t, err)
		})
	}
}

func TestEvalCondition_ExpressionBuilderOutput(t *testing.T) {
	cond := expression.And(
		expression.AttributeNotExists(expression.Name("pk")),
		expression.AttributeNotExists(expression.Name("sk")),
	)
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	require.NoError(t, err)

	in := conditionInput{expr.Condition(), expr.Names(), expr.Values()}
	ok, err := evalCondition(in, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = evalCondition(in, item("a", "1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

package ddbsdk

import (
	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Action interface {
	TableName() *string
	PrimaryKey() table.PrimaryKey
	ToTransactWriteItem() (types.TransactWriteItem, error)
}

// BatchAction is an action that can be used in a BatchWriteItem call.
// Only unconditional Puts and Deletes qualify.
type BatchAction interface {
	Action
	ToBatchWriteRequest() (types.WriteRequest, error)
	batchWritable()
}

var (
	_ BatchAction = &Put{}
	_ BatchAction = &Delete{}
)

type Put struct {
	Table table.TableDefinition
	Key   table.PrimaryKey
	Item  map[string]types.AttributeValue

	c expression.ConditionBuilder
}

type Delete struct {
	Table table.TableDefinition
	Key   table.PrimaryKey

	c expression.ConditionBuilder
}

// buildCondition builds the condition expression, if any.
// The expression builder refuses to build an empty expression.
func buildCondition(c expression.ConditionBuilder) (expression.Expression, bool, error) {
	if !c.IsSet() {
		return expression.Expression{}, false, nil
	}
	e, err := expression.NewBuilder().WithCondition(c).Build()
	if err != nil {
		return expression.Expression{}, false, err
	}
	return e, true, nil
}

func actionID(tableName string, pk table.PrimaryKey) string {
	return tableName + "\x00" + pk.String()
}

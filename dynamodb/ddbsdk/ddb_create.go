package ddbsdk

import (
	"github.com/acksell/ddbpersist/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NewCreate is a Put that fails with a ConditionalCheckFailedException when an item
// with the same key already exists.
func NewCreate(table table.TableDefinition, key table.PrimaryKey, item map[string]types.AttributeValue) *Put {
	return NewPut(table, key, item).WithCondition(
		expression.AttributeNotExists(expression.Name(table.KeyDefinitions.PartitionKey.Name)))
}

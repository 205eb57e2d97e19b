package ddbsdk

import (
	"fmt"
	"maps"

	"github.com/acksell/ddbpersist/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NewPut replaces the item stored under key with item.
// The key attributes are written onto the item, so the two can not disagree.
func NewPut(table table.TableDefinition, key table.PrimaryKey, item map[string]types.AttributeValue) *Put {
	return &Put{
		Table: table,
		Key:   key,
		Item:  item,
	}
}

func (p *Put) TableName() *string {
	return &p.Table.Name
}

func (p *Put) PrimaryKey() table.PrimaryKey {
	return p.Key
}

// WithCondition adds a condition expression, ANDed with any earlier condition.
// Puts with conditions cannot be used with BatchWriteItem.
func (p *Put) WithCondition(c expression.ConditionBuilder) *Put {
	if p.c.IsSet() {
		p.c = p.c.And(c)
		return p
	}
	p.c = c
	return p
}

func (p *Put) Build() (expression.Expression, map[string]types.AttributeValue, error) {
	key, err := p.Key.DDB()
	if err != nil {
		return expression.Expression{}, nil, fmt.Errorf("key: %w", err)
	}
	item := make(map[string]types.AttributeValue, len(p.Item)+len(key))
	maps.Copy(item, p.Item)
	maps.Copy(item, key)

	e, _, err := buildCondition(p.c)
	if err != nil {
		return expression.Expression{}, nil, fmt.Errorf("build: %w", err)
	}
	return e, item, nil
}

func (p *Put) ToPutItem() (*dynamodbv2.PutItemInput, error) {
	e, item, err := p.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build put: %w", err)
	}
	return &dynamodbv2.PutItemInput{
		TableName:                 p.TableName(),
		Item:                      item,
		ConditionExpression:       e.Condition(),
		ExpressionAttributeValues: e.Values(),
		ExpressionAttributeNames:  e.Names(),
	}, nil
}

func (p *Put) ToTransactWriteItem() (types.TransactWriteItem, error) {
	e, item, err := p.Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build put: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 p.TableName(),
			Item:                      item,
			ConditionExpression:       e.Condition(),
			ExpressionAttributeValues: e.Values(),
			ExpressionAttributeNames:  e.Names(),
		},
	}, nil
}

// batchWritable implements BatchAction.
func (p *Put) batchWritable() {}

// ToBatchWriteRequest converts the Put to a WriteRequest for BatchWriteItem.
func (p *Put) ToBatchWriteRequest() (types.WriteRequest, error) {
	if p.c.IsSet() {
		return types.WriteRequest{}, fmt.Errorf("put on %s has a condition, which BatchWriteItem does not support", p.Table.Name)
	}
	_, item, err := p.Build()
	if err != nil {
		return types.WriteRequest{}, fmt.Errorf("failed to build put: %w", err)
	}
	return types.WriteRequest{
		PutRequest: &types.PutRequest{
			Item: item,
		},
	}, nil
}

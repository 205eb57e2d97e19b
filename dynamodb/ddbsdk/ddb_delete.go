package ddbsdk

import (
	"fmt"

	"github.com/acksell/ddbpersist/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func NewDelete(table table.TableDefinition, pk table.PrimaryKey) *Delete {
	return &Delete{
		Table: table,
		Key:   pk,
	}
}

func (d *Delete) TableName() *string {
	return &d.Table.Name
}

func (d *Delete) PrimaryKey() table.PrimaryKey {
	return d.Key
}

func (d *Delete) WithCondition(c expression.ConditionBuilder) *Delete {
	if d.c.IsSet() {
		d.c = d.c.And(c)
		return d
	}
	d.c = c
	return d
}

func (d *Delete) Build() (expression.Expression, map[string]types.AttributeValue, error) {
	key, err := d.Key.DDB()
	if err != nil {
		return expression.Expression{}, nil, fmt.Errorf("key: %w", err)
	}
	e, _, err := buildCondition(d.c)
	if err != nil {
		return expression.Expression{}, nil, fmt.Errorf("build: %w", err)
	}
	return e, key, nil
}

func (d *Delete) ToDeleteItem() (*dynamodbv2.DeleteItemInput, error) {
	e, key, err := d.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build delete: %w", err)
	}
	return &dynamodbv2.DeleteItemInput{
		TableName:                 d.TableName(),
		Key:                       key,
		ConditionExpression:       e.Condition(),
		ExpressionAttributeValues: e.Values(),
		ExpressionAttributeNames:  e.Names(),
	}, nil
}

func (d *Delete) ToTransactWriteItem() (types.TransactWriteItem, error) {
	e, key, err := d.Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build delete: %w", err)
	}
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                 d.TableName(),
			Key:                       key,
			ConditionExpression:       e.Condition(),
			ExpressionAttributeValues: e.Values(),
			ExpressionAttributeNames:  e.Names(),
		},
	}, nil
}

// batchWritable implements BatchAction.
func (d *Delete) batchWritable() {}

// ToBatchWriteRequest converts the Delete to a WriteRequest for BatchWriteItem.
func (d *Delete) ToBatchWriteRequest() (types.WriteRequest, error) {
	if d.c.IsSet() {
		return types.WriteRequest{}, fmt.Errorf("delete on %s has a condition, which BatchWriteItem does not support", d.Table.Name)
	}
	key, err := d.Key.DDB()
	if err != nil {
		return types.WriteRequest{}, fmt.Errorf("key: %w", err)
	}
	return types.WriteRequest{
		DeleteRequest: &types.DeleteRequest{Key: key},
	}, nil
}

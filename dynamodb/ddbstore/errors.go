package ddbstore

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/dgraph-io/badger/v4"
)

// The store answers with the same error types DynamoDB does, so callers can
// classify errors without knowing which backend they talk to.

func validationError(format string, args ...any) error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: fmt.Sprintf(format, args...),
		Fault:   smithy.FaultClient,
	}
}

func resourceNotFound(tableName string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Requested resource not found: Table: %s not found", tableName)),
	}
}

func resourceInUse(tableName string) error {
	return &types.ResourceInUseException{
		Message: aws.String(fmt.Sprintf("Table already exists: %s", tableName)),
	}
}

func conditionalCheckFailed() error {
	return &types.ConditionalCheckFailedException{
		Message: aws.String("The conditional request failed"),
	}
}

// writeConflict maps a badger commit conflict, caused by a concurrent write to the
// same item, to the exception DynamoDB raises for it.
func writeConflict(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return &types.TransactionConflictException{
			Message: aws.String("Transaction is ongoing for the item"),
		}
	}
	return err
}

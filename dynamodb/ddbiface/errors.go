package ddbiface

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// StorageError is a transport or service level failure of a DynamoDB call,
// such as throttling or unavailability.
type StorageError struct {
	// Op is the DynamoDB operation, e.g. "TransactWriteItems".
	Op string
	// Code is the service error code when the service returned one.
	Code string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dynamodb %s failed (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("dynamodb %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for op. Nil stays nil and errors that
// already are StorageErrors are returned as is.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	se = &StorageError{Op: op, Err: err}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		se.Code = ae.ErrorCode()
	}
	return se
}

// IsThrottle reports whether err is a throttling error from the service.
func IsThrottle(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
		return true
	}
	return false
}

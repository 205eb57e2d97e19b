package ddl

import "fmt"

// SchemaConflictError is returned when a table that is to be created already exists.
type SchemaConflictError struct {
	Table string
	Err   error
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("table %s already exists: %v", e.Table, e.Err)
}

func (e *SchemaConflictError) Unwrap() error {
	return e.Err
}

// MismatchKind is the part of a table schema that did not match.
type MismatchKind string

const (
	MismatchMissingTable MismatchKind = "table"
	MismatchKeySchema    MismatchKind = "key schema"
	MismatchGSIs         MismatchKind = "global secondary indexes"
)

// SchemaMismatchError is returned by validation when a table does not match its
// definition. Expected and Actual describe the compared part.
type SchemaMismatchError struct {
	Table    string
	Kind     MismatchKind
	Expected string
	Actual   string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("table %s: %s mismatch: expected [%s], got [%s]", e.Table, e.Kind, e.Expected, e.Actual)
}

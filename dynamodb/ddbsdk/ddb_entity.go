package ddbsdk

// DynamoEntity is implemented by entities that can check themselves before they are
// written. The persist.Template write paths call IsValid and refuse to write an
// entity that fails it.
type DynamoEntity interface {
	IsValid() error
}

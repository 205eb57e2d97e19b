package ddbsdk

import (
	"github.com/acksell/ddbpersist/dynamodb/ddbstore"
	"github.com/acksell/ddbpersist/dynamodb/table"
)

// NewMemoryClient returns a Client backed by an in-memory ddbstore with the given tables.
// Meant for tests, it panics if the store can not be opened.
func NewMemoryClient(defs ...table.TableDefinition) *Client {
	store, err := ddbstore.New(ddbstore.StoreOptions{InMemory: true}, defs...)
	if err != nil {
		panic(err)
	}
	return New(store)
}

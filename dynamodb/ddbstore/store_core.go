package ddbstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Store is a DynamoDB-compatible store backed by BadgerDB.
// It provides full ACID guarantees for the item operations, and keeps table
// definitions so tables can be created and dropped at runtime.
type Store struct {
	db   *badger.DB
	opts StoreOptions

	// mu guards tables. Item operations hold the read lock for their whole
	// duration so a table can not be dropped underneath a write.
	mu     sync.RWMutex
	tables map[string]*tableSchema
}

var _ ddbiface.Client = (*Store)(nil)

type tableSchema struct {
	definition table.TableDefinition
	gsis       map[string]*gsiSchema

	created    time.Time
	throughput *types.ProvisionedThroughput
}

func newTableSchema(def table.TableDefinition, created time.Time, throughput *types.ProvisionedThroughput) *tableSchema {
	schema := &tableSchema{
		definition: def,
		gsis:       make(map[string]*gsiSchema),
		created:    created,
		throughput: throughput,
	}
	for _, gsiDef := range def.GSIs {
		schema.gsis[gsiDef.Name] = &gsiSchema{
			tableName:  def.Name,
			definition: gsiDef,
		}
	}
	return schema
}

func (t *tableSchema) encodeKey(pk table.PrimaryKey) ([]byte, error) {
	return encodeBadgerKey(t.definition.Name, "", pk)
}

type gsiSchema struct {
	tableName  string
	definition table.GSIDefinition
}

func (g *gsiSchema) encodeKey(pk table.PrimaryKey) ([]byte, error) {
	return encodeBadgerKey(g.tableName, g.definition.Name, pk)
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger

	// MaxBatchGetKeys caps the keys served per BatchGetItem call, the rest is
	// returned as UnprocessedKeys. Zero means no cap beyond DynamoDB's own limit.
	MaxBatchGetKeys int
	// MaxBatchWriteItems caps the requests applied per BatchWriteItem call, the
	// rest is returned as UnprocessedItems. Zero means no cap.
	MaxBatchWriteItems int
}

// New creates a new BadgerDB-backed DynamoDB store.
//
// Tables persisted by an earlier run are loaded. The given definitions are created
// unless a table with the same name already exists.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:     db,
		opts:   opts,
		tables: make(map[string]*tableSchema),
	}
	if err := s.loadTables(); err != nil {
		db.Close()
		return nil, err
	}
	for _, def := range defs {
		if _, ok := s.tables[def.Name]; ok {
			continue
		}
		if err := s.putTable(newTableSchema(def, time.Now(), nil)); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table %s: %w", def.Name, err)
		}
	}
	return s, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

// getTable must be called with s.mu held.
func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil || *tableName == "" {
		return nil, validationError("table name is required")
	}
	schema, ok := s.tables[*tableName]
	if !ok {
		return nil, resourceNotFound(*tableName)
	}
	return schema, nil
}

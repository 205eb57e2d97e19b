package ddbstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// maxListTables is the page size limit of ListTables.
const maxListTables = 100

// CreateTable registers a new table. Tables are ACTIVE as soon as the call returns.
func (s *Store) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	def, err := table.DefinitionFromCreateInput(params)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	var throughput *types.ProvisionedThroughput
	switch params.BillingMode {
	case types.BillingModePayPerRequest:
		if params.ProvisionedThroughput != nil {
			return nil, validationError("Neither ReadCapacityUnits nor WriteCapacityUnits can be specified when BillingMode is PAY_PER_REQUEST")
		}
	case types.BillingModeProvisioned, "":
		pt := params.ProvisionedThroughput
		if pt == nil || pt.ReadCapacityUnits == nil || pt.WriteCapacityUnits == nil {
			return nil, validationError("ReadCapacityUnits and WriteCapacityUnits must both be specified when BillingMode is PROVISIONED")
		}
		throughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(*pt.ReadCapacityUnits),
			WriteCapacityUnits: aws.Int64(*pt.WriteCapacityUnits),
		}
	default:
		return nil, validationError("unknown billing mode %q", params.BillingMode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[def.Name]; ok {
		return nil, resourceInUse(def.Name)
	}
	schema := newTableSchema(def, time.Now(), throughput)
	if err := s.putTable(schema); err != nil {
		return nil, err
	}
	return &dynamodb.CreateTableOutput{TableDescription: describe(schema)}, nil
}

// DeleteTable drops a table together with all its items and index entries.
func (s *Store) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	schema, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	if err := s.db.DropPrefix(tablePrefixes(schema.definition)...); err != nil {
		return nil, fmt.Errorf("drop table %s: %w", schema.definition.Name, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(metaKey(schema.definition.Name))
	})
	if err != nil {
		return nil, fmt.Errorf("delete table %s metadata: %w", schema.definition.Name, err)
	}
	delete(s.tables, schema.definition.Name)

	desc := describe(schema)
	desc.TableStatus = types.TableStatusDeleting
	return &dynamodb.DeleteTableOutput{TableDescription: desc}, nil
}

// DescribeTable returns the table's key schema, attribute definitions and indexes.
func (s *Store) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	schema, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: describe(schema)}, nil
}

// ListTables returns table names in lexicographic order, paginated like DynamoDB.
func (s *Store) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if params == nil {
		params = &dynamodb.ListTablesInput{}
	}
	limit := maxListTables
	if params.Limit != nil {
		if *params.Limit < 1 || *params.Limit > maxListTables {
			return nil, validationError("Limit must be between 1 and %d", maxListTables)
		}
		limit = int(*params.Limit)
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	start := 0
	if params.ExclusiveStartTableName != nil {
		start = sort.SearchStrings(names, *params.ExclusiveStartTableName)
		if start < len(names) && names[start] == *params.ExclusiveStartTableName {
			start++
		}
	}
	names = names[start:]

	out := &dynamodb.ListTablesOutput{}
	if len(names) > limit {
		names = names[:limit]
		out.LastEvaluatedTableName = aws.String(names[limit-1])
	}
	out.TableNames = names
	return out, nil
}

// putTable persists and registers a table. Must be called with s.mu held, or
// before the store is shared.
func (s *Store) putTable(schema *tableSchema) error {
	data, err := encodeTable(schema)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(schema.definition.Name), data)
	})
	if err != nil {
		return fmt.Errorf("persist table %s: %w", schema.definition.Name, err)
	}
	s.tables[schema.definition.Name] = schema
	return nil
}

func (s *Store) loadTables() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var st storedTable
			err := it.Item().Value(func(val []byte) error {
				var err error
				st, err = decodeTable(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("load table %s: %w", it.Item().Key(), err)
			}
			var throughput *types.ProvisionedThroughput
			if st.Provisioned {
				throughput = &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(st.ReadCapacity),
					WriteCapacityUnits: aws.Int64(st.WriteCapacity),
				}
			}
			s.tables[st.Definition.Name] = newTableSchema(st.Definition, time.Unix(0, st.Created), throughput)
		}
		return nil
	})
}

func describe(schema *tableSchema) *types.TableDescription {
	def := schema.definition
	desc := &types.TableDescription{
		TableName:            aws.String(def.Name),
		TableArn:             aws.String("arn:aws:dynamodb:local:000000000000:table/" + def.Name),
		TableStatus:          types.TableStatusActive,
		KeySchema:            def.KeyDefinitions.KeySchema(),
		AttributeDefinitions: def.AttributeDefinitions(),
		CreationDateTime:     aws.Time(schema.created),
	}

	throughput := &types.ProvisionedThroughputDescription{
		ReadCapacityUnits:  aws.Int64(0),
		WriteCapacityUnits: aws.Int64(0),
	}
	billing := types.BillingModePayPerRequest
	if schema.throughput != nil {
		billing = types.BillingModeProvisioned
		throughput.ReadCapacityUnits = aws.Int64(aws.ToInt64(schema.throughput.ReadCapacityUnits))
		throughput.WriteCapacityUnits = aws.Int64(aws.ToInt64(schema.throughput.WriteCapacityUnits))
	}
	desc.ProvisionedThroughput = throughput
	desc.BillingModeSummary = &types.BillingModeSummary{BillingMode: billing}

	for _, g := range def.GSIs {
		projection := g.Projection
		if projection == "" {
			projection = types.ProjectionTypeAll
		}
		gt := *throughput
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName:             aws.String(g.Name),
			IndexArn:              aws.String(aws.ToString(desc.TableArn) + "/index/" + g.Name),
			IndexStatus:           types.IndexStatusActive,
			KeySchema:             g.KeyDefinitions.KeySchema(),
			Projection:            &types.Projection{ProjectionType: projection},
			ProvisionedThroughput: &gt,
		})
	}
	return desc
}

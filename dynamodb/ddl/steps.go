package ddl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/acksell/ddbpersist/dynamodb/ddbiface"
	"github.com/acksell/ddbpersist/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

func (m *Manager) create(ctx context.Context, def table.TableDefinition) error {
	var throughput *types.ProvisionedThroughput
	if m.opts.throughput != nil {
		throughput = m.opts.throughput.provisioned()
	}
	_, err := m.admin.CreateTable(ctx, def.CreateTableInput(throughput, m.opts.gsiProjection))
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return &SchemaConflictError{Table: def.Name, Err: err}
		}
		return ddbiface.NewStorageError("CreateTable", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(m.admin, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = m.opts.minDelay
		o.MaxDelay = m.opts.maxDelay
	})
	in := &dynamodb.DescribeTableInput{TableName: aws.String(def.Name)}
	if err := waiter.Wait(ctx, in, m.opts.waitTimeout); err != nil {
		return ddbiface.NewStorageError("DescribeTable", fmt.Errorf("wait for table %s to become active: %w", def.Name, err))
	}
	return nil
}

func (m *Manager) drop(ctx context.Context, def table.TableDefinition) error {
	_, err := m.admin.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(def.Name)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			m.opts.logger.Debug("table does not exist, nothing to drop", zap.String("table", def.Name))
			return nil
		}
		return ddbiface.NewStorageError("DeleteTable", err)
	}

	waiter := dynamodb.NewTableNotExistsWaiter(m.admin, func(o *dynamodb.TableNotExistsWaiterOptions) {
		o.MinDelay = m.opts.minDelay
		o.MaxDelay = m.opts.maxDelay
	})
	in := &dynamodb.DescribeTableInput{TableName: aws.String(def.Name)}
	if err := waiter.Wait(ctx, in, m.opts.waitTimeout); err != nil {
		return ddbiface.NewStorageError("DescribeTable", fmt.Errorf("wait for table %s to be deleted: %w", def.Name, err))
	}
	return nil
}

// validate compares key schemas in order, and GSIs as a set by name when the
// definition declares any. Capacity and billing are not compared.
func (m *Manager) validate(ctx context.Context, def table.TableDefinition) error {
	out, err := m.admin.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.Name)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return &SchemaMismatchError{
				Table:    def.Name,
				Kind:     MismatchMissingTable,
				Expected: formatKeySchema(def.KeyDefinitions.KeySchema()),
				Actual:   "no table",
			}
		}
		return ddbiface.NewStorageError("DescribeTable", err)
	}

	expected := formatKeySchema(def.KeyDefinitions.KeySchema())
	actual := formatKeySchema(out.Table.KeySchema)
	if expected != actual {
		return &SchemaMismatchError{Table: def.Name, Kind: MismatchKeySchema, Expected: expected, Actual: actual}
	}

	if len(def.GSIs) > 0 {
		expected := formatIndexes(m.expectedIndexes(def))
		actual := formatIndexes(actualIndexes(out.Table.GlobalSecondaryIndexes))
		if expected != actual {
			return &SchemaMismatchError{Table: def.Name, Kind: MismatchGSIs, Expected: expected, Actual: actual}
		}
	}
	m.opts.logger.Debug("table matches definition", zap.String("table", def.Name))
	return nil
}

type index struct {
	name       string
	keySchema  []types.KeySchemaElement
	projection types.ProjectionType
}

func (m *Manager) expectedIndexes(def table.TableDefinition) []index {
	out := make([]index, 0, len(def.GSIs))
	for _, g := range def.GSIs {
		projection := g.Projection
		if projection == "" {
			projection = m.opts.gsiProjection
		}
		out = append(out, index{name: g.Name, keySchema: g.KeyDefinitions.KeySchema(), projection: projection})
	}
	return out
}

func actualIndexes(gsis []types.GlobalSecondaryIndexDescription) []index {
	out := make([]index, 0, len(gsis))
	for _, g := range gsis {
		idx := index{name: aws.ToString(g.IndexName), keySchema: g.KeySchema}
		if g.Projection != nil {
			idx.projection = g.Projection.ProjectionType
		}
		out = append(out, idx)
	}
	return out
}

func formatKeySchema(ks []types.KeySchemaElement) string {
	parts := make([]string, 0, len(ks))
	for _, k := range ks {
		parts = append(parts, aws.ToString(k.AttributeName)+" "+string(k.KeyType))
	}
	return strings.Join(parts, ", ")
}

// formatIndexes renders indexes sorted by name, so equal sets format equally.
func formatIndexes(indexes []index) string {
	slices.SortFunc(indexes, func(a, b index) int {
		return strings.Compare(a.name, b.name)
	})
	parts := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		parts = append(parts, fmt.Sprintf("%s(%s) %s", idx.name, formatKeySchema(idx.keySchema), idx.projection))
	}
	return strings.Join(parts, "; ")
}

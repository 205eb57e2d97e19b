package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AttributeDefinitions lists every key attribute of the table and its GSIs once,
// table keys first, in declaration order.
func (t TableDefinition) AttributeDefinitions() []types.AttributeDefinition {
	var defs []types.AttributeDefinition
	seen := make(map[string]bool)
	add := func(k KeyDef) {
		if k.Name == "" || seen[k.Name] {
			return
		}
		seen[k.Name] = true
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(k.Name),
			AttributeType: types.ScalarAttributeType(k.Kind),
		})
	}
	add(t.KeyDefinitions.PartitionKey)
	add(t.KeyDefinitions.SortKey)
	for _, g := range t.GSIs {
		add(g.KeyDefinitions.PartitionKey)
		add(g.KeyDefinitions.SortKey)
	}
	return defs
}

// CreateTableInput builds the CreateTable request for the definition.
//
// The throughput is attached to the table and to every GSI. A nil throughput means
// on-demand billing. GSIs without a projection use defaultProjection, which in turn
// defaults to ALL.
func (t TableDefinition) CreateTableInput(throughput *types.ProvisionedThroughput, defaultProjection types.ProjectionType) *dynamodb.CreateTableInput {
	if defaultProjection == "" {
		defaultProjection = types.ProjectionTypeAll
	}
	in := &dynamodb.CreateTableInput{
		TableName:            aws.String(t.Name),
		KeySchema:            t.KeyDefinitions.KeySchema(),
		AttributeDefinitions: t.AttributeDefinitions(),
	}
	if throughput != nil {
		in.BillingMode = types.BillingModeProvisioned
		in.ProvisionedThroughput = copyThroughput(throughput)
	} else {
		in.BillingMode = types.BillingModePayPerRequest
	}
	for _, g := range t.GSIs {
		projection := g.Projection
		if projection == "" {
			projection = defaultProjection
		}
		gsi := types.GlobalSecondaryIndex{
			IndexName:  aws.String(g.Name),
			KeySchema:  g.KeyDefinitions.KeySchema(),
			Projection: &types.Projection{ProjectionType: projection},
		}
		if throughput != nil {
			gsi.ProvisionedThroughput = copyThroughput(throughput)
		}
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, gsi)
	}
	return in
}

func copyThroughput(pt *types.ProvisionedThroughput) *types.ProvisionedThroughput {
	c := *pt
	return &c
}

// DefinitionFromCreateInput is the inverse of CreateTableInput, used by stores that
// need a TableDefinition to lay out their keys.
func DefinitionFromCreateInput(in *dynamodb.CreateTableInput) (TableDefinition, error) {
	if in == nil || in.TableName == nil || *in.TableName == "" {
		return TableDefinition{}, fmt.Errorf("table name is required")
	}
	kinds := make(map[string]KeyKind, len(in.AttributeDefinitions))
	for _, ad := range in.AttributeDefinitions {
		kinds[aws.ToString(ad.AttributeName)] = KeyKind(ad.AttributeType)
	}
	keys, err := keyDefinitionFromSchema(in.KeySchema, kinds)
	if err != nil {
		return TableDefinition{}, fmt.Errorf("table %s: %w", *in.TableName, err)
	}
	def := TableDefinition{
		Name:           *in.TableName,
		KeyDefinitions: keys,
	}
	for _, g := range in.GlobalSecondaryIndexes {
		gkeys, err := keyDefinitionFromSchema(g.KeySchema, kinds)
		if err != nil {
			return TableDefinition{}, fmt.Errorf("index %s: %w", aws.ToString(g.IndexName), err)
		}
		gsi := GSIDefinition{
			Name:           aws.ToString(g.IndexName),
			KeyDefinitions: gkeys,
		}
		if g.Projection != nil {
			gsi.Projection = g.Projection.ProjectionType
		}
		def.GSIs = append(def.GSIs, gsi)
	}
	return def, nil
}

func keyDefinitionFromSchema(ks []types.KeySchemaElement, kinds map[string]KeyKind) (PrimaryKeyDefinition, error) {
	var def PrimaryKeyDefinition
	for _, el := range ks {
		name := aws.ToString(el.AttributeName)
		kind, ok := kinds[name]
		if !ok {
			return PrimaryKeyDefinition{}, fmt.Errorf("key attribute %q has no attribute definition", name)
		}
		if !kind.Valid() {
			return PrimaryKeyDefinition{}, fmt.Errorf("key attribute %q has invalid type %q", name, kind)
		}
		switch el.KeyType {
		case types.KeyTypeHash:
			def.PartitionKey = KeyDef{Name: name, Kind: kind}
		case types.KeyTypeRange:
			def.SortKey = KeyDef{Name: name, Kind: kind}
		default:
			return PrimaryKeyDefinition{}, fmt.Errorf("unknown key type %q for %q", el.KeyType, name)
		}
	}
	if def.PartitionKey.Name == "" {
		return PrimaryKeyDefinition{}, fmt.Errorf("key schema has no HASH key")
	}
	return def, nil
}

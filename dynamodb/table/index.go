package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Primary indexes operate on the underlying table's keys.
// The index definition contains "Keyers" which construct the primary key
// from the other attributes of a document.
type PrimaryIndexDefinition struct {
	Table          TableDefinition
	PartitionKeyer Keyer
	SortKeyer      Keyer
}

func (i *PrimaryIndexDefinition) PrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return keyFromKeyers(i.Table.KeyDefinitions, i.PartitionKeyer, i.SortKeyer, doc)
}

// Secondary indexes define the key attributes of a GSI on the table.
// Like primary indexes, the keys are computed by Keyers and stored on the document,
// so the GSI picks the document up.
type SecondaryIndexDefinition struct {
	GSI            GSIDefinition
	PartitionKeyer Keyer
	SortKeyer      Keyer
}

func (i *SecondaryIndexDefinition) PrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return keyFromKeyers(i.GSI.KeyDefinitions, i.PartitionKeyer, i.SortKeyer, doc)
}

func keyFromKeyers(def PrimaryKeyDefinition, partKeyer, sortKeyer Keyer, doc map[string]types.AttributeValue) (PrimaryKey, error) {
	if partKeyer == nil {
		return PrimaryKey{}, fmt.Errorf("no partition keyer for %q", def.PartitionKey.Name)
	}
	part, err := partKeyer.Key(doc)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("failed to get partition key: %w", err)
	}
	if err := attributeMatchesDefinition(def.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("partition key kind does not match table definition: %w", err)
	}
	pk := PrimaryKey{
		Definition: def,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if !def.HasSortKey() {
		return pk, nil
	}
	if sortKeyer == nil {
		return PrimaryKey{}, fmt.Errorf("no sort keyer for %q", def.SortKey.Name)
	}
	sort, err := sortKeyer.Key(doc)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("failed to get sort key: %w", err)
	}
	if err := attributeMatchesDefinition(def.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key kind does not match table definition: %w", err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

package schema

import (
	"errors"
	"fmt"
	"os"

	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"gopkg.in/yaml.v3"
)

// Filename is the conventional name of schema files.
const Filename = "schema_dynamodb.yaml"

// Load reads and parses a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML schema and checks every table converts to a valid definition.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	var errs []error
	for _, t := range s.Tables {
		if _, err := t.Definition(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &s, nil
}

// Definition converts the table to a table.TableDefinition.
func (t Table) Definition() (table.TableDefinition, error) {
	if t.Name == "" {
		return table.TableDefinition{}, errors.New("table name is required")
	}
	keys, err := keyDefinition(t.PartitionKey, t.SortKey)
	if err != nil {
		return table.TableDefinition{}, fmt.Errorf("table %s: %w", t.Name, err)
	}
	def := table.TableDefinition{
		Name:           t.Name,
		KeyDefinitions: keys,
	}
	for _, g := range t.GSIs {
		if g.Name == "" {
			return table.TableDefinition{}, fmt.Errorf("table %s: gsi name is required", t.Name)
		}
		gkeys, err := keyDefinition(g.PartitionKey, g.SortKey)
		if err != nil {
			return table.TableDefinition{}, fmt.Errorf("table %s gsi %s: %w", t.Name, g.Name, err)
		}
		projection := types.ProjectionType(g.Projection)
		switch projection {
		case "", types.ProjectionTypeAll, types.ProjectionTypeKeysOnly, types.ProjectionTypeInclude:
		default:
			return table.TableDefinition{}, fmt.Errorf("table %s gsi %s: unknown projection %q", t.Name, g.Name, g.Projection)
		}
		def.GSIs = append(def.GSIs, table.GSIDefinition{
			Name:           g.Name,
			KeyDefinitions: gkeys,
			Projection:     projection,
		})
	}
	return def, nil
}

func keyDefinition(part KeyDef, sort *KeyDef) (table.PrimaryKeyDefinition, error) {
	pk, err := keyDef(part)
	if err != nil {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("partition key: %w", err)
	}
	def := table.PrimaryKeyDefinition{PartitionKey: pk}
	if sort != nil {
		sk, err := keyDef(*sort)
		if err != nil {
			return table.PrimaryKeyDefinition{}, fmt.Errorf("sort key: %w", err)
		}
		def.SortKey = sk
	}
	return def, nil
}

func keyDef(k KeyDef) (table.KeyDef, error) {
	if k.Name == "" {
		return table.KeyDef{}, errors.New("name is required")
	}
	kind := table.KeyKind(k.Kind)
	if !kind.Valid() {
		return table.KeyDef{}, fmt.Errorf("%s: kind must be S, N or B, got %q", k.Name, k.Kind)
	}
	return table.KeyDef{Name: k.Name, Kind: kind}, nil
}

// Registry returns a registry with one binding per entity declared in the schema.
// Tables without entities are registered under the table name.
func (s *Schema) Registry() (*Registry, error) {
	reg := NewRegistry()
	for _, t := range s.Tables {
		def, err := t.Definition()
		if err != nil {
			return nil, err
		}
		if len(t.Entities) == 0 {
			if err := reg.Add(Binding{Name: t.Name, Table: def}); err != nil {
				return nil, err
			}
			continue
		}
		for _, e := range t.Entities {
			if err := reg.Add(Binding{Name: e.Type, Table: def}); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

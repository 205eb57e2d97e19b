// Package schema describes which tables exist and which entities live in them.
//
// A schema can come from a schema_dynamodb.yaml file (see Load) or from Go code
// registering entity types on a Registry. Both satisfy Provider, which is what the
// lifecycle manager in package ddl consumes.
package schema

// Schema is the root type containing all table definitions.
// This maps directly to the structure of schema_dynamodb.yaml files.
type Schema struct {
	Tables []Table `yaml:"tables" json:"tables"`
}

// Table describes a DynamoDB table structure with its entities.
type Table struct {
	Name         string   `yaml:"name" json:"name"`
	PartitionKey KeyDef   `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef  `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	GSIs         []GSI    `yaml:"gsis,omitempty" json:"gsis,omitempty"`
	Entities     []Entity `yaml:"entities,omitempty" json:"entities,omitempty"`
}

// KeyDef describes a key attribute definition.
type KeyDef struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // "S", "N", or "B"
}

// GSI describes a Global Secondary Index.
type GSI struct {
	Name         string  `yaml:"name" json:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	// Projection is ALL, KEYS_ONLY or INCLUDE. Empty uses the configured default.
	Projection string `yaml:"projection,omitempty" json:"projection,omitempty"`
}

// Entity describes an entity type stored in a table.
type Entity struct {
	Type                string `yaml:"type" json:"type"`
	PartitionKeyPattern string `yaml:"partitionKeyPattern,omitempty" json:"partitionKeyPattern,omitempty"`
	SortKeyPattern      string `yaml:"sortKeyPattern,omitempty" json:"sortKeyPattern,omitempty"`
}

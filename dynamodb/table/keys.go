package table

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef // zero value when the table has no sort key
}

func (k PrimaryKeyDefinition) HasSortKey() bool {
	return k.SortKey.Name != ""
}

// KeySchema returns the key schema in DynamoDB order, HASH first.
func (k PrimaryKeyDefinition) KeySchema() []types.KeySchemaElement {
	ks := []types.KeySchemaElement{{
		AttributeName: &k.PartitionKey.Name,
		KeyType:       types.KeyTypeHash,
	}}
	if k.HasSortKey() {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: &k.SortKey.Name,
			KeyType:       types.KeyTypeRange,
		})
	}
	return ks
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

func (k KeyKind) Valid() bool {
	switch k {
	case KeyKindS, KeyKindN, KeyKindB:
		return true
	}
	return false
}

// Values are the Go representation of the key attributes:
// string for S and N (numbers are kept in their dynamo string form), []byte for B.
type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB returns the key as a dynamo attribute map, suitable for GetItem/DeleteItem keys.
func (k PrimaryKey) DDB() (map[string]types.AttributeValue, error) {
	pk, err := keyAttributeValue(k.Definition.PartitionKey, k.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("partition key %q: %w", k.Definition.PartitionKey.Name, err)
	}
	if !k.Definition.HasSortKey() {
		return map[string]types.AttributeValue{
			k.Definition.PartitionKey.Name: pk,
		}, nil
	}
	if k.Values.SortKey == nil {
		return nil, fmt.Errorf("sort key %q is required but got nil", k.Definition.SortKey.Name)
	}
	sk, err := keyAttributeValue(k.Definition.SortKey, k.Values.SortKey)
	if err != nil {
		return nil, fmt.Errorf("sort key %q: %w", k.Definition.SortKey.Name, err)
	}
	return map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
		k.Definition.SortKey.Name:      sk,
	}, nil
}

// String is a canonical representation of the key, equal for equal keys.
// Used to correlate and deduplicate keys, since B values make PrimaryKey unhashable.
func (k PrimaryKey) String() string {
	var sb strings.Builder
	writeKeyPart(&sb, k.Definition.PartitionKey, k.Values.PartitionKey)
	if k.Definition.HasSortKey() {
		sb.WriteByte('|')
		writeKeyPart(&sb, k.Definition.SortKey, k.Values.SortKey)
	}
	return sb.String()
}

func writeKeyPart(sb *strings.Builder, def KeyDef, v any) {
	sb.WriteString(def.Name)
	sb.WriteByte('=')
	sb.WriteString(string(def.Kind))
	sb.WriteByte(':')
	switch val := v.(type) {
	case []byte:
		sb.WriteString(base64.StdEncoding.EncodeToString(val))
	case string:
		if def.Kind == KeyKindN {
			// same form as a Go number value
			sb.WriteString(val)
			return
		}
		sb.WriteString(fmt.Sprintf("%q", val))
	default:
		sb.WriteString(fmt.Sprintf("%v", val))
	}
}

func keyAttributeValue(def KeyDef, v any) (types.AttributeValue, error) {
	// numbers extracted from documents are kept as strings
	if s, ok := v.(string); ok && def.Kind == KeyKindN {
		return &types.AttributeValueMemberN{Value: s}, nil
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value of type %T: %w", v, err)
	}
	if err := attributeMatchesDefinition(def.Kind, av); err != nil {
		return nil, err
	}
	return av, nil
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}

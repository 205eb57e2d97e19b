package ddbstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Key encoding for BadgerDB that supports proper lexicographic ordering.
// Key format: [tableName][separator][partitionKey][separator][sortKey]
//
// For GSIs: [tableName][$gsi:][gsiName][separator][partitionKey][separator][sortKey]
//
// Table metadata lives under metaPrefix. DynamoDB table names are limited to
// [a-zA-Z0-9_.-] so neither the marker nor the metadata prefix can collide with data.

const (
	keySeparator byte = 0x00
	gsiMarker         = "$gsi:"
	metaPrefix        = "\x01tables\x00"
)

// Key type markers for encoding
const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

func encodeBadgerKey(tableName, gsiName string, pk table.PrimaryKey) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(indexPrefix(tableName, gsiName))

	pkBytes, err := encodeKeyValue(pk.Values.PartitionKey, pk.Definition.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(pkBytes)
	buf.WriteByte(keySeparator)

	if pk.Definition.HasSortKey() {
		skBytes, err := encodeKeyValue(pk.Values.SortKey, pk.Definition.SortKey.Kind)
		if err != nil {
			return nil, fmt.Errorf("encode sort key: %w", err)
		}
		buf.Write(skBytes)
	}
	return buf.Bytes(), nil
}

// indexPrefix returns the prefix of all keys in a table, or in one of its GSIs.
func indexPrefix(tableName, gsiName string) []byte {
	var buf bytes.Buffer
	buf.WriteString(tableName)
	if gsiName != "" {
		buf.WriteString(gsiMarker)
		buf.WriteString(gsiName)
	}
	buf.WriteByte(keySeparator)
	return buf.Bytes()
}

// tablePrefixes returns the prefixes covering every key of a table and its GSIs.
func tablePrefixes(def table.TableDefinition) [][]byte {
	prefixes := [][]byte{indexPrefix(def.Name, "")}
	for _, gsi := range def.GSIs {
		prefixes = append(prefixes, indexPrefix(def.Name, gsi.Name))
	}
	return prefixes
}

func metaKey(tableName string) []byte {
	return []byte(metaPrefix + tableName)
}

// encodeKeyValue encodes a key value with proper ordering based on key kind.
func encodeKeyValue(value any, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer

	switch kind {
	case table.KeyKindS:
		buf.WriteByte(keyTypeString)
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for S key, got %T", value)
		}
		buf.Write(escapeBytes([]byte(s)))

	case table.KeyKindN:
		buf.WriteByte(keyTypeNumber)
		var numStr string
		switch v := value.(type) {
		case string:
			numStr = v
		case float64:
			numStr = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			numStr = strconv.Itoa(v)
		case int64:
			numStr = strconv.FormatInt(v, 10)
		default:
			return nil, fmt.Errorf("expected number for N key, got %T", value)
		}
		encoded, err := encodeNumber(numStr)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)

	case table.KeyKindB:
		buf.WriteByte(keyTypeBinary)
		var b []byte
		switch v := value.(type) {
		case []byte:
			b = v
		case string:
			b = []byte(v)
		default:
			return nil, fmt.Errorf("expected binary for B key, got %T", value)
		}
		buf.Write(escapeBytes(b))

	default:
		return nil, fmt.Errorf("unsupported key kind: %s", kind)
	}

	return buf.Bytes(), nil
}

// encodeNumber encodes a number string so that byte order matches numeric order
// and every significant digit is kept, as DynamoDB keeps up to 38 of them.
//
// Zero is a single 0x80. Positive numbers are 0x81, the adjusted exponent as a
// big-endian uint16 offset by 0x8000, then the decimal digits without trailing
// zeros. Negative numbers are 0x7F followed by the same fields with every byte
// inverted and a closing 0xFF, so that more negative numbers sort first.
func encodeNumber(numStr string) ([]byte, error) {
	d, err := decimal.NewFromString(numStr)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", numStr, err)
	}
	if d.Sign() == 0 {
		return []byte{0x80}, nil
	}

	digits := new(big.Int).Abs(d.Coefficient()).String()
	trimmed := strings.TrimRight(digits, "0")
	exp := int(d.Exponent()) + len(digits) - 1

	buf := make([]byte, 0, 4+len(trimmed))
	buf = append(buf, 0x81)
	buf = binary.BigEndian.AppendUint16(buf, uint16(exp+0x8000))
	buf = append(buf, trimmed...)
	if d.Sign() > 0 {
		return buf, nil
	}
	buf[0] = 0x7F
	for i := 1; i < len(buf); i++ {
		buf[i] = ^buf[i]
	}
	return append(buf, 0xFF), nil
}

// escapeBytes escapes null bytes (0x00) in the input to preserve separator integrity.
// Uses 0x01 0x01 for literal 0x00, and 0x01 0x02 for literal 0x01.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.WriteByte(0x01)
			buf.WriteByte(0x01)
		case 0x01:
			buf.WriteByte(0x01)
			buf.WriteByte(0x02)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// SerializeItem serializes a DynamoDB item to bytes for storage.
func SerializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	serializable := make(map[string]serializableAV, len(item))
	for k, v := range item {
		sav, err := toSerializable(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		serializable[k] = sav
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(serializable); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeItem deserializes bytes back to a DynamoDB item.
func DeserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var serializable map[string]serializableAV
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&serializable); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}

	result := make(map[string]types.AttributeValue, len(serializable))
	for k, v := range serializable {
		av, err := fromSerializable(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		result[k] = av
	}
	return result, nil
}

// serializableAV is a gob-encodable representation of AttributeValue
type serializableAV struct {
	Type  string
	Value any
}

func init() {
	gob.Register(map[string]serializableAV{})
	gob.Register([]serializableAV{})
	gob.Register([]string{})
	gob.Register([][]byte{})
}

func toSerializable(av types.AttributeValue) (serializableAV, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return serializableAV{Type: "S", Value: v.Value}, nil
	case *types.AttributeValueMemberN:
		return serializableAV{Type: "N", Value: v.Value}, nil
	case *types.AttributeValueMemberB:
		return serializableAV{Type: "B", Value: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return serializableAV{Type: "BOOL", Value: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return serializableAV{Type: "NULL", Value: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return serializableAV{Type: "SS", Value: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return serializableAV{Type: "NS", Value: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return serializableAV{Type: "BS", Value: v.Value}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]serializableAV, len(v.Value))
		for k, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			m[k] = sav
		}
		return serializableAV{Type: "M", Value: m}, nil
	case *types.AttributeValueMemberL:
		l := make([]serializableAV, len(v.Value))
		for i, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			l[i] = sav
		}
		return serializableAV{Type: "L", Value: l}, nil
	default:
		return serializableAV{}, fmt.Errorf("unsupported attribute value type: %T", av)
	}
}

func fromSerializable(sav serializableAV) (types.AttributeValue, error) {
	switch sav.Type {
	case "S":
		return &types.AttributeValueMemberS{Value: sav.Value.(string)}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sav.Value.(string)}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sav.Value.([]byte)}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sav.Value.(bool)}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sav.Value.(bool)}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sav.Value.([]string)}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sav.Value.([]string)}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sav.Value.([][]byte)}, nil
	case "M":
		src := sav.Value.(map[string]serializableAV)
		m := make(map[string]types.AttributeValue, len(src))
		for k, v := range src {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "L":
		src := sav.Value.([]serializableAV)
		l := make([]types.AttributeValue, len(src))
		for i, v := range src {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return nil, fmt.Errorf("unsupported serializable type: %s", sav.Type)
	}
}

// storedTable is the persisted form of a table's metadata.
type storedTable struct {
	Definition    table.TableDefinition
	Created       int64
	ReadCapacity  int64
	WriteCapacity int64
	Provisioned   bool
}

func encodeTable(t *tableSchema) ([]byte, error) {
	st := storedTable{
		Definition: t.definition,
		Created:    t.created.UnixNano(),
	}
	if t.throughput != nil {
		st.Provisioned = true
		if t.throughput.ReadCapacityUnits != nil {
			st.ReadCapacity = *t.throughput.ReadCapacityUnits
		}
		if t.throughput.WriteCapacityUnits != nil {
			st.WriteCapacity = *t.throughput.WriteCapacityUnits
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("encode table %s: %w", t.definition.Name, err)
	}
	return buf.Bytes(), nil
}

func decodeTable(data []byte) (storedTable, error) {
	var st storedTable
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return storedTable{}, fmt.Errorf("decode table: %w", err)
	}
	return st, nil
}

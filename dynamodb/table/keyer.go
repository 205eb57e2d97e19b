package table

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Keyer computes a key attribute from a marshalled document.
type Keyer interface {
	Key(doc map[string]types.AttributeValue) (types.AttributeValue, error)
}

// FmtKeyer looks up `keys` in the document and passes them to the format string.
// The keys can only be of type string, number, or bytes.
// Keys support nesting by using dot notation, e.g. "meta.version".
//
// The format string should only use %s, not %d. This is because numbers are encoded as strings in dynamo.
// A key that is missing from the document is an error, so a partially filled
// template never resolves to a different item.
func FmtKeyer(fmt string, keys ...string) *keyFormat {
	return &keyFormat{fmt, keys}
}

type keyFormat struct {
	fmt  string
	keys []string
}

func (k keyFormat) Key(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	vals := make([]any, len(k.keys))
	for i, key := range k.keys {
		v, found := lookupPath(doc, key)
		if !found {
			return nil, fmt.Errorf("key %q not found", key)
		}
		switch attr := v.(type) {
		case *types.AttributeValueMemberS:
			vals[i] = attr.Value
		case *types.AttributeValueMemberN:
			vals[i] = attr.Value
		case *types.AttributeValueMemberB:
			vals[i] = string(attr.Value)
		default:
			return nil, fmt.Errorf("type for key %q is not string, number, or bytes, got %T", key, v)
		}
	}
	return &types.AttributeValueMemberS{Value: fmt.Sprintf(k.fmt, vals...)}, nil
}

func lookupPath(doc map[string]types.AttributeValue, path string) (types.AttributeValue, bool) {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false
		}
		cur = m.Value
	}
	return nil, false
}

func CopyKeyer(key string) *copyKey {
	return &copyKey{key}
}

type copyKey struct {
	key string
}

func (k copyKey) Key(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	v, found := lookupPath(doc, k.key)
	if !found {
		return nil, fmt.Errorf("key %q not found", k.key)
	}
	return v, nil
}

func ConstKeyer(val types.AttributeValue) *constKey {
	return &constKey{val}
}

type constKey struct {
	val types.AttributeValue
}

func (k constKey) Key(map[string]types.AttributeValue) (types.AttributeValue, error) {
	return k.val, nil
}

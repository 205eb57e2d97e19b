package ddbstore

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// project keeps the attributes named by a projection expression, e.g. "#0, #1.#2".
// Nested map paths keep the enclosing maps. A nil expression returns the item as is.
func project(expression *string, names map[string]string, item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	if expression == nil || item == nil {
		return item, nil
	}
	out := make(map[string]types.AttributeValue)
	for _, raw := range strings.Split(*expression, ",") {
		path, err := resolvePath(strings.TrimSpace(raw), names)
		if err != nil {
			return nil, validationError("Invalid ProjectionExpression: %s", err.Error())
		}
		v := lookupPath(item, path)
		if v == nil {
			continue
		}
		setPath(out, path, v)
	}
	return out, nil
}

func setPath(dst map[string]types.AttributeValue, path []string, v types.AttributeValue) {
	for _, name := range path[:len(path)-1] {
		m, ok := dst[name].(*types.AttributeValueMemberM)
		if !ok {
			m = &types.AttributeValueMemberM{Value: make(map[string]types.AttributeValue)}
			dst[name] = m
		}
		dst = m.Value
	}
	dst[path[len(path)-1]] = v
}

package ddbstore

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// The store understands the subset of condition expressions that the write paths
// produce: attribute_exists, attribute_not_exists, = and <> comparisons, combined
// with AND, OR, NOT and parentheses.

type conditionInput struct {
	expression *string
	names      map[string]string
	values     map[string]types.AttributeValue
}

// evalCondition reports whether the condition holds for item. A nil expression
// always holds, a nil item is a missing item.
func evalCondition(in conditionInput, item map[string]types.AttributeValue) (bool, error) {
	if in.expression == nil || strings.TrimSpace(*in.expression) == "" {
		return true, nil
	}
	tokens, err := tokenize(*in.expression)
	if err != nil {
		return false, validationError("Invalid ConditionExpression: %s", err.Error())
	}
	p := &condParser{tokens: tokens, in: in, item: item}
	ok, err := p.parseOr()
	if err != nil {
		return false, validationError("Invalid ConditionExpression: %s", err.Error())
	}
	if p.pos != len(p.tokens) {
		return false, validationError("Invalid ConditionExpression: unexpected token %q", p.tokens[p.pos])
	}
	return ok, nil
}

func tokenize(expr string) ([]string, error) {
	var tokens []string
	for i := 0; i < len(expr); {
		c := rune(expr[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')' || c == ',' || c == '=':
			tokens = append(tokens, string(c))
			i++
		case c == '<':
			if i+1 < len(expr) && expr[i+1] == '>' {
				tokens = append(tokens, "<>")
				i += 2
				continue
			}
			return nil, fmt.Errorf("unsupported operator at %d", i)
		case isOperandChar(c):
			start := i
			for i < len(expr) && isOperandChar(rune(expr[i])) {
				i++
			}
			tokens = append(tokens, expr[start:i])
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	return tokens, nil
}

func isOperandChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || strings.ContainsRune("_#:.-[]", c)
}

type condParser struct {
	tokens []string
	pos    int
	in     conditionInput
	item   map[string]types.AttributeValue
}

func (p *condParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *condParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

// Both sides are always parsed so syntax errors surface regardless of the data.
func (p *condParser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *condParser) parseAnd() (bool, error) {
	left, err := p.parseNot()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return false, err
		}
		left = left && right
	}
	return left, nil
}

func (p *condParser) parseNot() (bool, error) {
	if strings.EqualFold(p.peek(), "NOT") {
		p.next()
		v, err := p.parseNot()
		return !v, err
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (bool, error) {
	tok := p.next()
	switch {
	case tok == "":
		return false, fmt.Errorf("unexpected end of expression")
	case tok == "(":
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		return v, p.expect(")")
	case tok == "attribute_exists" || tok == "attribute_not_exists":
		if err := p.expect("("); err != nil {
			return false, err
		}
		av, err := p.operand(p.next())
		if err != nil {
			return false, err
		}
		if err := p.expect(")"); err != nil {
			return false, err
		}
		if tok == "attribute_exists" {
			return av != nil, nil
		}
		return av == nil, nil
	}

	left, err := p.operand(tok)
	if err != nil {
		return false, err
	}
	op := p.next()
	if op != "=" && op != "<>" {
		return false, fmt.Errorf("unsupported comparator %q", op)
	}
	right, err := p.operand(p.next())
	if err != nil {
		return false, err
	}
	// comparisons against missing attributes are false
	if left == nil || right == nil {
		return false, nil
	}
	if op == "=" {
		return attributeValuesEqual(left, right), nil
	}
	return !attributeValuesEqual(left, right), nil
}

// operand resolves a value placeholder or a document path. Missing paths are nil.
func (p *condParser) operand(tok string) (types.AttributeValue, error) {
	if strings.HasPrefix(tok, ":") {
		v, ok := p.in.values[tok]
		if !ok {
			return nil, fmt.Errorf("value %s is not defined in ExpressionAttributeValues", tok)
		}
		return v, nil
	}
	path, err := resolvePath(tok, p.in.names)
	if err != nil {
		return nil, err
	}
	return lookupPath(p.item, path), nil
}

// resolvePath splits a document path into attribute names, substituting #placeholders.
func resolvePath(raw string, names map[string]string) ([]string, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty attribute path")
	}
	if strings.ContainsAny(raw, "[]") {
		return nil, fmt.Errorf("list index paths are not supported: %s", raw)
	}
	parts := strings.Split(raw, ".")
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid attribute path %q", raw)
		}
		if strings.HasPrefix(part, "#") {
			name, ok := names[part]
			if !ok {
				return nil, fmt.Errorf("name %s is not defined in ExpressionAttributeNames", part)
			}
			parts[i] = name
		}
	}
	return parts, nil
}

func lookupPath(item map[string]types.AttributeValue, path []string) types.AttributeValue {
	var cur types.AttributeValue = &types.AttributeValueMemberM{Value: item}
	for _, name := range path {
		m, ok := cur.(*types.AttributeValueMemberM)
		if !ok {
			return nil
		}
		cur, ok = m.Value[name]
		if !ok {
			return nil
		}
	}
	return cur
}

func attributeValuesEqual(a, b types.AttributeValue) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return av.Value == bv.Value
		}
		return false
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			if av.Value == bv.Value {
				return true
			}
			af, aerr := strconv.ParseFloat(av.Value, 64)
			bf, berr := strconv.ParseFloat(bv.Value, 64)
			return aerr == nil && berr == nil && af == bf
		}
		return false
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Equal(av.Value, bv.Value)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

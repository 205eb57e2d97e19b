package schema

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/acksell/ddbpersist/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrUnknownEntity is returned when an entity or Go type has no binding.
var ErrUnknownEntity = errors.New("schema: entity not registered")

// Provider hands out table definitions for registered entities.
type Provider interface {
	// Entities lists the registered entity names in registration order.
	Entities() []string
	// Describe returns the table definition of the entity.
	Describe(entity string) (table.TableDefinition, error)
}

// Binding ties an entity to its table, and knows how to turn values of the entity
// into dynamo documents and keys.
type Binding struct {
	Name string
	// Type is the struct type of the entity. Nil for bindings loaded from schema files.
	Type  reflect.Type
	Table table.TableDefinition
	// Index computes the table key from other attributes. When nil the key attributes
	// are expected on the marshalled document as is.
	Index     *table.PrimaryIndexDefinition
	Secondary []table.SecondaryIndexDefinition
}

// Marshal converts v to a document, adding any key attributes computed by keyers.
//
// Secondary index keys that can not be computed are left out, which keeps the
// document out of that (sparse) index.
func (b *Binding) Marshal(v any) (map[string]types.AttributeValue, error) {
	if err := b.checkType(v); err != nil {
		return nil, err
	}
	doc, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", b.Name, err)
	}
	if b.Index != nil {
		pk, err := b.Index.PrimaryKey(doc)
		if err != nil {
			return nil, fmt.Errorf("%s primary key: %w", b.Name, err)
		}
		if err := mergeKey(doc, pk); err != nil {
			return nil, fmt.Errorf("%s primary key: %w", b.Name, err)
		}
	}
	for i := range b.Secondary {
		pk, err := b.Secondary[i].PrimaryKey(doc)
		if err != nil {
			continue
		}
		if err := mergeKey(doc, pk); err != nil {
			return nil, fmt.Errorf("%s index %s key: %w", b.Name, b.Secondary[i].GSI.Name, err)
		}
	}
	return doc, nil
}

func mergeKey(doc map[string]types.AttributeValue, pk table.PrimaryKey) error {
	key, err := pk.DDB()
	if err != nil {
		return err
	}
	for k, v := range key {
		doc[k] = v
	}
	return nil
}

// PrimaryKey extracts the table key from a document produced by Marshal.
func (b *Binding) PrimaryKey(doc map[string]types.AttributeValue) (table.PrimaryKey, error) {
	pk, err := b.Table.ExtractPrimaryKey(doc)
	if err != nil {
		return table.PrimaryKey{}, fmt.Errorf("%s: %w", b.Name, err)
	}
	return pk, nil
}

// Key marshals v and returns its table key.
func (b *Binding) Key(v any) (table.PrimaryKey, error) {
	doc, err := b.Marshal(v)
	if err != nil {
		return table.PrimaryKey{}, err
	}
	return b.PrimaryKey(doc)
}

// Unmarshal hydrates a new *T from item, where T is the bound type.
func (b *Binding) Unmarshal(item map[string]types.AttributeValue) (any, error) {
	if b.Type == nil {
		return nil, fmt.Errorf("%s has no Go type to unmarshal into", b.Name)
	}
	ptr := reflect.New(b.Type)
	if err := attributevalue.UnmarshalMap(item, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", b.Name, err)
	}
	return ptr.Interface(), nil
}

func (b *Binding) checkType(v any) error {
	if rv := reflect.ValueOf(v); !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return fmt.Errorf("%s: entity is nil", b.Name)
	}
	if b.Type == nil {
		return nil
	}
	t, err := structType(v)
	if err != nil {
		return err
	}
	if t != b.Type {
		return fmt.Errorf("binding %s is for %s, got %s", b.Name, b.Type, t)
	}
	return nil
}

// Registry is the explicit list of entities the application persists.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]*Binding
	byType map[reflect.Type]*Binding
}

var _ Provider = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Binding),
		byType: make(map[reflect.Type]*Binding),
	}
}

// BindOption configures a binding created by Register.
type BindOption func(*Binding) error

// WithName overrides the entity name, which defaults to the Go type name.
func WithName(name string) BindOption {
	return func(b *Binding) error {
		b.Name = name
		return nil
	}
}

// WithKeyers computes the table key of the entity with keyers instead of reading
// it from the marshalled struct. sort may be nil for tables without a sort key.
func WithKeyers(part, sort table.Keyer) BindOption {
	return func(b *Binding) error {
		b.Index = &table.PrimaryIndexDefinition{
			Table:          b.Table,
			PartitionKeyer: part,
			SortKeyer:      sort,
		}
		return nil
	}
}

// WithGSIKeyers computes the key attributes of the named GSI with keyers.
func WithGSIKeyers(gsi string, part, sort table.Keyer) BindOption {
	return func(b *Binding) error {
		def, ok := b.Table.GSI(gsi)
		if !ok {
			return fmt.Errorf("table %s has no gsi %q", b.Table.Name, gsi)
		}
		b.Secondary = append(b.Secondary, table.SecondaryIndexDefinition{
			GSI:            def,
			PartitionKeyer: part,
			SortKeyer:      sort,
		})
		return nil
	}
}

// Register binds the Go type of entity to the table. entity is typically the zero
// value of a struct, or a pointer to one.
func (r *Registry) Register(entity any, def table.TableDefinition, opts ...BindOption) error {
	t, err := structType(entity)
	if err != nil {
		return err
	}
	b := Binding{
		Name:  t.String(),
		Type:  t,
		Table: def,
	}
	for _, opt := range opts {
		if err := opt(&b); err != nil {
			return fmt.Errorf("register %s: %w", t, err)
		}
	}
	return r.Add(b)
}

// MustRegister is Register that panics, for package level registration.
func (r *Registry) MustRegister(entity any, def table.TableDefinition, opts ...BindOption) {
	if err := r.Register(entity, def, opts...); err != nil {
		panic(err)
	}
}

// Add adds a binding. Names and Go types must be unique.
func (r *Registry) Add(b Binding) error {
	if b.Name == "" {
		return errors.New("binding name is required")
	}
	if b.Table.Name == "" {
		return fmt.Errorf("binding %s: table name is required", b.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[b.Name]; ok {
		return fmt.Errorf("entity %s already registered", b.Name)
	}
	if b.Type != nil {
		if existing, ok := r.byType[b.Type]; ok {
			return fmt.Errorf("type %s already registered as %s", b.Type, existing.Name)
		}
	}
	bb := b
	r.byName[b.Name] = &bb
	if b.Type != nil {
		r.byType[b.Type] = &bb
	}
	r.order = append(r.order, b.Name)
	return nil
}

func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Describe(entity string) (table.TableDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byName[entity]
	if !ok {
		return table.TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return b.Table, nil
}

// Lookup returns the binding for the Go type of v.
func (r *Registry) Lookup(v any) (*Binding, error) {
	t, err := structType(v)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, t)
	}
	return b, nil
}

// Tables returns the distinct table definitions in registration order.
func (r *Registry) Tables() []table.TableDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []table.TableDefinition
	seen := make(map[string]bool)
	for _, name := range r.order {
		def := r.byName[name].Table
		if seen[def.Name] {
			continue
		}
		seen[def.Name] = true
		defs = append(defs, def)
	}
	return defs
}

func structType(v any) (reflect.Type, error) {
	if v == nil {
		return nil, errors.New("entity is nil")
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must be a struct or pointer to struct, got %s", reflect.TypeOf(v))
	}
	return t, nil
}

// Package persist maps registered entities onto DynamoDB writes and reads:
// atomic transaction groups, best effort batches, ordered batch loads and
// single item CRUD.
package persist

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/acksell/ddbpersist/dynamodb/ddbsdk"
	"github.com/acksell/ddbpersist/dynamodb/schema"
	"github.com/acksell/ddbpersist/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/acksell/ddbpersist/dynamodb/persist"

// DefaultBatchRetries is the number of BatchSave retry rounds for unprocessed items.
const DefaultBatchRetries = 8

// ErrAlreadyExists is returned by Create when an item with the same key exists.
var ErrAlreadyExists = errors.New("item already exists")

// Resolver finds the binding of an entity. *schema.Registry is a Resolver.
type Resolver interface {
	Lookup(v any) (*schema.Binding, error)
}

// Template persists registered entities through a ddbsdk client.
type Template struct {
	client   ddbsdk.IO
	resolver Resolver
	logger   *zap.Logger
	tracer   trace.Tracer

	batchOpts  []ddbsdk.BatchOption
	lookupOpts []ddbsdk.GetOption
}

type Option func(*Template)

func WithLogger(l *zap.Logger) Option {
	return func(t *Template) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithBatchOptions replaces the options of the batches BatchSave runs.
// The default retries DefaultBatchRetries times with ddbsdk.DefaultBackoff.
func WithBatchOptions(opts ...ddbsdk.BatchOption) Option {
	return func(t *Template) {
		t.batchOpts = opts
	}
}

// WithLookupOptions sets the options of the getters used by the load operations.
func WithLookupOptions(opts ...ddbsdk.GetOption) Option {
	return func(t *Template) {
		t.lookupOpts = opts
	}
}

func New(client ddbsdk.IO, resolver Resolver, opts ...Option) *Template {
	t := &Template{
		client:    client,
		resolver:  resolver,
		logger:    zap.NewNop(),
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
		batchOpts: []ddbsdk.BatchOption{ddbsdk.WithMaxRetries(DefaultBatchRetries)},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Template) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// validate calls IsValid when entity, or a pointer to a copy of it, is a
// ddbsdk.DynamoEntity. Values whose IsValid has a pointer receiver are checked too.
func validate(entity any) error {
	e, ok := entity.(ddbsdk.DynamoEntity)
	if !ok {
		rv := reflect.ValueOf(entity)
		if !rv.IsValid() || rv.Kind() == reflect.Pointer {
			return nil
		}
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		if e, ok = ptr.Interface().(ddbsdk.DynamoEntity); !ok {
			return nil
		}
	}
	if err := e.IsValid(); err != nil {
		return fmt.Errorf("invalid entity %T: %w", entity, err)
	}
	return nil
}

// document resolves the binding of entity and marshals it.
func (t *Template) document(entity any) (*schema.Binding, map[string]types.AttributeValue, table.PrimaryKey, error) {
	if err := validate(entity); err != nil {
		return nil, nil, table.PrimaryKey{}, err
	}
	b, err := t.resolver.Lookup(entity)
	if err != nil {
		return nil, nil, table.PrimaryKey{}, err
	}
	doc, err := b.Marshal(entity)
	if err != nil {
		return nil, nil, table.PrimaryKey{}, err
	}
	pk, err := b.PrimaryKey(doc)
	if err != nil {
		return nil, nil, table.PrimaryKey{}, err
	}
	return b, doc, pk, nil
}

// key resolves the binding of entity and extracts its primary key.
func (t *Template) key(entity any) (*schema.Binding, table.PrimaryKey, error) {
	b, err := t.resolver.Lookup(entity)
	if err != nil {
		return nil, table.PrimaryKey{}, err
	}
	pk, err := b.Key(entity)
	if err != nil {
		return nil, table.PrimaryKey{}, err
	}
	return b, pk, nil
}

// Save upserts a single entity.
func (t *Template) Save(ctx context.Context, entity any) error {
	b, doc, pk, err := t.document(entity)
	if err != nil {
		return err
	}
	return t.client.PutItem(ctx, ddbsdk.NewPut(b.Table, pk, doc))
}

// Create writes entity only if no item with its key exists, and returns
// ErrAlreadyExists otherwise.
func (t *Template) Create(ctx context.Context, entity any) error {
	b, doc, pk, err := t.document(entity)
	if err != nil {
		return err
	}
	err = t.client.PutItem(ctx, ddbsdk.NewCreate(b.Table, pk, doc))
	if ddbsdk.IsConditionFailed(err) {
		return fmt.Errorf("%w: %s %s", ErrAlreadyExists, b.Table.Name, pk)
	}
	return err
}

// Delete removes the item with the key of entity. Deleting a missing item is not an error.
func (t *Template) Delete(ctx context.Context, entity any) error {
	b, pk, err := t.key(entity)
	if err != nil {
		return err
	}
	return t.client.DeleteItem(ctx, ddbsdk.NewDelete(b.Table, pk))
}

// Load reads the item with the key of dst into dst, which must be a pointer to a
// registered struct. It reports false and leaves dst untouched when there is no item.
func (t *Template) Load(ctx context.Context, dst any) (bool, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return false, fmt.Errorf("load needs a non-nil pointer to a struct, got %T", dst)
	}
	b, pk, err := t.key(dst)
	if err != nil {
		return false, err
	}
	item, err := t.client.NewLookup(t.lookupOpts...).GetItem(ctx, ddbsdk.GetItemRequest{Table: b.Table, Key: pk})
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}
	loaded, err := b.Unmarshal(item)
	if err != nil {
		return false, err
	}
	rv.Elem().Set(reflect.ValueOf(loaded).Elem())
	return true, nil
}

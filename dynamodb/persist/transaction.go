package persist

import (
	"context"
	"fmt"

	"github.com/acksell/ddbpersist/dynamodb/ddbsdk"
	"github.com/acksell/ddbpersist/dynamodb/schema"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TransactionWrite applies the group atomically: a Put for every entity to update,
// then a Delete for every entity to delete, in one transaction.
//
// Two entities with the same table and key fail with a *ddbsdk.TransactionConflictError,
// as does contention with a concurrent transaction. Groups above
// ddbsdk.MaxTransactActions fail with a *ddbsdk.TransactionTooLargeError. In both
// cases nothing is written. An empty group makes no call.
func (t *Template) TransactionWrite(ctx context.Context, group TransactionGroup) (err error) {
	ctx, span := t.startSpan(ctx, "persist.TransactionWrite",
		attribute.Int("persist.updates", len(group.toUpdate)),
		attribute.Int("persist.deletes", len(group.toDelete)))
	defer func() { endSpan(span, err) }()

	if group.Empty() {
		return nil
	}
	if n := group.Len(); n > ddbsdk.MaxTransactActions {
		return &ddbsdk.TransactionTooLargeError{Actions: n, Limit: ddbsdk.MaxTransactActions}
	}

	actions, err := t.compile(group)
	if err != nil {
		return err
	}
	tx := t.client.NewTx()
	for _, a := range actions {
		// errors are returned again by Commit
		_ = tx.AddAction(a)
	}
	t.logger.Debug("committing transaction",
		zap.Int("updates", len(group.toUpdate)),
		zap.Int("deletes", len(group.toDelete)))
	return tx.Commit(ctx)
}

// compile turns the group into actions, updates first, each in input order.
func (t *Template) compile(group TransactionGroup) ([]ddbsdk.Action, error) {
	actions := make([]ddbsdk.Action, 0, group.Len())
	for i, entity := range group.toUpdate {
		b, doc, pk, err := t.document(entity)
		if err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		actions = append(actions, ddbsdk.NewPut(b.Table, pk, doc))
	}
	for i, entity := range group.toDelete {
		b, pk, err := t.key(entity)
		if err != nil {
			return nil, fmt.Errorf("delete %d: %w", i, err)
		}
		actions = append(actions, ddbsdk.NewDelete(b.Table, pk))
	}
	return actions, nil
}

// BatchSaveWithTransaction upserts all entities atomically. It is TransactionWrite
// with a group of updates only.
func (t *Template) BatchSaveWithTransaction(ctx context.Context, entities ...any) error {
	return t.TransactionWrite(ctx, NewTransactionGroup(entities, nil))
}

// TransactionLoad reads the items with the keys of the templates. The result has one
// entry per template, in order: a new pointer to the entity type, or nil when there
// is no item. Zero templates make no call.
//
// Reads go through BatchGetItem, which is not isolated across items. Use
// TransactionLoadIsolated for a serializable read.
func (t *Template) TransactionLoad(ctx context.Context, templates ...any) (out []any, err error) {
	ctx, span := t.startSpan(ctx, "persist.TransactionLoad", attribute.Int("persist.templates", len(templates)))
	defer func() { endSpan(span, err) }()

	return t.load(ctx, templates, func(g ddbsdk.Getter, reqs []ddbsdk.GetItemRequest) ([]ddbsdk.Item, error) {
		return g.GetItemsBatch(ctx, reqs...)
	})
}

// TransactionLoadIsolated is TransactionLoad through TransactGetItems: the items are
// read at one point in time. At most ddbsdk.MaxTransactActions templates.
func (t *Template) TransactionLoadIsolated(ctx context.Context, templates ...any) (out []any, err error) {
	ctx, span := t.startSpan(ctx, "persist.TransactionLoadIsolated", attribute.Int("persist.templates", len(templates)))
	defer func() { endSpan(span, err) }()

	return t.load(ctx, templates, func(g ddbsdk.Getter, reqs []ddbsdk.GetItemRequest) ([]ddbsdk.Item, error) {
		return g.GetItemsTx(ctx, reqs...)
	})
}

type getFunc func(ddbsdk.Getter, []ddbsdk.GetItemRequest) ([]ddbsdk.Item, error)

func (t *Template) load(ctx context.Context, templates []any, get getFunc) ([]any, error) {
	if len(templates) == 0 {
		return []any{}, nil
	}
	bindings := make([]*schema.Binding, len(templates))
	reqs := make([]ddbsdk.GetItemRequest, len(templates))
	for i, tpl := range templates {
		b, pk, err := t.key(tpl)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		bindings[i] = b
		reqs[i] = ddbsdk.GetItemRequest{Table: b.Table, Key: pk}
	}

	items, err := get(t.client.NewLookup(t.lookupOpts...), reqs)
	if err != nil {
		return nil, err
	}
	if len(items) != len(templates) {
		return nil, fmt.Errorf("lookup returned %d results for %d templates", len(items), len(templates))
	}

	out := make([]any, len(templates))
	for i, item := range items {
		if item == nil {
			continue
		}
		v, err := bindings[i].Unmarshal(item)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

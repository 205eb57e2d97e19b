package persist

import (
	"context"
	"fmt"

	"github.com/acksell/ddbpersist/dynamodb/ddbsdk"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BatchResult reports what BatchSave could not write.
type BatchResult struct {
	// Unprocessed are the entities still unwritten when retries ran out, in input order.
	Unprocessed []any
	// Retries is the number of rounds after the first.
	Retries int
}

func (r BatchResult) Done() bool {
	return len(r.Unprocessed) == 0
}

// Err is nil when every entity was written.
func (r BatchResult) Err() error {
	if r.Done() {
		return nil
	}
	return fmt.Errorf("batch save incomplete: %d entities unprocessed after %d retries", len(r.Unprocessed), r.Retries)
}

// BatchSave upserts entities with BatchWriteItem. It is not atomic: each entity is
// written or not on its own. Items the store leaves unprocessed are retried with
// backoff, and whatever is left when retries run out is listed in the result.
// A partial write is not an error.
//
// Entities are checked and marshalled before any call, and two entities with the
// same table and key are rejected.
func (t *Template) BatchSave(ctx context.Context, entities ...any) (res BatchResult, err error) {
	ctx, span := t.startSpan(ctx, "persist.BatchSave", attribute.Int("persist.entities", len(entities)))
	defer func() {
		span.SetAttributes(attribute.Int("persist.unprocessed", len(res.Unprocessed)))
		endSpan(span, err)
	}()

	if len(entities) == 0 {
		return BatchResult{}, nil
	}

	owners := make(map[ddbsdk.BatchAction]int, len(entities))
	actions := make([]ddbsdk.BatchAction, 0, len(entities))
	for i, entity := range entities {
		b, doc, pk, err := t.document(entity)
		if err != nil {
			return BatchResult{}, fmt.Errorf("entity %d: %w", i, err)
		}
		put := ddbsdk.NewPut(b.Table, pk, doc)
		owners[put] = i
		actions = append(actions, put)
	}

	batch := t.client.NewBatch(t.batchOpts...)
	if err := batch.AddAction(actions...); err != nil {
		return BatchResult{}, err
	}
	out, err := batch.ExecAndRetry(ctx)
	res = BatchResult{Retries: out.Retries}
	for _, a := range out.UnprocessedActions {
		if i, ok := owners[a]; ok {
			res.Unprocessed = append(res.Unprocessed, entities[i])
		}
	}
	if err != nil {
		return res, err
	}
	if !res.Done() {
		t.logger.Warn("batch save left entities unprocessed",
			zap.Int("entities", len(entities)),
			zap.Int("unprocessed", len(res.Unprocessed)),
			zap.Int("retries", res.Retries))
	}
	return res, nil
}

package persist

import "slices"

// TransactionGroup is the set of entities written by one atomic transaction:
// entities to upsert and entities to delete. It is immutable, build it with
// NewTransactionGroup or a Builder.
//
// The entities can be of any registered type, across tables. No two of them may
// share a table and primary key.
type TransactionGroup struct {
	toUpdate []any
	toDelete []any
}

// NewTransactionGroup copies the given slices. Either may be nil.
func NewTransactionGroup(toUpdate, toDelete []any) TransactionGroup {
	return TransactionGroup{
		toUpdate: slices.Clone(toUpdate),
		toDelete: slices.Clone(toDelete),
	}
}

// ToUpdate returns a copy of the entities to upsert, in order.
func (g TransactionGroup) ToUpdate() []any {
	return slices.Clone(g.toUpdate)
}

// ToDelete returns a copy of the entities to delete, in order.
func (g TransactionGroup) ToDelete() []any {
	return slices.Clone(g.toDelete)
}

// Len is the number of actions the group compiles to.
func (g TransactionGroup) Len() int {
	return len(g.toUpdate) + len(g.toDelete)
}

func (g TransactionGroup) Empty() bool {
	return g.Len() == 0
}

// Builder accumulates a TransactionGroup.
//
//	group := persist.NewBuilder().
//	    WithUpdate(order, invoice).
//	    WithDelete(cart).
//	    Build()
type Builder struct {
	toUpdate []any
	toDelete []any
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithUpdate(entities ...any) *Builder {
	b.toUpdate = append(b.toUpdate, entities...)
	return b
}

func (b *Builder) WithDelete(entities ...any) *Builder {
	b.toDelete = append(b.toDelete, entities...)
	return b
}

// Build returns the group. The builder can keep being used, later calls do not
// affect groups already built.
func (b *Builder) Build() TransactionGroup {
	return NewTransactionGroup(b.toUpdate, b.toDelete)
}

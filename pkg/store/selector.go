package store

import (
	"mutdb/pkg/columnar"
	"mutdb/pkg/index"
	"mutdb/pkg/types"
)

// Selector reads the store under the shared lock. The View is valid only for
// the duration of the call and must not be retained or written through.
type Selector[T Row] interface {
	Select(v *View[T]) error
}

type SelectorFunc[T Row] func(v *View[T]) error

func (f SelectorFunc[T]) Select(v *View[T]) error {
	return f(v)
}

// View is the read access handed to a Selector.
type View[T Row] struct {
	table Table[T]
	ix    *index.Index
}

func (v *View[T]) Table() Table[T] {
	return v.table
}

func (v *View[T]) Index() *index.Index {
	return v.ix
}

// Size returns the number of physical rows, deleted ones included.
func (v *View[T]) Size() int {
	return v.table.Size()
}

// Get returns the newest live row of id.
func (v *View[T]) Get(id types.RowID) (T, bool) {
	offs := v.ix.Lookup(id)
	if len(offs) == 0 {
		var zero T
		return zero, false
	}
	return v.table.Row(offs[len(offs)-1]), true
}

// Scan calls fn for every row matching all preds, in physical order, until fn
// returns false. Combine with LiveOnly to skip soft-deleted rows.
func (v *View[T]) Scan(preds []columnar.Predicate, fn func(pos types.Offset, row T) bool) error {
	return v.table.Select(preds, func(pos int) bool {
		return fn(pos, v.table.Row(pos))
	})
}

// LiveOnly matches rows that are not soft-deleted.
func LiveOnly() columnar.Predicate {
	return columnar.ByteIn(types.DeletedColumn, types.Live)
}

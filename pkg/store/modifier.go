package store

import (
	"mutdb/pkg/delta"
	"mutdb/pkg/index"
	"mutdb/pkg/types"
)

// Modifier stages a mutation into d. It reads ix but never changes it: every
// modifier of one Update sees the index as it was when the call started, so a
// row added by one modifier is invisible to the next.
type Modifier[T Row] interface {
	Modify(ix *index.Index, d *delta.Delta[T])
}

type ModifierFunc[T Row] func(ix *index.Index, d *delta.Delta[T])

func (f ModifierFunc[T]) Modify(ix *index.Index, d *delta.Delta[T]) {
	f(ix, d)
}

// Deleter soft-deletes every live row of the given ids. Unknown ids are
// ignored.
type Deleter[T Row] struct {
	IDs []types.RowID
}

func Delete[T Row](ids ...types.RowID) Deleter[T] {
	return Deleter[T]{IDs: ids}
}

func (m Deleter[T]) Modify(ix *index.Index, d *delta.Delta[T]) {
	for _, id := range m.IDs {
		d.DeleteOffsets(ix.Lookup(id)...)
	}
}

// Updater replaces rows by id: the live rows of each row's id are deleted and
// the row is appended. Extra ids can be deleted in the same step.
type Updater[T Row] struct {
	Rows []T
	IDs  []types.RowID
}

func Upsert[T Row](rows ...T) Updater[T] {
	return Updater[T]{Rows: rows}
}

// Delete returns a copy of u that also deletes ids.
func (u Updater[T]) Delete(ids ...types.RowID) Updater[T] {
	u.IDs = append(u.IDs[:len(u.IDs):len(u.IDs)], ids...)
	return u
}

func (u Updater[T]) Modify(ix *index.Index, d *delta.Delta[T]) {
	for _, id := range u.IDs {
		d.DeleteOffsets(ix.Lookup(id)...)
	}
	for _, row := range u.Rows {
		d.DeleteOffsets(ix.Lookup(row.RowID())...)
	}
	d.AddRows(u.Rows...)
}

// Composite deletes the live rows of the listed ids and appends rows
// verbatim, without looking up their ids.
type Composite[T Row] struct {
	Remove []types.RowID
	Add    []T
}

func Modify[T Row](ids []types.RowID, rows []T) Composite[T] {
	return Composite[T]{Remove: ids, Add: rows}
}

func (c Composite[T]) Modify(ix *index.Index, d *delta.Delta[T]) {
	for _, id := range c.Remove {
		d.DeleteOffsets(ix.Lookup(id)...)
	}
	d.AddRows(c.Add...)
}

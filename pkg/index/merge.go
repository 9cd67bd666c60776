package index

import (
	"fmt"

	"mutdb/pkg/columnar"
	"mutdb/pkg/dberrors"
	"mutdb/pkg/delta"
	"mutdb/pkg/types"
)

// Appender is the write side of the columnar store used by Apply.
type Appender[T any] interface {
	AddAll(rows []T)
	Size() int
}

// Target bundles the store with the two managed columns. The column handles
// are resolved once when the owner is built.
type Target[T any] struct {
	Store   Appender[T]
	IDs     *columnar.StringColumn
	Deleted *columnar.ByteColumn
}

// Rebuild indexes every live row of the target. Rows already flagged as
// deleted are skipped.
func Rebuild[T any](tg Target[T]) *Index {
	ix := New()
	for pos := 0; pos < tg.Store.Size(); pos++ {
		if tg.Deleted.Data[pos] != types.Live {
			continue
		}
		ix.add(tg.IDs.Data[pos], pos)
	}
	return ix
}

// Validate reports whether every delete offset of d addresses an existing row.
func Validate[T any](tg Target[T], d delta.Delta[T]) error {
	size := tg.Store.Size()
	for _, off := range d.Delete {
		if off < 0 || off >= size {
			return fmt.Errorf("%w: delete offset %d out of range [0, %d)", dberrors.ErrInvalidArgument, off, size)
		}
	}
	return nil
}

// Apply merges d into the target and the index: deletions first, then
// additions. Appended rows are always stored live. On error nothing is
// modified.
func Apply[T any](tg Target[T], ix *Index, d delta.Delta[T]) error {
	if err := Validate(tg, d); err != nil {
		return err
	}

	for _, off := range d.Delete {
		tg.Deleted.Data[off] = types.Deleted
		ix.remove(tg.IDs.Data[off], off)
	}

	if len(d.Add) == 0 {
		return nil
	}

	first := tg.Store.Size()
	tg.Store.AddAll(d.Add)
	for pos := first; pos < tg.Store.Size(); pos++ {
		tg.Deleted.Data[pos] = types.Live
		ix.add(tg.IDs.Data[pos], pos)
	}

	return nil
}

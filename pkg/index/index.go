package index

import (
	"slices"

	"github.com/zhangyunhao116/skipmap"

	"mutdb/pkg/types"
)

type positions = skipmap.FuncMap[types.RowID, []types.Offset]

// Index maps a row id to the offsets of its live rows. Every listed offset
// refers to a row whose deleted flag is 0; an id with no live row is absent.
//
// The map is ordered by id so that Range is deterministic. Index is mutated
// only by Apply and Rebuild, under the owner's write lock.
type Index struct {
	m *positions
}

func New() *Index {
	return &Index{
		m: skipmap.NewFunc[types.RowID, []types.Offset](func(a, b types.RowID) bool {
			return a < b
		}),
	}
}

// Lookup returns a copy of the live offsets of id, or nil.
func (ix *Index) Lookup(id types.RowID) []types.Offset {
	offs, ok := ix.m.Load(id)
	if !ok {
		return nil
	}
	return slices.Clone(offs)
}

func (ix *Index) Has(id types.RowID) bool {
	_, ok := ix.m.Load(id)
	return ok
}

// Len returns the number of ids with at least one live row.
func (ix *Index) Len() int {
	return ix.m.Len()
}

// Range calls fn for each id in ascending order until fn returns false.
// The offsets slice must not be retained or modified.
func (ix *Index) Range(fn func(id types.RowID, offsets []types.Offset) bool) {
	ix.m.Range(fn)
}

func (ix *Index) add(id types.RowID, off types.Offset) {
	offs, _ := ix.m.Load(id)
	ix.m.Store(id, append(slices.Clip(offs), off))
}

func (ix *Index) remove(id types.RowID, off types.Offset) {
	offs, ok := ix.m.Load(id)
	if !ok {
		return
	}
	i := slices.Index(offs, off)
	if i < 0 {
		return
	}
	if len(offs) == 1 {
		ix.m.Delete(id)
		return
	}
	ix.m.Store(id, slices.Delete(slices.Clone(offs), i, i+1))
}

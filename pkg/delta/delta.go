package delta

import "mutdb/pkg/types"

// Delta is the unit of mutation: physical positions to soft-delete and rows to
// append, in that order. One Delta is produced per accepted update and is
// persisted only as a commit log record.
type Delta[T any] struct {
	Seq    types.SeqN
	Delete []types.Offset
	Add    []T

	staged map[types.Offset]struct{}
}

func New[T any]() *Delta[T] {
	return &Delta[T]{}
}

// DeleteOffsets stages positions for deletion. A position staged twice is
// recorded once.
func (d *Delta[T]) DeleteOffsets(offsets ...types.Offset) {
	if d.staged == nil {
		d.staged = make(map[types.Offset]struct{}, len(offsets))
		for _, off := range d.Delete {
			d.staged[off] = struct{}{}
		}
	}
	for _, off := range offsets {
		if _, ok := d.staged[off]; ok {
			continue
		}
		d.staged[off] = struct{}{}
		d.Delete = append(d.Delete, off)
	}
}

// AddRows stages rows for appending, preserving order.
func (d *Delta[T]) AddRows(rows ...T) {
	d.Add = append(d.Add, rows...)
}

func (d *Delta[T]) Empty() bool {
	return len(d.Delete) == 0 && len(d.Add) == 0
}

package store

import (
	"io"

	"mutdb/pkg/columnar"
	"mutdb/pkg/encoding/custom"
	"mutdb/pkg/types"
)

// Row is a record held by the store. Its id must match the value of the
// "id" column.
type Row interface {
	RowID() types.RowID
}

// Table is the column-oriented storage a Store mutates. *columnar.Table
// satisfies it.
type Table[T any] interface {
	AddAll(rows []T)
	Size() int
	Row(pos int) T

	Load(r io.Reader, parallelism int) error
	Save(w io.Writer) error

	ByteColumn(name string) (*columnar.ByteColumn, error)
	StringColumn(name string) (*columnar.StringColumn, error)
	Select(preds []columnar.Predicate, fn func(pos int) bool) error

	EncodeRow(row T) custom.Value
	DecodeRow(v custom.Value) (T, error)
}

var _ Table[struct{}] = (*columnar.Table[struct{}])(nil)

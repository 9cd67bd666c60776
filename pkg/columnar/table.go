package columnar

import (
	"fmt"
	"reflect"

	"mutdb/pkg/compression"
	"mutdb/pkg/encoding/custom"
)

type options struct {
	codec compression.Codec
}

type Option func(*options)

// WithCompression sets the codec used for column blocks written by Save.
func WithCompression(codec compression.Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// Table is an append-only, column-oriented in-memory table of rows of type T.
// It is not safe for concurrent mutation; callers provide their own locking.
type Table[T any] struct {
	schema  *Schema[T]
	columns []Column
	byName  map[string]Column
	size    int
	opts    options
}

func New[T any](opts ...Option) (*Table[T], error) {
	schema, err := NewSchema[T]()
	if err != nil {
		return nil, err
	}

	t := &Table[T]{
		schema:  schema,
		columns: schema.newColumns(),
		byName:  make(map[string]Column, len(schema.fields)),
	}
	for _, o := range opts {
		o(&t.opts)
	}
	for _, c := range t.columns {
		t.byName[c.Name()] = c
	}

	return t, nil
}

func (t *Table[T]) Schema() *Schema[T] {
	return t.schema
}

// AddAll appends rows at positions Size(), Size()+1, ...
func (t *Table[T]) AddAll(rows []T) {
	for _, row := range rows {
		rv := reflect.ValueOf(row)
		for i, f := range t.schema.fields {
			t.columns[i].appendField(rv.FieldByIndex(f.index))
		}
	}
	t.size += len(rows)
}

func (t *Table[T]) Size() int {
	return t.size
}

// Row materializes the row stored at pos.
func (t *Table[T]) Row(pos int) T {
	rv := reflect.New(t.schema.typ).Elem()
	for i, f := range t.schema.fields {
		t.columns[i].loadField(pos, rv.FieldByIndex(f.index))
	}
	return rv.Interface().(T)
}

func (t *Table[T]) Columns() []Column {
	return t.columns
}

func (t *Table[T]) Column(name string) (Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

func (t *Table[T]) ByteColumn(name string) (*ByteColumn, error) {
	return lookup[byte](t, name, KindByte)
}

func (t *Table[T]) StringColumn(name string) (*StringColumn, error) {
	return lookup[string](t, name, KindString)
}

func (t *Table[T]) Int64Column(name string) (*Int64Column, error) {
	return lookup[int64](t, name, KindInt64)
}

func (t *Table[T]) EncodeRow(row T) custom.Value {
	return t.schema.EncodeRow(row)
}

func (t *Table[T]) DecodeRow(v custom.Value) (T, error) {
	return t.schema.DecodeRow(v)
}

type columnSet interface {
	Column(name string) (Column, bool)
}

func lookup[E Elem](cols columnSet, name string, kind Kind) (*Vector[E], error) {
	c, ok := cols.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchColumn, name)
	}
	v, ok := c.(*Vector[E])
	if !ok || c.Kind() != kind {
		return nil, fmt.Errorf("%w: column %q is %s, want %s", ErrColumnKind, name, c.Kind(), kind)
	}
	return v, nil
}

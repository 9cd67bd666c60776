package columnar

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Kind is the physical type of a column.
type Kind uint8

const (
	KindByte Kind = iota + 1
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindByte:
		return "byte"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Column is one typed vector of the table. Values at the same position across
// all columns form a row.
type Column interface {
	Name() string
	Kind() Kind
	Len() int

	appendField(f reflect.Value)
	loadField(pos int, f reflect.Value)
	grow(n int)
	adopt(other Column)
	marshal() []byte
	unmarshal(data []byte, rows int) error
}

// Elem is the set of Go types a column can hold.
type Elem interface {
	byte | bool | int32 | int64 | float64 | string
}

// Vector is a column backed by a plain slice. Data is exposed for raw access
// by the owner of the table; positions are stable for the table's lifetime.
type Vector[E Elem] struct {
	name string
	kind Kind
	Data []E
}

type (
	ByteColumn    = Vector[byte]
	BoolColumn    = Vector[bool]
	Int32Column   = Vector[int32]
	Int64Column   = Vector[int64]
	Float64Column = Vector[float64]
	StringColumn  = Vector[string]
)

func (v *Vector[E]) Name() string { return v.name }
func (v *Vector[E]) Kind() Kind   { return v.kind }
func (v *Vector[E]) Len() int     { return len(v.Data) }

func (v *Vector[E]) Get(pos int) E { return v.Data[pos] }

func (v *Vector[E]) Set(pos int, e E) { v.Data[pos] = e }

func (v *Vector[E]) appendField(f reflect.Value) {
	var zero E
	v.Data = append(v.Data, f.Convert(reflect.TypeOf(zero)).Interface().(E))
}

func (v *Vector[E]) loadField(pos int, f reflect.Value) {
	f.Set(reflect.ValueOf(v.Data[pos]).Convert(f.Type()))
}

func (v *Vector[E]) grow(n int) {
	if n > len(v.Data) {
		v.Data = append(v.Data, make([]E, n-len(v.Data))...)
	}
}

func (v *Vector[E]) adopt(other Column) {
	v.Data = other.(*Vector[E]).Data
}

func (v *Vector[E]) marshal() []byte {
	switch data := any(v.Data).(type) {
	case []byte:
		return append([]byte(nil), data...)
	case []bool:
		out := make([]byte, len(data))
		for i, b := range data {
			if b {
				out[i] = 1
			}
		}
		return out
	case []int32:
		out := make([]byte, 0, 4*len(data))
		for _, x := range data {
			out = binary.LittleEndian.AppendUint32(out, uint32(x))
		}
		return out
	case []int64:
		out := make([]byte, 0, 8*len(data))
		for _, x := range data {
			out = binary.LittleEndian.AppendUint64(out, uint64(x))
		}
		return out
	case []float64:
		out := make([]byte, 0, 8*len(data))
		for _, x := range data {
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(x))
		}
		return out
	case []string:
		var out []byte
		for _, s := range data {
			out = binary.AppendUvarint(out, uint64(len(s)))
			out = append(out, s...)
		}
		return out
	}
	panic("columnar: unsupported vector type")
}

func (v *Vector[E]) unmarshal(data []byte, rows int) error {
	var decoded any
	switch v.kind {
	case KindByte:
		if len(data) != rows {
			return v.sizeErr(len(data), rows)
		}
		decoded = append([]byte(nil), data...)
	case KindBool:
		if len(data) != rows {
			return v.sizeErr(len(data), rows)
		}
		out := make([]bool, rows)
		for i := range out {
			out[i] = data[i] != 0
		}
		decoded = out
	case KindInt32:
		if len(data) != 4*rows {
			return v.sizeErr(len(data), 4*rows)
		}
		out := make([]int32, rows)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(data[4*i:]))
		}
		decoded = out
	case KindInt64:
		if len(data) != 8*rows {
			return v.sizeErr(len(data), 8*rows)
		}
		out := make([]int64, rows)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(data[8*i:]))
		}
		decoded = out
	case KindFloat64:
		if len(data) != 8*rows {
			return v.sizeErr(len(data), 8*rows)
		}
		out := make([]float64, rows)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
		}
		decoded = out
	case KindString:
		out := make([]string, rows)
		for i := range out {
			n, k := binary.Uvarint(data)
			if k <= 0 || uint64(len(data)-k) < n {
				return fmt.Errorf("%w: column %q: truncated string at row %d", ErrBadSnapshot, v.name, i)
			}
			out[i] = string(data[k : k+int(n)])
			data = data[k+int(n):]
		}
		if len(data) != 0 {
			return fmt.Errorf("%w: column %q: %d trailing bytes", ErrBadSnapshot, v.name, len(data))
		}
		decoded = out
	default:
		return fmt.Errorf("%w: column %q: unknown kind %d", ErrBadSnapshot, v.name, v.kind)
	}

	v.Data = decoded.([]E)
	return nil
}

func (v *Vector[E]) sizeErr(got, want int) error {
	return fmt.Errorf("%w: column %q: block has %d bytes, want %d", ErrBadSnapshot, v.name, got, want)
}

func newColumn(name string, kind Kind) Column {
	switch kind {
	case KindByte:
		return &ByteColumn{name: name, kind: kind}
	case KindBool:
		return &BoolColumn{name: name, kind: kind}
	case KindInt32:
		return &Int32Column{name: name, kind: kind}
	case KindInt64:
		return &Int64Column{name: name, kind: kind}
	case KindFloat64:
		return &Float64Column{name: name, kind: kind}
	case KindString:
		return &StringColumn{name: name, kind: kind}
	}
	return nil
}

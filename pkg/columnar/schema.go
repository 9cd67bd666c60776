package columnar

import (
	"fmt"
	"reflect"
	"strings"

	"mutdb/pkg/encoding/custom"
)

type field struct {
	name  string
	kind  Kind
	index []int
}

// Schema describes how a struct type T maps onto columns. It is resolved once
// from struct tags:
//
//	type Trade struct {
//		ID      string `col:"id"`
//		Deleted byte   `col:"deleted"`
//		Amount  int64  `col:"amount"`
//		Note    string `col:"-"` // not stored
//	}
//
// Untagged exported fields are stored under their lower-cased name.
type Schema[T any] struct {
	typ    reflect.Type
	fields []field
	byName map[string]int
}

func NewSchema[T any]() (*Schema[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrUnsupported, typ)
	}

	s := &Schema[T]{
		typ:    typ,
		byName: make(map[string]int),
	}
	for _, sf := range reflect.VisibleFields(typ) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		name, ok := sf.Tag.Lookup("col")
		if name == "-" {
			continue
		}
		if !ok || name == "" {
			name = strings.ToLower(sf.Name)
		}
		kind, err := kindOf(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", typ.Name(), sf.Name, err)
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q in %s", ErrUnsupported, name, typ)
		}
		s.byName[name] = len(s.fields)
		s.fields = append(s.fields, field{name: name, kind: kind, index: sf.Index})
	}
	if len(s.fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrUnsupported, typ)
	}

	return s, nil
}

func kindOf(t reflect.Type) (Kind, error) {
	switch t.Kind() {
	case reflect.Uint8:
		return KindByte, nil
	case reflect.Bool:
		return KindBool, nil
	case reflect.Int32:
		return KindInt32, nil
	case reflect.Int, reflect.Int64:
		return KindInt64, nil
	case reflect.Float64:
		return KindFloat64, nil
	case reflect.String:
		return KindString, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

// Names returns column names in declaration order.
func (s *Schema[T]) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// KindOf reports the kind of the named column.
func (s *Schema[T]) KindOf(name string) (Kind, bool) {
	i, ok := s.byName[name]
	if !ok {
		return 0, false
	}
	return s.fields[i].kind, true
}

func (s *Schema[T]) newColumns() []Column {
	cols := make([]Column, len(s.fields))
	for i, f := range s.fields {
		cols[i] = newColumn(f.name, f.kind)
	}
	return cols
}

// EncodeRow converts a row into a message whose field numbers are the
// 1-based column positions.
func (s *Schema[T]) EncodeRow(row T) custom.Value {
	rv := reflect.ValueOf(row)
	fields := make([]custom.Field, len(s.fields))
	for i, f := range s.fields {
		fv := rv.FieldByIndex(f.index)
		var v custom.Value
		switch f.kind {
		case KindByte:
			v = custom.Uint8(uint8(fv.Uint()))
		case KindBool:
			v = custom.Bool(fv.Bool())
		case KindInt32:
			v = custom.Int32(int32(fv.Int()))
		case KindInt64:
			v = custom.Int64(fv.Int())
		case KindFloat64:
			v = custom.Float64(fv.Float())
		case KindString:
			v = custom.String(fv.String())
		}
		fields[i] = custom.Field{Number: uint32(i + 1), Value: v}
	}
	return custom.Message(fields...)
}

// DecodeRow is the inverse of EncodeRow. Unknown field numbers are ignored so
// that a column dropped from T does not break older records.
func (s *Schema[T]) DecodeRow(v custom.Value) (T, error) {
	var row T
	if v.Type != custom.TypeMessage {
		return row, fmt.Errorf("%w: expected message, got type %d", ErrRowEncoding, v.Type)
	}

	rv := reflect.New(s.typ).Elem()
	for _, mf := range v.Message {
		i := int(mf.Number) - 1
		if i < 0 || i >= len(s.fields) {
			continue
		}
		f := s.fields[i]
		fv := rv.FieldByIndex(f.index)
		val := mf.Value
		switch {
		case f.kind == KindByte && val.Type == custom.TypeUint8:
			fv.SetUint(uint64(val.Uint8))
		case f.kind == KindBool && val.Type == custom.TypeBool:
			fv.SetBool(val.Bool)
		case f.kind == KindInt32 && val.Type == custom.TypeInt32:
			fv.SetInt(int64(val.Int32))
		case f.kind == KindInt64 && val.Type == custom.TypeInt64:
			fv.SetInt(val.Int64)
		case f.kind == KindFloat64 && val.Type == custom.TypeFloat64:
			fv.SetFloat(val.Float64)
		case f.kind == KindString && val.Type == custom.TypeString:
			fv.SetString(val.String)
		default:
			return row, fmt.Errorf("%w: column %q holds %s, record has type %d", ErrRowEncoding, f.name, f.kind, val.Type)
		}
	}

	return rv.Interface().(T), nil
}

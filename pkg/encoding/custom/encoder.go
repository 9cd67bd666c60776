package custom

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TypeID представляет тип данных
type TypeID uint8

const (
	TypeInt32 TypeID = iota + 1
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeString
	TypeMessage
	TypeList
	TypeUint8
)

// Value is a self-describing value of any supported type.
type Value struct {
	Type    TypeID
	Int32   int32
	Int64   int64
	Float32 float32
	Float64 float64
	Bool    bool
	Uint8   uint8
	String  string
	Message []Field
	List    []Value
}

// Field is a numbered member of a message.
type Field struct {
	Number uint32
	Value  Value
}

type EncodeError struct {
	Message string
}

func (e *EncodeError) Error() string {
	return e.Message
}

type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return e.Message
}

func Int32(v int32) Value     { return Value{Type: TypeInt32, Int32: v} }
func Int64(v int64) Value     { return Value{Type: TypeInt64, Int64: v} }
func Float32(v float32) Value { return Value{Type: TypeFloat32, Float32: v} }
func Float64(v float64) Value { return Value{Type: TypeFloat64, Float64: v} }
func Bool(v bool) Value       { return Value{Type: TypeBool, Bool: v} }
func Uint8(v uint8) Value     { return Value{Type: TypeUint8, Uint8: v} }
func String(v string) Value   { return Value{Type: TypeString, String: v} }

// List builds a list value. Empty lists are allowed.
func List(items ...Value) Value {
	return Value{Type: TypeList, List: items}
}

// Message builds a message value from fields.
func Message(fields ...Field) Value {
	return Value{Type: TypeMessage, Message: fields}
}

// Lookup returns the field with the given number of a message value.
func (v Value) Lookup(number uint32) (Value, bool) {
	for _, f := range v.Message {
		if f.Number == number {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Encode кодирует значение в бинарный формат
func Encode(value Value) ([]byte, error) {
	return Append(nil, value)
}

// Append encodes value and appends it to buf.
func Append(buf []byte, value Value) ([]byte, error) {
	buf = append(buf, byte(value.Type))

	switch value.Type {
	case TypeInt32:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(value.Int32))

	case TypeInt64:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(value.Int64))

	case TypeFloat32:
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(value.Float32))

	case TypeFloat64:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(value.Float64))

	case TypeBool:
		if value.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}

	case TypeUint8:
		buf = append(buf, value.Uint8)

	case TypeString:
		if len(value.String) > math.MaxUint32 {
			return nil, &EncodeError{Message: fmt.Sprintf("string too large: %d", len(value.String))}
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value.String)))
		buf = append(buf, value.String...)

	case TypeMessage:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value.Message)))
		for _, field := range value.Message {
			buf = binary.LittleEndian.AppendUint32(buf, field.Number)

			var err error
			if buf, err = Append(buf, field.Value); err != nil {
				return nil, err
			}
		}

	case TypeList:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(value.List)))
		for _, item := range value.List {
			var err error
			if buf, err = Append(buf, item); err != nil {
				return nil, err
			}
		}

	default:
		return nil, &EncodeError{Message: fmt.Sprintf("unknown type: %d", value.Type)}
	}

	return buf, nil
}

// Decode декодирует значение из бинарного формата.
// Возвращает значение и число прочитанных байт.
func Decode(data []byte) (Value, int, error) {
	if len(data) < 1 {
		return Value{}, 0, &DecodeError{Message: "insufficient data"}
	}

	valueType := TypeID(data[0])
	offset := 1

	switch valueType {
	case TypeInt32:
		if len(data[offset:]) < 4 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for int32"}
		}
		value := int32(binary.LittleEndian.Uint32(data[offset:]))
		return Int32(value), offset + 4, nil

	case TypeInt64:
		if len(data[offset:]) < 8 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for int64"}
		}
		value := int64(binary.LittleEndian.Uint64(data[offset:]))
		return Int64(value), offset + 8, nil

	case TypeFloat32:
		if len(data[offset:]) < 4 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for float32"}
		}
		return Float32(math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))), offset + 4, nil

	case TypeFloat64:
		if len(data[offset:]) < 8 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for float64"}
		}
		return Float64(math.Float64frombits(binary.LittleEndian.Uint64(data[offset:]))), offset + 8, nil

	case TypeBool:
		if len(data[offset:]) < 1 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for bool"}
		}
		return Bool(data[offset] != 0), offset + 1, nil

	case TypeUint8:
		if len(data[offset:]) < 1 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for uint8"}
		}
		return Uint8(data[offset]), offset + 1, nil

	case TypeString:
		if len(data[offset:]) < 4 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for string length"}
		}
		length := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		if len(data[offset:]) < length {
			return Value{}, 0, &DecodeError{Message: "insufficient data for string content"}
		}
		return String(string(data[offset : offset+length])), offset + length, nil

	case TypeMessage:
		if len(data[offset:]) < 4 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for message field count"}
		}
		fieldCount := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		if fieldCount > len(data[offset:]) {
			return Value{}, 0, &DecodeError{Message: fmt.Sprintf("field count %d exceeds payload", fieldCount)}
		}
		fields := make([]Field, 0, fieldCount)

		for i := 0; i < fieldCount; i++ {
			if len(data[offset:]) < 4 {
				return Value{}, 0, &DecodeError{Message: "insufficient data for field number"}
			}
			number := binary.LittleEndian.Uint32(data[offset:])
			offset += 4

			value, n, err := Decode(data[offset:])
			if err != nil {
				return Value{}, 0, err
			}
			fields = append(fields, Field{Number: number, Value: value})
			offset += n
		}
		return Message(fields...), offset, nil

	case TypeList:
		if len(data[offset:]) < 4 {
			return Value{}, 0, &DecodeError{Message: "insufficient data for list length"}
		}
		length := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		// every item takes at least its type byte
		if length > len(data[offset:]) {
			return Value{}, 0, &DecodeError{Message: fmt.Sprintf("list length %d exceeds payload", length)}
		}
		items := make([]Value, 0, length)

		for i := 0; i < length; i++ {
			value, n, err := Decode(data[offset:])
			if err != nil {
				return Value{}, 0, err
			}
			items = append(items, value)
			offset += n
		}
		return List(items...), offset, nil

	default:
		return Value{}, 0, &DecodeError{Message: fmt.Sprintf("unknown type: %d", valueType)}
	}
}

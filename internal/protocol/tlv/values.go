package tlv

import (
	"encoding/binary"
	"fmt"
	"math"
)

func U32(id uint16, v uint32) Field {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return Field{ID: id, Type: TypeU32, Value: buf}
}

func U64(id uint16, v uint64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return Field{ID: id, Type: TypeU64, Value: buf}
}

func I32(id uint16, v int32) Field {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))
	return Field{ID: id, Type: TypeI32, Value: buf}
}

func F64(id uint16, v float64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return Field{ID: id, Type: TypeF64, Value: buf}
}

func Bool(id uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

// Nested wraps an encoded field list as a bytes field.
func Nested(id uint16, fields []Field) Field {
	return Field{ID: id, Type: TypeBytes, Value: EncodeFields(fields)}
}

func (f Field) U32() (uint32, error) {
	if err := f.fixed(TypeU32, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(f.Value), nil
}

func (f Field) U64() (uint64, error) {
	if err := f.fixed(TypeU64, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func (f Field) I32() (int32, error) {
	if err := f.fixed(TypeI32, 4); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(f.Value)), nil
}

func (f Field) F64() (float64, error) {
	if err := f.fixed(TypeF64, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(f.Value)), nil
}

func (f Field) Bool() (bool, error) {
	if err := f.fixed(TypeBool, 1); err != nil {
		return false, err
	}
	return f.Value[0] != 0, nil
}

func (f Field) Text() (string, error) {
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

// Fields decodes a nested field list.
func (f Field) Fields() ([]Field, error) {
	if err := MustType(f, TypeBytes); err != nil {
		return nil, err
	}
	return DecodeFields(f.Value)
}

func (f Field) fixed(typ uint8, size int) error {
	if err := MustType(f, typ); err != nil {
		return err
	}
	if len(f.Value) != size {
		return fmt.Errorf("%w: field %d has %d bytes, want %d", ErrFieldLength, f.ID, len(f.Value), size)
	}
	return nil
}

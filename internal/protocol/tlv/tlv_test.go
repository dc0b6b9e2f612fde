package tlv

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeFieldsKeepsRepeatedIDsInOrder(t *testing.T) {
	in := []Field{
		String(4, "IL6"),
		F64(5, 0.5),
		String(4, "TNFa"),
		F64(5, math.Inf(1)),
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}},
	}
	out, err := DecodeFields(EncodeFields(in))
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	names := All(out, 4)
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
	second, err := names[1].Text()
	if err != nil || second != "TNFa" {
		t.Fatalf("expected TNFa, got %q (%v)", second, err)
	}
	values := All(out, 5)
	if v, _ := values[1].F64(); !math.IsInf(v, 1) {
		t.Fatalf("expected +Inf, got %g", v)
	}
	if out[4].ID != 9999 || !bytes.Equal(out[4].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[4])
	}
}

func TestTypedAccessorsCheckTypeAndLength(t *testing.T) {
	if _, err := I32(1, -7).U32(); !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected ErrFieldTypeMismatch, got %v", err)
	}
	bad := Field{ID: 2, Type: TypeU64, Value: []byte{1, 2}}
	if _, err := bad.U64(); !errors.Is(err, ErrFieldLength) {
		t.Fatalf("expected ErrFieldLength, got %v", err)
	}
	if v, err := I32(1, -7).I32(); err != nil || v != -7 {
		t.Fatalf("expected -7, got %d (%v)", v, err)
	}
	nested := Nested(3, []Field{U64(1, 42), Bool(2, true)})
	inner, err := nested.Fields()
	if err != nil {
		t.Fatalf("nested fields: %v", err)
	}
	f, err := Require(inner, 2)
	if err != nil {
		t.Fatalf("require: %v", err)
	}
	if b, _ := f.Bool(); !b {
		t.Fatalf("expected nested bool true")
	}
	if _, err := Require(inner, 9); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

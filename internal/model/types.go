package model

import (
	"fmt"
	"strings"
)

// Kind is the semantic category of a property or expression value.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindDecimal
	KindFloat
	KindString
	KindDateTime
	KindDate
	KindTime
	KindGuid
	KindBytes
	KindJSON
	KindEnum
	KindArray
)

var kindNames = map[Kind]string{
	KindBool:     "bool",
	KindDecimal:  "decimal",
	KindFloat:    "float",
	KindString:   "string",
	KindDateTime: "datetime",
	KindDate:     "date",
	KindTime:     "time",
	KindGuid:     "guid",
	KindBytes:    "bytes",
	KindJSON:     "json",
}

// Type is a semantic type. Bits and Unsigned apply to KindInt and to the
// underlying integer of KindEnum; Elem applies to KindArray.
type Type struct {
	Kind     Kind
	Bits     int
	Unsigned bool
	Elem     *Type
}

// Common types.
var (
	Bool     = Type{Kind: KindBool}
	Int8     = Type{Kind: KindInt, Bits: 8}
	Int16    = Type{Kind: KindInt, Bits: 16}
	Int32    = Type{Kind: KindInt, Bits: 32}
	Int64    = Type{Kind: KindInt, Bits: 64}
	UInt64   = Type{Kind: KindInt, Bits: 64, Unsigned: true}
	Decimal  = Type{Kind: KindDecimal}
	Float    = Type{Kind: KindFloat}
	String   = Type{Kind: KindString}
	DateTime = Type{Kind: KindDateTime}
	Date     = Type{Kind: KindDate}
	Time     = Type{Kind: KindTime}
	Guid     = Type{Kind: KindGuid}
	Bytes    = Type{Kind: KindBytes}
	JSON     = Type{Kind: KindJSON}
)

// Enum returns an enum type backed by an integer of the given width.
func Enum(bits int, unsigned bool) Type {
	return Type{Kind: KindEnum, Bits: bits, Unsigned: unsigned}
}

// ArrayOf returns a primitive collection type with element type elem.
func ArrayOf(elem Type) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e}
}

// Equal reports structural equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Bits != o.Bits || t.Unsigned != o.Unsigned {
		return false
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == nil && o.Elem == nil
	}
	return t.Elem.Equal(*o.Elem)
}

// IsInteger reports whether values of t are integers, enums included.
func (t Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindEnum
}

// IsNumeric reports whether t supports arithmetic.
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case KindInt, KindEnum, KindDecimal, KindFloat:
		return true
	}
	return false
}

// IsTemporal reports whether t is a date, time or datetime.
func (t Type) IsTemporal() bool {
	switch t.Kind {
	case KindDateTime, KindDate, KindTime:
		return true
	}
	return false
}

// Underlying returns the integer type backing an enum, or t itself.
func (t Type) Underlying() Type {
	if t.Kind == KindEnum {
		return Type{Kind: KindInt, Bits: t.Bits, Unsigned: t.Unsigned}
	}
	return t
}

// String renders t in the same syntax ParseType accepts.
func (t Type) String() string {
	switch t.Kind {
	case KindInt:
		return intName(t.Bits, t.Unsigned)
	case KindEnum:
		return "enum:" + intName(t.Bits, t.Unsigned)
	case KindArray:
		if t.Elem == nil {
			return "[]?"
		}
		return "[]" + t.Elem.String()
	}
	if name, ok := kindNames[t.Kind]; ok {
		return name
	}
	return "invalid"
}

func intName(bits int, unsigned bool) string {
	if bits == 0 {
		bits = 32
	}
	if unsigned {
		return fmt.Sprintf("uint%d", bits)
	}
	return fmt.Sprintf("int%d", bits)
}

// ParseType parses a type name such as "int32", "string", "enum:int16"
// or "[]int64".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "[]"); ok {
		elem, err := ParseType(rest)
		if err != nil {
			return Type{}, err
		}
		if elem.Kind == KindArray {
			return Type{}, fmt.Errorf("nested arrays are not supported: %q", s)
		}
		return ArrayOf(elem), nil
	}
	if rest, ok := strings.CutPrefix(s, "enum:"); ok {
		base, err := ParseType(rest)
		if err != nil {
			return Type{}, err
		}
		if base.Kind != KindInt {
			return Type{}, fmt.Errorf("enum must be backed by an integer type: %q", s)
		}
		return Enum(base.Bits, base.Unsigned), nil
	}
	switch s {
	case "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64":
		unsigned := strings.HasPrefix(s, "u")
		var bits int
		fmt.Sscanf(strings.TrimPrefix(strings.TrimPrefix(s, "u"), "int"), "%d", &bits)
		return Type{Kind: KindInt, Bits: bits, Unsigned: unsigned}, nil
	case "int":
		return Int32, nil
	case "long":
		return Int64, nil
	case "double":
		return Float, nil
	}
	for k, name := range kindNames {
		if name == s {
			return Type{Kind: k}, nil
		}
	}
	return Type{}, fmt.Errorf("unknown type %q", s)
}

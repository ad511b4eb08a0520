package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IRValue is a sealed interface representing constant values carried by
// query trees: literals, parameter values and inline collections.
type IRValue interface {
	irValue() // Sealed - only the types below implement it
}

// IRNull represents a null constant.
// Using an explicit type ensures all IRValues satisfy the sealed interface.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. All integer widths widen to int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRFloat represents an approximate numeric value (float/double columns).
type IRFloat float64

func (IRFloat) irValue() {}

// IRDecimal represents an exact numeric value.
type IRDecimal struct {
	decimal.Decimal
}

func (IRDecimal) irValue() {}

// IRTime represents a date, time or datetime value.
// The zone is always normalized to UTC on construction.
type IRTime struct {
	time.Time
}

func (IRTime) irValue() {}

// IRGuid represents a 128-bit identifier stored as char(36).
type IRGuid uuid.UUID

func (IRGuid) irValue() {}

// String returns the canonical 36-character form.
func (g IRGuid) String() string {
	return uuid.UUID(g).String()
}

// IRArray represents an ordered collection of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRDecimal parses an exact decimal literal.
func NewIRDecimal(s string) (IRDecimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return IRDecimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return IRDecimal{d}, nil
}

// MustDecimal is like NewIRDecimal but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDecimal(s string) IRDecimal {
	d, err := NewIRDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewIRTime wraps t, normalized to UTC.
func NewIRTime(t time.Time) IRTime {
	return IRTime{t.UTC()}
}

// NewIRArray creates an IRArray from values.
func NewIRArray(vals ...IRValue) IRArray {
	return IRArray(vals)
}

// IsNull reports whether v is absent or an IRNull.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// FromGo converts a plain Go value (as decoded from YAML or JSON, or built
// in tests) into an IRValue.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case float32:
		return IRFloat(val), nil
	case float64:
		return IRFloat(val), nil
	case decimal.Decimal:
		return IRDecimal{val}, nil
	case time.Time:
		return NewIRTime(val), nil
	case uuid.UUID:
		return IRGuid(val), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// DriverValue converts v into the value handed to database/sql.
// Guids travel as their string form, arrays as JSON text.
func DriverValue(v IRValue) (any, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return nil, nil
	case IRString:
		return string(val), nil
	case IRInt:
		return int64(val), nil
	case IRBool:
		return bool(val), nil
	case IRFloat:
		return float64(val), nil
	case IRDecimal:
		return val.Decimal, nil
	case IRTime:
		return val.Time, nil
	case IRGuid:
		return val.String(), nil
	case IRArray:
		data, err := MarshalIRValue(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case IRObject:
		data, err := val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// Not canonical: use MarshalCanonical for hashing.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to plain JSON bytes. This is the
// encoding used for JSON_TABLE parameter sources.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRBool:
		return json.Marshal(bool(val))
	case IRFloat:
		return []byte(strconv.FormatFloat(float64(val), 'g', -1, 64)), nil
	case IRDecimal:
		return []byte(val.String()), nil
	case IRTime:
		return json.Marshal(val.Format(TimeLayout))
	case IRGuid:
		return json.Marshal(val.String())
	case IRArray:
		return marshalIRArray(val)
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// TimeLayout is the microsecond-precision layout used wherever temporal
// values are rendered as text.
const TimeLayout = "2006-01-02 15:04:05.999999"

func marshalIRArray(arr IRArray) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

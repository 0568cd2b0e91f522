package value

import (
	"math"
	"math/big"
	"reflect"
	"slices"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// Value is a sealed interface. Only String, Int, Bool, Array and Object
// implement it.
type Value interface {
	value()
}

// String is a string payload.
type String string

func (String) value() {}

// Int is an integer payload. Always int64.
type Int int64

func (Int) value() {}

// Bool is a boolean payload.
type Bool bool

func (Bool) value() {}

// Array is an ordered list of values.
type Array []Value

func (Array) value() {}

// Object maps string keys to values. Use SortedKeys for deterministic
// iteration.
type Object map[string]Value

func (Object) value() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units), which
// differs from sort.Strings for characters outside the BMP.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// From converts decoded Go data into a Value. It accepts what yaml.v3,
// encoding/json and CUE produce: integral floats become Int, fractional
// floats and nulls are rejected.
func From(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, errors.New("null is not a valid payload")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case *big.Int:
		if val == nil || !val.IsInt64() {
			return nil, errors.Errorf("integer %v overflows int64", val)
		}
		return Int(val.Int64()), nil
	case float32:
		return fromFloat(float64(val))
	case float64:
		return fromFloat(val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := From(elem)
			if err != nil {
				return nil, errors.Wrapf(err, "array[%d]", i)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := From(elem)
			if err != nil {
				return nil, errors.Wrapf(err, "object[%q]", k)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, errors.Errorf("unsupported payload type %T", v)
	}
}

func fromUint(n uint64) (Value, error) {
	if n > math.MaxInt64 {
		return nil, errors.Errorf("integer %d overflows int64", n)
	}
	return Int(n), nil
}

func fromFloat(f float64) (Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errors.Errorf("floats are not valid payloads: %v", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, errors.Errorf("number %v overflows int64", f)
	}
	return Int(int64(f)), nil
}

// Native converts a Value back to plain Go data: string, int64, bool,
// []any and map[string]any.
func Native(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Native(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Native(e)
		}
		return out
	}
	return nil
}

// Normalize maps decoded data onto a single representation per value so
// that, for example, an int from a YAML file and an int64 produced by a
// stream compare equal. Data that From cannot convert is returned as is.
func Normalize(v any) any {
	c, err := From(v)
	if err != nil {
		return v
	}
	return Native(c)
}

// Equal reports whether two payloads are equal after normalization.
func Equal(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

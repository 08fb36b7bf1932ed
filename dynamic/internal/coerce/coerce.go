package coerce

import (
	"math"
	"math/big"
	"reflect"
	"unicode/utf8"
)

// Result classifies a numeric coercion.
type Result uint8

const (
	OK Result = iota
	OutOfRange
	NotInteger
)

// 2^63 and 2^64 as float64; both are exact.
const (
	twoTo63 = 9223372036854775808.0
	twoTo64 = 18446744073709551616.0
)

// Int converts value to a signed integer and checks it lies in the
// half-open range [-2^(bits-1), 2^(bits-1)). Integral floats (YAML and JSON
// numbers) and *big.Int are accepted.
func Int(value any, bits uint) (int64, Result) {
	switch v := value.(type) {
	case int:
		return signed(int64(v), bits)
	case int8:
		return signed(int64(v), bits)
	case int16:
		return signed(int64(v), bits)
	case int32:
		return signed(int64(v), bits)
	case int64:
		return signed(v, bits)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, OutOfRange
		}
		return signed(int64(v), bits)
	case uint8:
		return signed(int64(v), bits)
	case uint16:
		return signed(int64(v), bits)
	case uint32:
		return signed(int64(v), bits)
	case uint64:
		if v > math.MaxInt64 {
			return 0, OutOfRange
		}
		return signed(int64(v), bits)
	case float32:
		return Int(float64(v), bits)
	case float64:
		if v != math.Trunc(v) {
			return 0, NotInteger
		}
		if v < -twoTo63 || v >= twoTo63 {
			return 0, OutOfRange
		}
		return signed(int64(v), bits)
	case *big.Int:
		if v == nil {
			return 0, NotInteger
		}
		if !v.IsInt64() {
			return 0, OutOfRange
		}
		return signed(v.Int64(), bits)
	}
	return 0, NotInteger
}

func signed(v int64, bits uint) (int64, Result) {
	if bits < 64 {
		hi := int64(1) << (bits - 1)
		if v < -hi || v >= hi {
			return 0, OutOfRange
		}
	}
	return v, OK
}

// Uint converts value to an unsigned integer and checks it lies in the
// half-open range [0, 2^bits).
func Uint(value any, bits uint) (uint64, Result) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, OutOfRange
		}
		return unsigned(uint64(v), bits)
	case int8:
		if v < 0 {
			return 0, OutOfRange
		}
		return unsigned(uint64(v), bits)
	case int16:
		if v < 0 {
			return 0, OutOfRange
		}
		return unsigned(uint64(v), bits)
	case int32:
		if v < 0 {
			return 0, OutOfRange
		}
		return unsigned(uint64(v), bits)
	case int64:
		if v < 0 {
			return 0, OutOfRange
		}
		return unsigned(uint64(v), bits)
	case uint:
		return unsigned(uint64(v), bits)
	case uint8:
		return unsigned(uint64(v), bits)
	case uint16:
		return unsigned(uint64(v), bits)
	case uint32:
		return unsigned(uint64(v), bits)
	case uint64:
		return unsigned(v, bits)
	case float32:
		return Uint(float64(v), bits)
	case float64:
		if v != math.Trunc(v) {
			return 0, NotInteger
		}
		if v < 0 || v >= twoTo64 {
			return 0, OutOfRange
		}
		return unsigned(uint64(v), bits)
	case *big.Int:
		if v == nil {
			return 0, NotInteger
		}
		if v.Sign() < 0 || !v.IsUint64() {
			return 0, OutOfRange
		}
		return unsigned(v.Uint64(), bits)
	}
	return 0, NotInteger
}

func unsigned(v uint64, bits uint) (uint64, Result) {
	if bits < 64 && v >= uint64(1)<<bits {
		return 0, OutOfRange
	}
	return v, OK
}

// Float converts any Go number to float64.
func Float(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case *big.Int:
		if v == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(v).Float64()
		return f, true
	}
	return 0, false
}

// Char converts a byte, a small integer or a one-byte string to a narrow
// character.
func Char(value any) (byte, Result) {
	if s, ok := value.(string); ok {
		if len(s) != 1 {
			return 0, OutOfRange
		}
		return s[0], OK
	}
	v, r := Uint(value, 8)
	return byte(v), r
}

// WChar converts a rune, an integer or a one-rune string to a wide
// character.
func WChar(value any) (rune, Result) {
	if s, ok := value.(string); ok {
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 || size != len(s) || r == utf8.RuneError {
			return 0, OutOfRange
		}
		return r, OK
	}
	v, res := Int(value, 32)
	if res != OK {
		return 0, res
	}
	if v < 0 || v > utf8.MaxRune {
		return 0, OutOfRange
	}
	return rune(v), OK
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

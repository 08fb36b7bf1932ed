// Package dynamic moves Go values in and out of middleware-owned dynamic
// data objects.
//
// # Cursors
//
// A Cursor wraps one data object. Struct members, union members and
// collection elements that are themselves aggregates are reached by binding
// a child cursor, and bindings nest strictly:
//
//	child, err := root.Bind(dynamic.ByName("origin"))
//	// ... use child ...
//	err = child.Unbind()
//	err = child.Release()
//
// While a child is bound its parent can be neither cleared, released nor
// rebound. WithMember runs the whole bind, use, unbind, release sequence
// and cleans up even when the callback fails.
//
// # Encoding
//
// Encoder.Encode walks a descriptor and writes a Go value through typed
// setters:
//
//	STRUCT            map[string]any (any map keyed by a string kind)
//	ARRAY, SEQUENCE   any slice or array, written at ids 1..n
//	sequence<octet>   []byte in one bulk call, or a slice of integers
//	integers          any Go integer, integral floats, *big.Int
//	FLOAT, DOUBLE     any Go number
//	CHAR              byte or a one-byte string
//	WCHAR             rune or a one-rune string
//	STRING, WSTRING   string
//	ENUM              enumerator name or ordinal
//
// Integers are range-checked against the half-open range of their kind
// before anything is written. STRING values may not contain NUL.
// Struct encoding is sparse: members absent from the map keep their current
// contents and unknown keys are ignored.
//
// # Decoding
//
// Decoder.Decode is dense: a struct decodes to a map holding every member.
// Scalars come back as the Go type of their kind (see Decoder).
//
// Unions and other kinds without a marshalling rule fail with an error of
// kind unsupported_kind.
package dynamic

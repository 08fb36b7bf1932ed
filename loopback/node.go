package loopback

import (
	"fmt"

	"github.com/wippyai/dynamic-dds/typecode"
)

// node is the storage behind a data object. Scalars live in val with the
// Go type of their kind, aggregates in kids. A sequence of octets keeps its
// contents in bytes instead of one node per element.
type node struct {
	tc    *typecode.TypeCode
	val   any
	kids  []*node
	bytes []byte
}

// newNode builds a default-valued node for tc.
func newNode(tc *typecode.TypeCode) *node {
	tc = tc.Resolve()
	n := &node{tc: tc}
	switch tc.Kind() {
	case typecode.KindStruct:
		for _, m := range tc.Members() {
			n.kids = append(n.kids, newNode(m.Type))
		}
	case typecode.KindArray:
		elem, _ := tc.ContentType()
		length, _ := tc.Length()
		n.kids = make([]*node, length)
		for i := range n.kids {
			n.kids[i] = newNode(elem)
		}
	case typecode.KindSequence:
		// empty
	default:
		n.val = zeroValue(tc)
	}
	return n
}

func zeroValue(tc *typecode.TypeCode) any {
	switch tc.Kind() {
	case typecode.KindShort:
		return int16(0)
	case typecode.KindLong:
		return int32(0)
	case typecode.KindLongLong:
		return int64(0)
	case typecode.KindUShort:
		return uint16(0)
	case typecode.KindULong:
		return uint32(0)
	case typecode.KindULongLong:
		return uint64(0)
	case typecode.KindOctet, typecode.KindChar:
		return uint8(0)
	case typecode.KindWChar:
		return rune(0)
	case typecode.KindFloat:
		return float32(0)
	case typecode.KindDouble:
		return float64(0)
	case typecode.KindBoolean:
		return false
	case typecode.KindString, typecode.KindWString:
		return ""
	case typecode.KindEnum:
		if e := tc.Enumerators(); len(e) > 0 {
			return e[0].Ordinal
		}
		return int32(0)
	}
	return nil
}

// reset restores defaults in place so bound parents keep seeing this node.
func (n *node) reset() {
	*n = *newNode(n.tc)
}

func (n *node) octets() bool {
	if n.tc.Kind() != typecode.KindSequence {
		return false
	}
	elem, err := n.tc.ContentType()
	return err == nil && elem.Resolve().Kind() == typecode.KindOctet
}

// length is the live member or element count.
func (n *node) length() int {
	if n.octets() {
		return len(n.bytes)
	}
	return len(n.kids)
}

// grow extends a sequence to size elements filled with defaults.
func (n *node) grow(size int) {
	if n.octets() {
		if size > len(n.bytes) {
			n.bytes = append(n.bytes, make([]byte, size-len(n.bytes))...)
		}
		return
	}
	elem, _ := n.tc.ContentType()
	for len(n.kids) < size {
		n.kids = append(n.kids, newNode(elem))
	}
}

// wire converts the node to plain values for CBOR: structs become maps
// keyed by member name, collections become lists.
func (n *node) wire() any {
	switch n.tc.Kind() {
	case typecode.KindStruct:
		members := n.tc.Members()
		out := make(map[string]any, len(members))
		for i, m := range members {
			out[m.Name] = n.kids[i].wire()
		}
		return out
	case typecode.KindArray, typecode.KindSequence:
		if n.octets() {
			return n.bytes
		}
		out := make([]any, len(n.kids))
		for i, k := range n.kids {
			out[i] = k.wire()
		}
		return out
	}
	return n.val
}

// fromWire rebuilds a node of type tc from the output of wire after a CBOR
// round trip, where integers come back as int64 or uint64 and floats as
// float64.
func fromWire(tc *typecode.TypeCode, v any) (*node, error) {
	n := newNode(tc)
	if err := n.fill(v); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *node) fill(v any) error {
	if v == nil {
		return nil
	}
	switch n.tc.Kind() {
	case typecode.KindStruct:
		fields, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("struct: got %T", v)
		}
		for i, m := range n.tc.Members() {
			fv, ok := fields[m.Name]
			if !ok {
				continue
			}
			if err := n.kids[i].fill(fv); err != nil {
				return fmt.Errorf("%s: %w", m.Name, err)
			}
		}
		return nil

	case typecode.KindArray, typecode.KindSequence:
		if n.octets() {
			b, ok := v.([]byte)
			if !ok {
				return fmt.Errorf("octet sequence: got %T", v)
			}
			n.bytes = append([]byte(nil), b...)
			return nil
		}
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("collection: got %T", v)
		}
		if n.tc.Kind() == typecode.KindSequence {
			n.grow(len(list))
		}
		for i := 0; i < len(list) && i < len(n.kids); i++ {
			if err := n.kids[i].fill(list[i]); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	}

	val, err := scalarFromWire(n.tc.Kind(), v)
	if err != nil {
		return err
	}
	n.val = val
	return nil
}

func scalarFromWire(k typecode.Kind, v any) (any, error) {
	switch k {
	case typecode.KindFloat, typecode.KindDouble:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case float32:
			f = float64(x)
		default:
			return nil, fmt.Errorf("%s: got %T", k, v)
		}
		if k == typecode.KindFloat {
			return float32(f), nil
		}
		return f, nil
	case typecode.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: got %T", k, v)
		}
		return b, nil
	case typecode.KindString, typecode.KindWString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: got %T", k, v)
		}
		return s, nil
	}

	var i int64
	switch x := v.(type) {
	case int64:
		i = x
	case uint64:
		if k == typecode.KindULongLong {
			return x, nil
		}
		i = int64(x)
	default:
		return nil, fmt.Errorf("%s: got %T", k, v)
	}
	switch k {
	case typecode.KindShort:
		return int16(i), nil
	case typecode.KindLong, typecode.KindEnum:
		return int32(i), nil
	case typecode.KindLongLong:
		return i, nil
	case typecode.KindUShort:
		return uint16(i), nil
	case typecode.KindULong:
		return uint32(i), nil
	case typecode.KindULongLong:
		return uint64(i), nil
	case typecode.KindOctet, typecode.KindChar:
		return uint8(i), nil
	case typecode.KindWChar:
		return rune(i), nil
	}
	return nil, fmt.Errorf("no wire form for %s", k)
}

package dynamic

import (
	"reflect"
	"strings"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/dynamic/internal/coerce"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

var typeName = coerce.TypeName

// Half-open bounds of the integer kinds, used in range errors.
var intBounds = map[typecode.Kind][2]string{
	typecode.KindShort:     {"-32768", "32768"},
	typecode.KindLong:      {"-2147483648", "2147483648"},
	typecode.KindLongLong:  {"-9223372036854775808", "9223372036854775808"},
	typecode.KindUShort:    {"0", "65536"},
	typecode.KindULong:     {"0", "4294967296"},
	typecode.KindULongLong: {"0", "18446744073709551616"},
	typecode.KindOctet:     {"0", "256"},
}

// Encoder writes Go values into dynamic data objects.
//
// Struct members are taken from a map[string]any (or any map with string
// keys). Only keys that name a member are written; members without a key
// keep their current contents, so a cleared object yields defaults.
// Collections are taken from any slice or array and written element by
// element at ids 1..n. A []byte written to a sequence<octet> member goes
// through a single bulk call.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode writes value into the struct, array or sequence object under c.
func (e *Encoder) Encode(value any, c *Cursor) error {
	return e.encodeAggregate(value, c, nil)
}

// EncodeData is Encode on a borrowed data object.
func (e *Encoder) EncodeData(f dynamicdds.DataFactory, value any, d dynamicdds.Data) error {
	return e.Encode(value, Wrap(f, d))
}

func (e *Encoder) encodeAggregate(value any, c *Cursor, path []string) error {
	tc := c.Type()
	if tc == nil {
		return errors.FromReturnCode(errors.PhaseEncode, errors.RetcodePreconditionNotMet, "data object has no type")
	}
	tc = tc.Resolve()

	switch tc.Kind() {
	case typecode.KindStruct:
		return e.encodeStruct(tc, value, c, path)
	case typecode.KindArray, typecode.KindSequence:
		return e.encodeCollection(value, c, path)
	default:
		return errors.UnsupportedKind(errors.PhaseEncode, path, tc.Kind().String())
	}
}

func (e *Encoder) encodeStruct(tc *typecode.TypeCode, value any, c *Cursor, path []string) error {
	lookup, ok := structFields(value)
	if !ok {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "STRUCT")
	}

	n, err := tc.MemberCount()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		name, err := tc.MemberName(i)
		if err != nil {
			return err
		}
		fieldVal, exists := lookup(name)
		if !exists {
			continue
		}
		if err := e.encodeMember(fieldVal, c, ByName(name), appendPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// structFields returns a key lookup for map[string]any or any other map
// whose key kind is string.
func structFields(value any) (func(string) (any, bool), bool) {
	if m, ok := value.(map[string]any); ok {
		return func(k string) (any, bool) {
			v, ok := m[k]
			return v, ok
		}, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	keyType := rv.Type().Key()
	return func(k string) (any, bool) {
		v := rv.MapIndex(reflect.ValueOf(k).Convert(keyType))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	}, true
}

func (e *Encoder) encodeCollection(value any, c *Cursor, path []string) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), "slice or array")
	}
	for i := 0; i < rv.Len(); i++ {
		m := Element(i)
		if err := e.encodeMember(rv.Index(i).Interface(), c, m, appendPath(path, m.String())); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeMember(value any, c *Cursor, m Member, path []string) error {
	mt, err := c.MemberType(m)
	if err != nil {
		return err
	}
	mt = mt.Resolve()
	kind := mt.Kind()
	d := c.Data()

	switch kind {
	case typecode.KindShort:
		v, err := checkInt(value, 16, kind, path)
		if err != nil {
			return err
		}
		return d.SetShort(m.Name, m.ID, int16(v))
	case typecode.KindLong:
		v, err := checkInt(value, 32, kind, path)
		if err != nil {
			return err
		}
		return d.SetLong(m.Name, m.ID, int32(v))
	case typecode.KindLongLong:
		v, err := checkInt(value, 64, kind, path)
		if err != nil {
			return err
		}
		return d.SetLongLong(m.Name, m.ID, v)
	case typecode.KindUShort:
		v, err := checkUint(value, 16, kind, path)
		if err != nil {
			return err
		}
		return d.SetUShort(m.Name, m.ID, uint16(v))
	case typecode.KindULong:
		v, err := checkUint(value, 32, kind, path)
		if err != nil {
			return err
		}
		return d.SetULong(m.Name, m.ID, uint32(v))
	case typecode.KindULongLong:
		v, err := checkUint(value, 64, kind, path)
		if err != nil {
			return err
		}
		return d.SetULongLong(m.Name, m.ID, v)
	case typecode.KindOctet:
		v, err := checkUint(value, 8, kind, path)
		if err != nil {
			return err
		}
		return d.SetOctet(m.Name, m.ID, uint8(v))

	case typecode.KindFloat:
		v, ok := coerce.Float(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
		}
		return d.SetFloat(m.Name, m.ID, float32(v))
	case typecode.KindDouble:
		v, ok := coerce.Float(value)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
		}
		return d.SetDouble(m.Name, m.ID, v)

	case typecode.KindBoolean:
		v, ok := value.(bool)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
		}
		return d.SetBoolean(m.Name, m.ID, v)

	case typecode.KindChar:
		v, res := coerce.Char(value)
		if err := charResult(res, value, kind, path); err != nil {
			return err
		}
		return d.SetChar(m.Name, m.ID, v)
	case typecode.KindWChar:
		v, res := coerce.WChar(value)
		if err := charResult(res, value, kind, path); err != nil {
			return err
		}
		return d.SetWChar(m.Name, m.ID, v)

	case typecode.KindString:
		s, ok := value.(string)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
		}
		if strings.IndexByte(s, 0) >= 0 {
			return errors.InvalidValue(errors.PhaseEncode, path, "strings can not contain null characters")
		}
		return d.SetString(m.Name, m.ID, s)
	case typecode.KindWString:
		s, ok := value.(string)
		if !ok {
			return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
		}
		return d.SetWString(m.Name, m.ID, s)

	case typecode.KindEnum:
		v, err := enumOrdinal(mt, value, path)
		if err != nil {
			return err
		}
		return d.SetLong(m.Name, m.ID, v)

	case typecode.KindSequence:
		if b, ok := value.([]byte); ok && isOctetSequence(mt) {
			return setOctets(d, m, b)
		}
		return c.WithMember(m, func(child *Cursor) error {
			return e.encodeAggregate(value, child, path)
		})
	}

	if kind.IsAggregate() {
		return c.WithMember(m, func(child *Cursor) error {
			return e.encodeAggregate(value, child, path)
		})
	}
	return errors.UnsupportedKind(errors.PhaseEncode, path, kind.String())
}

func checkInt(value any, bits uint, kind typecode.Kind, path []string) (int64, error) {
	v, res := coerce.Int(value, bits)
	switch res {
	case coerce.OutOfRange:
		b := intBounds[kind]
		return 0, errors.Range(errors.PhaseEncode, path, value, kind.String(), b[0], b[1])
	case coerce.NotInteger:
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
	}
	return v, nil
}

func checkUint(value any, bits uint, kind typecode.Kind, path []string) (uint64, error) {
	v, res := coerce.Uint(value, bits)
	switch res {
	case coerce.OutOfRange:
		b := intBounds[kind]
		return 0, errors.Range(errors.PhaseEncode, path, value, kind.String(), b[0], b[1])
	case coerce.NotInteger:
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
	}
	return v, nil
}

func charResult(res coerce.Result, value any, kind typecode.Kind, path []string) error {
	switch res {
	case coerce.OutOfRange:
		return errors.New(errors.PhaseEncode, errors.KindInvalidValue).
			Path(path...).
			TypeKind(kind.String()).
			Value(value).
			Detail("%v is not a single %s character", value, kind).
			Build()
	case coerce.NotInteger:
		return errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), kind.String())
	}
	return nil
}

// enumOrdinal accepts an enumerator name or a 32-bit ordinal.
func enumOrdinal(tc *typecode.TypeCode, value any, path []string) (int32, error) {
	if name, ok := value.(string); ok {
		ord, err := tc.EnumOrdinal(name)
		if err != nil {
			return 0, errors.New(errors.PhaseEncode, errors.KindInvalidValue).
				Path(path...).
				TypeKind(typecode.KindEnum.String()).
				Cause(err).
				Detail("unknown enumerator %q", name).
				Build()
		}
		return ord, nil
	}
	v, err := checkInt(value, 32, typecode.KindLong, path)
	return int32(v), err
}

// setOctets overwrites the leading elements of a sequence<octet> member and
// keeps a longer existing tail, matching element-wise writes of ids 1..len(b).
func setOctets(d dynamicdds.Data, m Member, b []byte) error {
	cur, err := d.GetOctetSeq(m.Name, m.ID)
	if err != nil {
		return err
	}
	if len(cur) > len(b) {
		merged := make([]byte, len(cur))
		copy(merged, cur)
		copy(merged, b)
		b = merged
	}
	return d.SetOctetSeq(m.Name, m.ID, b)
}

func isOctetSequence(tc *typecode.TypeCode) bool {
	elem, err := tc.ContentType()
	return err == nil && elem.Resolve().Kind() == typecode.KindOctet
}

func appendPath(path []string, elem string) []string {
	return append(append([]string{}, path...), elem)
}

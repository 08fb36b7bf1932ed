package dynamic

import (
	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

// Decoder reads dynamic data objects into Go values.
//
// Structs decode to map[string]any holding every member of the type.
// Arrays and sequences decode to []any sized by the live element count,
// except sequence<octet> which decodes to []byte. Scalars decode to the Go
// type matching their kind: int16, int32, int64, uint16, uint32, uint64,
// float32, float64, bool, byte (CHAR and OCTET), rune (WCHAR), int32
// (ENUM) and string (STRING and WSTRING).
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads the struct, array or sequence object under c.
func (d *Decoder) Decode(c *Cursor) (any, error) {
	return d.decodeAggregate(c, nil)
}

// DecodeData is Decode on a borrowed data object.
func (d *Decoder) DecodeData(f dynamicdds.DataFactory, data dynamicdds.Data) (any, error) {
	return d.Decode(Wrap(f, data))
}

func (d *Decoder) decodeAggregate(c *Cursor, path []string) (any, error) {
	tc := c.Type()
	if tc == nil {
		return nil, errors.FromReturnCode(errors.PhaseDecode, errors.RetcodePreconditionNotMet, "data object has no type")
	}
	tc = tc.Resolve()

	switch tc.Kind() {
	case typecode.KindStruct:
		n, err := tc.MemberCount()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, n)
		for i := uint32(0); i < n; i++ {
			name, err := tc.MemberName(i)
			if err != nil {
				return nil, err
			}
			v, err := d.decodeMember(c, ByName(name), appendPath(path, name))
			if err != nil {
				return nil, err
			}
			out[name] = v
		}
		return out, nil

	case typecode.KindArray, typecode.KindSequence:
		n := int(c.Data().MemberCount())
		out := make([]any, n)
		for i := 0; i < n; i++ {
			m := Element(i)
			v, err := d.decodeMember(c, m, appendPath(path, m.String()))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, errors.UnsupportedKind(errors.PhaseDecode, path, tc.Kind().String())
}

func (d *Decoder) decodeMember(c *Cursor, m Member, path []string) (any, error) {
	mt, err := c.MemberType(m)
	if err != nil {
		return nil, err
	}
	mt = mt.Resolve()
	data := c.Data()

	switch kind := mt.Kind(); kind {
	case typecode.KindShort:
		return data.GetShort(m.Name, m.ID)
	case typecode.KindLong:
		return data.GetLong(m.Name, m.ID)
	case typecode.KindLongLong:
		return data.GetLongLong(m.Name, m.ID)
	case typecode.KindUShort:
		return data.GetUShort(m.Name, m.ID)
	case typecode.KindULong:
		return data.GetULong(m.Name, m.ID)
	case typecode.KindULongLong:
		return data.GetULongLong(m.Name, m.ID)
	case typecode.KindOctet:
		return data.GetOctet(m.Name, m.ID)
	case typecode.KindFloat:
		return data.GetFloat(m.Name, m.ID)
	case typecode.KindDouble:
		return data.GetDouble(m.Name, m.ID)
	case typecode.KindBoolean:
		return data.GetBoolean(m.Name, m.ID)
	case typecode.KindChar:
		return data.GetChar(m.Name, m.ID)
	case typecode.KindWChar:
		return data.GetWChar(m.Name, m.ID)
	case typecode.KindEnum:
		return data.GetLong(m.Name, m.ID)

	case typecode.KindString:
		return takeString(data.GetString(m.Name, m.ID))
	case typecode.KindWString:
		return takeString(data.GetWString(m.Name, m.ID))

	case typecode.KindSequence:
		if isOctetSequence(mt) {
			return data.GetOctetSeq(m.Name, m.ID)
		}
		return d.decodeBound(c, m, path)

	default:
		if kind.IsAggregate() {
			return d.decodeBound(c, m, path)
		}
		return nil, errors.UnsupportedKind(errors.PhaseDecode, path, kind.String())
	}
}

func (d *Decoder) decodeBound(c *Cursor, m Member, path []string) (any, error) {
	var out any
	err := c.WithMember(m, func(child *Cursor) error {
		v, err := d.decodeAggregate(child, path)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// takeString copies a middleware string and frees its buffer.
func takeString(ts dynamicdds.TransientString, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	defer ts.Free()
	return ts.String(), nil
}

package typecode

import (
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/dynamic-dds/errors"
)

// FromWIT derives a descriptor from a WIT type. Records and tuples become
// structs, lists become unbounded sequences, enums keep their case order as
// ordinals and named type aliases become aliases. Kebab-case identifiers are
// rewritten with underscores. Variants, options, results, flags and
// resource handles have no DDS counterpart and are rejected.
func FromWIT(t wit.Type) (*TypeCode, error) {
	c := witConverter{seen: make(map[*wit.TypeDef]*TypeCode)}
	return c.convert(t, nil)
}

type witConverter struct {
	seen map[*wit.TypeDef]*TypeCode
}

func (c *witConverter) convert(t wit.Type, path []string) (*TypeCode, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Boolean, nil
	case wit.U8:
		return Octet, nil
	case wit.S8, wit.S16:
		return Short, nil
	case wit.U16:
		return UShort, nil
	case wit.U32:
		return ULong, nil
	case wit.S32:
		return Long, nil
	case wit.U64:
		return ULongLong, nil
	case wit.S64:
		return LongLong, nil
	case wit.F32:
		return Float, nil
	case wit.F64:
		return Double, nil
	case wit.Char:
		return WChar, nil
	case wit.String:
		return String, nil
	case *wit.TypeDef:
		if tc, ok := c.seen[t]; ok {
			return tc, nil
		}
		tc, err := c.convertTypeDef(t, path)
		if err != nil {
			return nil, err
		}
		c.seen[t] = tc
		return tc, nil
	}
	return nil, errors.New(errors.PhaseIntrospect, errors.KindUnsupportedKind).
		Path(path...).
		Detail("WIT type %T has no DDS equivalent", t).
		Build()
}

func (c *witConverter) convertTypeDef(td *wit.TypeDef, path []string) (*TypeCode, error) {
	name := ""
	if td.Name != nil {
		name = ddsIdent(*td.Name)
	}

	switch k := td.Kind.(type) {
	case *wit.Record:
		members := make([]Member, 0, len(k.Fields))
		for _, f := range k.Fields {
			ft, err := c.convert(f.Type, appendPath(path, f.Name))
			if err != nil {
				return nil, err
			}
			members = append(members, Member{Name: ddsIdent(f.Name), Type: ft})
		}
		if name == "" {
			name = "record"
		}
		return NewStruct(name, members...)

	case *wit.Tuple:
		members := make([]Member, 0, len(k.Types))
		for i, et := range k.Types {
			field := "f" + strconv.Itoa(i)
			ft, err := c.convert(et, appendPath(path, field))
			if err != nil {
				return nil, err
			}
			members = append(members, Member{Name: field, Type: ft})
		}
		if name == "" {
			name = "tuple" + strconv.Itoa(len(k.Types))
		}
		return NewStruct(name, members...)

	case *wit.List:
		elem, err := c.convert(k.Type, appendPath(path, "[]"))
		if err != nil {
			return nil, err
		}
		seq, err := NewSequence(elem, 0)
		if err != nil {
			return nil, err
		}
		if name != "" {
			return NewAlias(name, seq)
		}
		return seq, nil

	case *wit.Enum:
		enumerators := make([]Enumerator, len(k.Cases))
		for i, ec := range k.Cases {
			enumerators[i] = Enumerator{Name: ddsIdent(ec.Name), Ordinal: int32(i)}
		}
		if name == "" {
			name = "enum"
		}
		return NewEnum(name, enumerators...)

	case wit.Type:
		base, err := c.convert(k, path)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return base, nil
		}
		return NewAlias(name, base)
	}

	return nil, errors.New(errors.PhaseIntrospect, errors.KindUnsupportedKind).
		Path(path...).
		Detail("WIT %T has no DDS equivalent", td.Kind).
		Build()
}

func ddsIdent(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func appendPath(path []string, elem string) []string {
	return append(append([]string{}, path...), elem)
}

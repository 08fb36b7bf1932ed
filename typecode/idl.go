package typecode

import (
	"strconv"
	"strings"
)

// String renders the descriptor as IDL. Named types print their full
// definition; nested named types are referenced by name.
func (tc *TypeCode) String() string {
	if tc == nil {
		return "<nil>"
	}
	var b strings.Builder
	switch tc.kind {
	case KindStruct, KindValue, KindSparse:
		b.WriteString("struct ")
		b.WriteString(tc.name)
		b.WriteString(" {\n")
		for _, m := range tc.members {
			b.WriteString("    ")
			writeDecl(&b, m.Type, m.Name)
			b.WriteByte(';')
			if m.Key {
				b.WriteString(" //@key")
			}
			b.WriteByte('\n')
		}
		b.WriteString("};")
	case KindUnion:
		b.WriteString("union ")
		b.WriteString(tc.name)
		b.WriteString(" switch (")
		b.WriteString(typeRef(tc.discriminator))
		b.WriteString(") {\n")
		for _, m := range tc.members {
			b.WriteString("    ")
			if len(m.Labels) == 0 {
				b.WriteString("default: ")
			}
			for _, l := range m.Labels {
				b.WriteString("case ")
				b.WriteString(strconv.FormatInt(int64(l), 10))
				b.WriteString(": ")
			}
			writeDecl(&b, m.Type, m.Name)
			b.WriteString(";\n")
		}
		b.WriteString("};")
	case KindEnum:
		b.WriteString("enum ")
		b.WriteString(tc.name)
		b.WriteString(" {\n")
		for i, e := range tc.enumerators {
			b.WriteString("    ")
			if e.Ordinal != int32(i) {
				b.WriteString("@value(")
				b.WriteString(strconv.FormatInt(int64(e.Ordinal), 10))
				b.WriteString(") ")
			}
			b.WriteString(e.Name)
			if i < len(tc.enumerators)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString("};")
	case KindAlias:
		b.WriteString("typedef ")
		writeDecl(&b, tc.content, tc.name)
		b.WriteByte(';')
	default:
		b.WriteString(typeRef(tc))
	}
	return b.String()
}

// writeDecl writes "T name" moving array dimensions behind the name.
func writeDecl(b *strings.Builder, t *TypeCode, name string) {
	if t.kind == KindArray {
		b.WriteString(typeRef(t.content))
		b.WriteByte(' ')
		b.WriteString(name)
		for _, d := range t.dims {
			b.WriteByte('[')
			b.WriteString(strconv.FormatUint(uint64(d), 10))
			b.WriteByte(']')
		}
		return
	}
	b.WriteString(typeRef(t))
	b.WriteByte(' ')
	b.WriteString(name)
}

func typeRef(t *TypeCode) string {
	if t == nil {
		return "<nil>"
	}
	switch t.kind {
	case KindStruct, KindUnion, KindEnum, KindAlias, KindValue, KindSparse:
		return t.name
	case KindString, KindWString:
		if t.bound == 0 {
			return t.kind.idlName()
		}
		return t.kind.idlName() + "<" + strconv.FormatUint(uint64(t.bound), 10) + ">"
	case KindSequence:
		if t.bound == 0 {
			return "sequence<" + typeRef(t.content) + ">"
		}
		return "sequence<" + typeRef(t.content) + ", " + strconv.FormatUint(uint64(t.bound), 10) + ">"
	case KindArray:
		var b strings.Builder
		b.WriteString(typeRef(t.content))
		for _, d := range t.dims {
			b.WriteByte('[')
			b.WriteString(strconv.FormatUint(uint64(d), 10))
			b.WriteByte(']')
		}
		return b.String()
	}
	if n := t.kind.idlName(); n != "" {
		return n
	}
	return t.kind.String()
}

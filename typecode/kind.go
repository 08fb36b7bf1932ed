package typecode

import "fmt"

// Kind identifies the category of a type descriptor.
// Values follow the TCKind numbering of the DDS type system.
type Kind int32

const (
	KindNull       Kind = 0
	KindShort      Kind = 1
	KindLong       Kind = 2
	KindUShort     Kind = 3
	KindULong      Kind = 4
	KindFloat      Kind = 5
	KindDouble     Kind = 6
	KindBoolean    Kind = 7
	KindChar       Kind = 8
	KindOctet      Kind = 9
	KindStruct     Kind = 10
	KindUnion      Kind = 11
	KindEnum       Kind = 12
	KindString     Kind = 13
	KindSequence   Kind = 14
	KindArray      Kind = 15
	KindAlias      Kind = 16
	KindLongLong   Kind = 17
	KindULongLong  Kind = 18
	KindLongDouble Kind = 19
	KindWChar      Kind = 20
	KindWString    Kind = 21
	KindValue      Kind = 22
	KindSparse     Kind = 23

	KindRawBytes      Kind = 0x7e
	KindRawBytesKeyed Kind = 0x7f
)

var kindNames = map[Kind]string{
	KindNull:          "NULL",
	KindShort:         "SHORT",
	KindLong:          "LONG",
	KindUShort:        "USHORT",
	KindULong:         "ULONG",
	KindFloat:         "FLOAT",
	KindDouble:        "DOUBLE",
	KindBoolean:       "BOOLEAN",
	KindChar:          "CHAR",
	KindOctet:         "OCTET",
	KindStruct:        "STRUCT",
	KindUnion:         "UNION",
	KindEnum:          "ENUM",
	KindString:        "STRING",
	KindSequence:      "SEQUENCE",
	KindArray:         "ARRAY",
	KindAlias:         "ALIAS",
	KindLongLong:      "LONGLONG",
	KindULongLong:     "ULONGLONG",
	KindLongDouble:    "LONGDOUBLE",
	KindWChar:         "WCHAR",
	KindWString:       "WSTRING",
	KindValue:         "VALUE",
	KindSparse:        "SPARSE",
	KindRawBytes:      "RAW_BYTES",
	KindRawBytesKeyed: "RAW_BYTES_KEYED",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int32(k))
}

// IsPrimitive reports whether values of this kind are stored as a single
// scalar accessible through the typed get/set calls.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindShort, KindLong, KindUShort, KindULong, KindLongLong, KindULongLong,
		KindFloat, KindDouble, KindLongDouble, KindBoolean, KindChar, KindWChar, KindOctet:
		return true
	}
	return false
}

// IsAggregate reports whether values of this kind are reached by binding a
// child cursor.
func (k Kind) IsAggregate() bool {
	switch k {
	case KindStruct, KindUnion, KindSequence, KindArray, KindValue, KindSparse:
		return true
	}
	return false
}

// idlName is the IDL spelling of primitive kinds.
func (k Kind) idlName() string {
	switch k {
	case KindShort:
		return "short"
	case KindLong:
		return "long"
	case KindUShort:
		return "unsigned short"
	case KindULong:
		return "unsigned long"
	case KindLongLong:
		return "long long"
	case KindULongLong:
		return "unsigned long long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindLongDouble:
		return "long double"
	case KindBoolean:
		return "boolean"
	case KindChar:
		return "char"
	case KindWChar:
		return "wchar"
	case KindOctet:
		return "octet"
	case KindString:
		return "string"
	case KindWString:
		return "wstring"
	}
	return ""
}

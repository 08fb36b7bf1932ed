package typecode

import (
	"github.com/wippyai/dynamic-dds/errors"
)

// MemberID addresses a member of a dynamic data object. Struct members use
// the id from their descriptor; array and sequence elements use 1-based
// indices.
type MemberID int32

// MemberIDUnspecified selects a member by name only.
const MemberIDUnspecified MemberID = 0

// Member describes one struct or union member.
type Member struct {
	Type   *TypeCode
	Name   string
	Labels []int32 // union case labels
	ID     MemberID
	Key    bool
}

// Enumerator is one named ordinal of an enum.
type Enumerator struct {
	Name    string
	Ordinal int32
}

// TypeCode is an immutable type descriptor. The zero value is not usable;
// build descriptors with the New* constructors or the primitive variables.
type TypeCode struct {
	content       *TypeCode
	discriminator *TypeCode
	name          string
	members       []Member
	enumerators   []Enumerator
	dims          []uint32
	bound         uint32
	kind          Kind
}

// Primitive descriptors. String and WString are unbounded.
var (
	Short      = &TypeCode{kind: KindShort}
	Long       = &TypeCode{kind: KindLong}
	UShort     = &TypeCode{kind: KindUShort}
	ULong      = &TypeCode{kind: KindULong}
	LongLong   = &TypeCode{kind: KindLongLong}
	ULongLong  = &TypeCode{kind: KindULongLong}
	Float      = &TypeCode{kind: KindFloat}
	Double     = &TypeCode{kind: KindDouble}
	LongDouble = &TypeCode{kind: KindLongDouble}
	Boolean    = &TypeCode{kind: KindBoolean}
	Char       = &TypeCode{kind: KindChar}
	WChar      = &TypeCode{kind: KindWChar}
	Octet      = &TypeCode{kind: KindOctet}
	String     = &TypeCode{kind: KindString}
	WString    = &TypeCode{kind: KindWString}
	Null       = &TypeCode{kind: KindNull}
)

// Primitive returns the shared descriptor for a primitive or unbounded
// string kind, or nil when k has no parameterless descriptor.
func Primitive(k Kind) *TypeCode {
	switch k {
	case KindShort:
		return Short
	case KindLong:
		return Long
	case KindUShort:
		return UShort
	case KindULong:
		return ULong
	case KindLongLong:
		return LongLong
	case KindULongLong:
		return ULongLong
	case KindFloat:
		return Float
	case KindDouble:
		return Double
	case KindLongDouble:
		return LongDouble
	case KindBoolean:
		return Boolean
	case KindChar:
		return Char
	case KindWChar:
		return WChar
	case KindOctet:
		return Octet
	case KindString:
		return String
	case KindWString:
		return WString
	case KindNull:
		return Null
	}
	return nil
}

// NewStruct builds a struct descriptor. Members with a zero ID are numbered
// by declaration position starting at 1.
func NewStruct(name string, members ...Member) (*TypeCode, error) {
	ms, err := checkMembers(name, members)
	if err != nil {
		return nil, err
	}
	return &TypeCode{kind: KindStruct, name: name, members: ms}, nil
}

// NewUnion builds a union descriptor switched on disc, which must resolve to
// an integer, boolean, char or enum kind.
func NewUnion(name string, disc *TypeCode, members ...Member) (*TypeCode, error) {
	if disc == nil {
		return nil, errors.Introspection(errors.ExBadParam, "union %s: nil discriminator", name)
	}
	switch disc.Resolve().kind {
	case KindShort, KindLong, KindUShort, KindULong, KindLongLong, KindULongLong,
		KindBoolean, KindChar, KindWChar, KindOctet, KindEnum:
	default:
		return nil, errors.Introspection(errors.ExBadTypeCode, "union %s: invalid discriminator kind %s", name, disc.Resolve().kind)
	}
	ms, err := checkMembers(name, members)
	if err != nil {
		return nil, err
	}
	return &TypeCode{kind: KindUnion, name: name, discriminator: disc, members: ms}, nil
}

func checkMembers(owner string, members []Member) ([]Member, error) {
	ms := make([]Member, len(members))
	names := make(map[string]struct{}, len(members))
	ids := make(map[MemberID]struct{}, len(members))
	for i, m := range members {
		if m.Name == "" {
			return nil, errors.Introspection(errors.ExBadParam, "%s: member %d has no name", owner, i)
		}
		if m.Type == nil {
			return nil, errors.Introspection(errors.ExBadParam, "%s.%s: nil member type", owner, m.Name)
		}
		if _, dup := names[m.Name]; dup {
			return nil, errors.Introspection(errors.ExBadMemberName, "%s: duplicate member %q", owner, m.Name)
		}
		if m.ID == MemberIDUnspecified {
			m.ID = MemberID(i + 1)
		}
		if _, dup := ids[m.ID]; dup {
			return nil, errors.Introspection(errors.ExBadMemberID, "%s: duplicate member id %d", owner, m.ID)
		}
		names[m.Name] = struct{}{}
		ids[m.ID] = struct{}{}
		if len(m.Labels) > 0 {
			m.Labels = append([]int32(nil), m.Labels...)
		}
		ms[i] = m
	}
	return ms, nil
}

// NewEnum builds an enum descriptor.
func NewEnum(name string, enumerators ...Enumerator) (*TypeCode, error) {
	if len(enumerators) == 0 {
		return nil, errors.Introspection(errors.ExBadParam, "enum %s: no enumerators", name)
	}
	seen := make(map[string]struct{}, len(enumerators))
	for _, e := range enumerators {
		if _, dup := seen[e.Name]; dup || e.Name == "" {
			return nil, errors.Introspection(errors.ExBadMemberName, "enum %s: bad enumerator %q", name, e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return &TypeCode{
		kind:        KindEnum,
		name:        name,
		enumerators: append([]Enumerator(nil), enumerators...),
	}, nil
}

// NewSequence builds a sequence descriptor. A zero bound is unbounded.
func NewSequence(elem *TypeCode, bound uint32) (*TypeCode, error) {
	if elem == nil {
		return nil, errors.Introspection(errors.ExBadParam, "sequence: nil element type")
	}
	return &TypeCode{kind: KindSequence, content: elem, bound: bound}, nil
}

// NewArray builds a fixed-size, possibly multi-dimensional array descriptor.
func NewArray(elem *TypeCode, dims ...uint32) (*TypeCode, error) {
	if elem == nil {
		return nil, errors.Introspection(errors.ExBadParam, "array: nil element type")
	}
	if len(dims) == 0 {
		return nil, errors.Introspection(errors.ExBadParam, "array: no dimensions")
	}
	for _, d := range dims {
		if d == 0 {
			return nil, errors.Introspection(errors.ExBadParam, "array: zero dimension")
		}
	}
	return &TypeCode{kind: KindArray, content: elem, dims: append([]uint32(nil), dims...)}, nil
}

// NewString returns a string descriptor with the given bound. A zero bound
// is unbounded.
func NewString(bound uint32) *TypeCode {
	if bound == 0 {
		return String
	}
	return &TypeCode{kind: KindString, bound: bound}
}

// NewWString returns a wide string descriptor with the given bound.
func NewWString(bound uint32) *TypeCode {
	if bound == 0 {
		return WString
	}
	return &TypeCode{kind: KindWString, bound: bound}
}

// NewAlias builds a typedef of base.
func NewAlias(name string, base *TypeCode) (*TypeCode, error) {
	if base == nil {
		return nil, errors.Introspection(errors.ExBadParam, "alias %s: nil base type", name)
	}
	return &TypeCode{kind: KindAlias, name: name, content: base}, nil
}

// Must panics if err is non-nil. Intended for package-level descriptors.
func Must(tc *TypeCode, err error) *TypeCode {
	if err != nil {
		panic(err)
	}
	return tc
}

// Kind returns the descriptor's kind.
func (tc *TypeCode) Kind() Kind {
	return tc.kind
}

// Name returns the name of a struct, union, enum or alias.
func (tc *TypeCode) Name() (string, error) {
	switch tc.kind {
	case KindStruct, KindUnion, KindEnum, KindAlias, KindValue, KindSparse:
		return tc.name, nil
	}
	return "", badKind("name", tc.kind)
}

// MemberCount returns the number of members of a struct or union, or the
// number of enumerators of an enum.
func (tc *TypeCode) MemberCount() (uint32, error) {
	switch tc.kind {
	case KindStruct, KindUnion, KindValue, KindSparse:
		return uint32(len(tc.members)), nil
	case KindEnum:
		return uint32(len(tc.enumerators)), nil
	}
	return 0, badKind("member_count", tc.kind)
}

func (tc *TypeCode) member(i uint32, op string) (*Member, error) {
	switch tc.kind {
	case KindStruct, KindUnion, KindValue, KindSparse:
	default:
		return nil, badKind(op, tc.kind)
	}
	if int(i) >= len(tc.members) {
		return nil, errors.Introspection(errors.ExBounds, "%s: index %d out of %d", op, i, len(tc.members))
	}
	return &tc.members[i], nil
}

// MemberName returns the name of the member (or enumerator) at index i.
func (tc *TypeCode) MemberName(i uint32) (string, error) {
	if tc.kind == KindEnum {
		if int(i) >= len(tc.enumerators) {
			return "", errors.Introspection(errors.ExBounds, "member_name: index %d out of %d", i, len(tc.enumerators))
		}
		return tc.enumerators[i].Name, nil
	}
	m, err := tc.member(i, "member_name")
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

// MemberID returns the id of the member at index i.
func (tc *TypeCode) MemberID(i uint32) (MemberID, error) {
	m, err := tc.member(i, "member_id")
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}

// MemberType returns the descriptor of the member at index i.
func (tc *TypeCode) MemberType(i uint32) (*TypeCode, error) {
	m, err := tc.member(i, "member_type")
	if err != nil {
		return nil, err
	}
	return m.Type, nil
}

// IsMemberKey reports whether the member at index i is a key member.
func (tc *TypeCode) IsMemberKey(i uint32) (bool, error) {
	m, err := tc.member(i, "is_member_key")
	if err != nil {
		return false, err
	}
	return m.Key, nil
}

// MemberLabels returns the case labels of the union member at index i.
func (tc *TypeCode) MemberLabels(i uint32) ([]int32, error) {
	if tc.kind != KindUnion {
		return nil, badKind("member_label", tc.kind)
	}
	m, err := tc.member(i, "member_label")
	if err != nil {
		return nil, err
	}
	return append([]int32(nil), m.Labels...), nil
}

// FindMemberByName returns the index of the named member.
func (tc *TypeCode) FindMemberByName(name string) (uint32, error) {
	switch tc.kind {
	case KindStruct, KindUnion, KindValue, KindSparse:
	default:
		return 0, badKind("find_member_by_name", tc.kind)
	}
	for i := range tc.members {
		if tc.members[i].Name == name {
			return uint32(i), nil
		}
	}
	return 0, errors.Introspection(errors.ExBadMemberName, "%s has no member %q", tc.name, name)
}

// FindMemberByID returns the index of the member with the given id.
func (tc *TypeCode) FindMemberByID(id MemberID) (uint32, error) {
	switch tc.kind {
	case KindStruct, KindUnion, KindValue, KindSparse:
	default:
		return 0, badKind("find_member_by_id", tc.kind)
	}
	for i := range tc.members {
		if tc.members[i].ID == id {
			return uint32(i), nil
		}
	}
	return 0, errors.Introspection(errors.ExBadMemberID, "%s has no member id %d", tc.name, id)
}

// Members returns a copy of the member list.
func (tc *TypeCode) Members() []Member {
	return append([]Member(nil), tc.members...)
}

// Enumerators returns a copy of the enumerator list.
func (tc *TypeCode) Enumerators() []Enumerator {
	return append([]Enumerator(nil), tc.enumerators...)
}

// EnumOrdinal returns the ordinal of the named enumerator.
func (tc *TypeCode) EnumOrdinal(name string) (int32, error) {
	if tc.kind != KindEnum {
		return 0, badKind("find_member_by_name", tc.kind)
	}
	for _, e := range tc.enumerators {
		if e.Name == name {
			return e.Ordinal, nil
		}
	}
	return 0, errors.Introspection(errors.ExBadMemberName, "enum %s has no enumerator %q", tc.name, name)
}

// EnumName returns the name of the enumerator with the given ordinal.
func (tc *TypeCode) EnumName(ordinal int32) (string, bool) {
	for _, e := range tc.enumerators {
		if e.Ordinal == ordinal {
			return e.Name, true
		}
	}
	return "", false
}

// ContentType returns the element type of a sequence or array, or the base
// type of an alias.
func (tc *TypeCode) ContentType() (*TypeCode, error) {
	switch tc.kind {
	case KindSequence, KindArray, KindAlias:
		return tc.content, nil
	}
	return nil, badKind("content_type", tc.kind)
}

// Discriminator returns the discriminator type of a union.
func (tc *TypeCode) Discriminator() (*TypeCode, error) {
	if tc.kind != KindUnion {
		return nil, badKind("discriminator_type", tc.kind)
	}
	return tc.discriminator, nil
}

// Length returns the bound of a sequence or string (0 when unbounded), or
// the total element count of an array.
func (tc *TypeCode) Length() (uint32, error) {
	switch tc.kind {
	case KindSequence, KindString, KindWString:
		return tc.bound, nil
	case KindArray:
		n := uint32(1)
		for _, d := range tc.dims {
			n *= d
		}
		return n, nil
	}
	return 0, badKind("length", tc.kind)
}

// Dimensions returns the dimensions of an array.
func (tc *TypeCode) Dimensions() ([]uint32, error) {
	if tc.kind != KindArray {
		return nil, badKind("dimensions", tc.kind)
	}
	return append([]uint32(nil), tc.dims...), nil
}

// Resolve strips aliases and returns the underlying descriptor.
func (tc *TypeCode) Resolve() *TypeCode {
	for tc != nil && tc.kind == KindAlias {
		tc = tc.content
	}
	return tc
}

// Equal reports whether two descriptors describe the same type.
func (tc *TypeCode) Equal(other *TypeCode) bool {
	if tc == other {
		return true
	}
	if tc == nil || other == nil {
		return false
	}
	if tc.kind != other.kind || tc.name != other.name || tc.bound != other.bound {
		return false
	}
	if len(tc.dims) != len(other.dims) || len(tc.members) != len(other.members) ||
		len(tc.enumerators) != len(other.enumerators) {
		return false
	}
	for i := range tc.dims {
		if tc.dims[i] != other.dims[i] {
			return false
		}
	}
	for i := range tc.enumerators {
		if tc.enumerators[i] != other.enumerators[i] {
			return false
		}
	}
	for i := range tc.members {
		a, b := &tc.members[i], &other.members[i]
		if a.Name != b.Name || a.ID != b.ID || a.Key != b.Key || len(a.Labels) != len(b.Labels) {
			return false
		}
		for j := range a.Labels {
			if a.Labels[j] != b.Labels[j] {
				return false
			}
		}
		if !a.Type.Equal(b.Type) {
			return false
		}
	}
	if (tc.content == nil) != (other.content == nil) || (tc.content != nil && !tc.content.Equal(other.content)) {
		return false
	}
	if (tc.discriminator == nil) != (other.discriminator == nil) ||
		(tc.discriminator != nil && !tc.discriminator.Equal(other.discriminator)) {
		return false
	}
	return true
}

func badKind(op string, k Kind) error {
	return errors.New(errors.PhaseIntrospect, errors.KindTypeIntrospection).
		TypeKind(k.String()).
		Exception(errors.ExBadKind).
		Detail("%s not valid for kind", op).
		Build()
}

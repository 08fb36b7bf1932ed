package typecode

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/dynamic-dds/errors"
)

func helloWorld(t *testing.T) *TypeCode {
	t.Helper()
	tc, err := NewStruct("HelloWorld",
		Member{Name: "sender", Type: NewString(128), Key: true},
		Member{Name: "message", Type: NewString(1024)},
		Member{Name: "count", Type: Long},
	)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return tc
}

func exceptionOf(t *testing.T, err error) errors.ExceptionCode {
	t.Helper()
	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %T: %v", err, err)
	}
	if e.Kind != errors.KindTypeIntrospection {
		t.Fatalf("Kind = %v, want %v", e.Kind, errors.KindTypeIntrospection)
	}
	return e.Exception
}

func TestKindNumbering(t *testing.T) {
	tests := []struct {
		kind Kind
		want int32
		name string
	}{
		{KindNull, 0, "NULL"},
		{KindLong, 2, "LONG"},
		{KindOctet, 9, "OCTET"},
		{KindStruct, 10, "STRUCT"},
		{KindSequence, 14, "SEQUENCE"},
		{KindArray, 15, "ARRAY"},
		{KindLongLong, 17, "LONGLONG"},
		{KindWString, 21, "WSTRING"},
		{KindSparse, 23, "SPARSE"},
		{KindRawBytes, 0x7e, "RAW_BYTES"},
		{KindRawBytesKeyed, 0x7f, "RAW_BYTES_KEYED"},
	}
	for _, tt := range tests {
		if int32(tt.kind) != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, int32(tt.kind), tt.want)
		}
		if tt.kind.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.kind.String(), tt.name)
		}
	}
	if got := Kind(99).String(); got != "Kind(99)" {
		t.Errorf("unknown kind = %q", got)
	}
}

func TestStructIntrospection(t *testing.T) {
	tc := helloWorld(t)

	if tc.Kind() != KindStruct {
		t.Fatalf("Kind = %v", tc.Kind())
	}
	name, err := tc.Name()
	if err != nil || name != "HelloWorld" {
		t.Fatalf("Name = %q, %v", name, err)
	}
	n, err := tc.MemberCount()
	if err != nil || n != 3 {
		t.Fatalf("MemberCount = %d, %v", n, err)
	}

	wantNames := []string{"sender", "message", "count"}
	for i, want := range wantNames {
		got, err := tc.MemberName(uint32(i))
		if err != nil || got != want {
			t.Errorf("MemberName(%d) = %q, %v", i, got, err)
		}
		id, err := tc.MemberID(uint32(i))
		if err != nil || id != MemberID(i+1) {
			t.Errorf("MemberID(%d) = %d, %v", i, id, err)
		}
	}

	mt, err := tc.MemberType(2)
	if err != nil || mt != Long {
		t.Errorf("MemberType(2) = %v, %v", mt, err)
	}
	key, err := tc.IsMemberKey(0)
	if err != nil || !key {
		t.Errorf("IsMemberKey(0) = %v, %v", key, err)
	}

	idx, err := tc.FindMemberByName("message")
	if err != nil || idx != 1 {
		t.Errorf("FindMemberByName = %d, %v", idx, err)
	}
	idx, err = tc.FindMemberByID(3)
	if err != nil || idx != 2 {
		t.Errorf("FindMemberByID = %d, %v", idx, err)
	}
}

func TestIntrospectionErrors(t *testing.T) {
	tc := helloWorld(t)

	tests := []struct {
		name string
		call func() error
		want errors.ExceptionCode
	}{
		{"bounds", func() error { _, err := tc.MemberName(3); return err }, errors.ExBounds},
		{"bad member name", func() error { _, err := tc.FindMemberByName("nope"); return err }, errors.ExBadMemberName},
		{"bad member id", func() error { _, err := tc.FindMemberByID(42); return err }, errors.ExBadMemberID},
		{"content of struct", func() error { _, err := tc.ContentType(); return err }, errors.ExBadKind},
		{"name of primitive", func() error { _, err := Long.Name(); return err }, errors.ExBadKind},
		{"member count of string", func() error { _, err := String.MemberCount(); return err }, errors.ExBadKind},
		{"dimensions of sequence", func() error {
			seq := Must(NewSequence(Long, 0))
			_, err := seq.Dimensions()
			return err
		}, errors.ExBadKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := exceptionOf(t, err); got != tt.want {
				t.Errorf("exception = %v, want %v", got, tt.want)
			}
			if !stderrors.Is(err, errors.ErrTypeIntrospection) {
				t.Error("errors.Is(ErrTypeIntrospection) = false")
			}
		})
	}
}

func TestConstructorValidation(t *testing.T) {
	tests := []struct {
		name string
		call func() error
		want errors.ExceptionCode
	}{
		{"duplicate member", func() error {
			_, err := NewStruct("S", Member{Name: "a", Type: Long}, Member{Name: "a", Type: Short})
			return err
		}, errors.ExBadMemberName},
		{"duplicate id", func() error {
			_, err := NewStruct("S", Member{Name: "a", Type: Long, ID: 2}, Member{Name: "b", Type: Short})
			return err
		}, errors.ExBadMemberID},
		{"nil member type", func() error {
			_, err := NewStruct("S", Member{Name: "a"})
			return err
		}, errors.ExBadParam},
		{"empty enum", func() error { _, err := NewEnum("E"); return err }, errors.ExBadParam},
		{"zero dimension", func() error { _, err := NewArray(Long, 3, 0); return err }, errors.ExBadParam},
		{"string discriminator", func() error {
			_, err := NewUnion("U", String, Member{Name: "a", Type: Long, Labels: []int32{1}})
			return err
		}, errors.ExBadTypeCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := exceptionOf(t, err); got != tt.want {
				t.Errorf("exception = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollectionDescriptors(t *testing.T) {
	seq := Must(NewSequence(Octet, 2048))
	if n, err := seq.Length(); err != nil || n != 2048 {
		t.Errorf("sequence Length = %d, %v", n, err)
	}
	if ct, err := seq.ContentType(); err != nil || ct != Octet {
		t.Errorf("sequence ContentType = %v, %v", ct, err)
	}

	arr := Must(NewArray(Double, 2, 3))
	if n, err := arr.Length(); err != nil || n != 6 {
		t.Errorf("array Length = %d, %v", n, err)
	}
	dims, err := arr.Dimensions()
	if err != nil || len(dims) != 2 || dims[0] != 2 || dims[1] != 3 {
		t.Errorf("Dimensions = %v, %v", dims, err)
	}

	if NewString(0) != String {
		t.Error("unbounded string should be the shared descriptor")
	}
	if n, _ := NewString(64).Length(); n != 64 {
		t.Errorf("string bound = %d", n)
	}
}

func TestEnum(t *testing.T) {
	color := Must(NewEnum("Color",
		Enumerator{Name: "RED", Ordinal: 0},
		Enumerator{Name: "GREEN", Ordinal: 1},
		Enumerator{Name: "BLUE", Ordinal: 10},
	))

	if n, err := color.MemberCount(); err != nil || n != 3 {
		t.Errorf("MemberCount = %d, %v", n, err)
	}
	if name, err := color.MemberName(2); err != nil || name != "BLUE" {
		t.Errorf("MemberName(2) = %q, %v", name, err)
	}
	if ord, err := color.EnumOrdinal("BLUE"); err != nil || ord != 10 {
		t.Errorf("EnumOrdinal = %d, %v", ord, err)
	}
	if _, err := color.EnumOrdinal("PINK"); exceptionOf(t, err) != errors.ExBadMemberName {
		t.Errorf("unexpected %v", err)
	}
	if name, ok := color.EnumName(1); !ok || name != "GREEN" {
		t.Errorf("EnumName(1) = %q, %v", name, ok)
	}
}

func TestResolveAndEqual(t *testing.T) {
	inner := Must(NewAlias("Count", Long))
	outer := Must(NewAlias("Total", inner))
	if outer.Resolve() != Long {
		t.Errorf("Resolve = %v", outer.Resolve())
	}

	a := helloWorld(t)
	b := helloWorld(t)
	if !a.Equal(b) {
		t.Error("structurally identical structs should be equal")
	}
	c := Must(NewStruct("HelloWorld",
		Member{Name: "sender", Type: NewString(128), Key: true},
		Member{Name: "message", Type: NewString(1024)},
		Member{Name: "count", Type: Short},
	))
	if a.Equal(c) {
		t.Error("different member type should not be equal")
	}
	if Must(NewSequence(Long, 0)).Equal(Must(NewSequence(Long, 5))) {
		t.Error("different bound should not be equal")
	}
}

func TestString(t *testing.T) {
	point := Must(NewStruct("Point",
		Member{Name: "x", Type: Double},
		Member{Name: "y", Type: Double},
	))
	shape := Must(NewStruct("Shape",
		Member{Name: "id", Type: LongLong, Key: true},
		Member{Name: "name", Type: NewString(32)},
		Member{Name: "points", Type: Must(NewSequence(point, 16))},
		Member{Name: "matrix", Type: Must(NewArray(Float, 2, 2))},
		Member{Name: "blob", Type: Must(NewSequence(Octet, 0))},
	))

	got := shape.String()
	for _, want := range []string{
		"struct Shape {",
		"long long id; //@key",
		"string<32> name;",
		"sequence<Point, 16> points;",
		"float matrix[2][2];",
		"sequence<octet> blob;",
		"};",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("String() missing %q:\n%s", want, got)
		}
	}

	if got := Must(NewAlias("Name", NewString(8))).String(); got != "typedef string<8> Name;" {
		t.Errorf("alias = %q", got)
	}
	if got := ULongLong.String(); got != "unsigned long long" {
		t.Errorf("primitive = %q", got)
	}
}

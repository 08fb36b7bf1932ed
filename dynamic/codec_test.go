package dynamic_test

import (
	"bytes"
	stderrors "errors"
	"math"
	"reflect"
	"testing"

	"github.com/wippyai/dynamic-dds/dynamic"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/loopback"
	"github.com/wippyai/dynamic-dds/typecode"
)

var colorType = typecode.Must(typecode.NewEnum("Color",
	typecode.Enumerator{Name: "RED", Ordinal: 0},
	typecode.Enumerator{Name: "GREEN", Ordinal: 1},
	typecode.Enumerator{Name: "BLUE", Ordinal: 7},
))

var pointType = typecode.Must(typecode.NewStruct("Point",
	typecode.Member{Name: "x", Type: typecode.Long},
	typecode.Member{Name: "y", Type: typecode.Long},
))

var countType = typecode.Must(typecode.NewAlias("Count", typecode.ULong))

var everythingType = typecode.Must(typecode.NewStruct("Everything",
	typecode.Member{Name: "s", Type: typecode.Short},
	typecode.Member{Name: "l", Type: typecode.Long},
	typecode.Member{Name: "ll", Type: typecode.LongLong},
	typecode.Member{Name: "us", Type: typecode.UShort},
	typecode.Member{Name: "ul", Type: typecode.ULong},
	typecode.Member{Name: "ull", Type: typecode.ULongLong},
	typecode.Member{Name: "f", Type: typecode.Float},
	typecode.Member{Name: "d", Type: typecode.Double},
	typecode.Member{Name: "b", Type: typecode.Boolean},
	typecode.Member{Name: "c", Type: typecode.Char},
	typecode.Member{Name: "wc", Type: typecode.WChar},
	typecode.Member{Name: "o", Type: typecode.Octet},
	typecode.Member{Name: "str", Type: typecode.NewString(64)},
	typecode.Member{Name: "ws", Type: typecode.WString},
	typecode.Member{Name: "color", Type: colorType},
	typecode.Member{Name: "count", Type: countType},
	typecode.Member{Name: "origin", Type: pointType},
	typecode.Member{Name: "path", Type: typecode.Must(typecode.NewSequence(pointType, 0))},
	typecode.Member{Name: "ids", Type: typecode.Must(typecode.NewSequence(typecode.Long, 8))},
	typecode.Member{Name: "blob", Type: typecode.Must(typecode.NewSequence(typecode.Octet, 0))},
	typecode.Member{Name: "grid", Type: typecode.Must(typecode.NewArray(typecode.Short, 2, 2))},
))

func newParticipant(t *testing.T) *loopback.Participant {
	t.Helper()
	p := loopback.NewNetwork().CreateParticipant("codec", 0)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newCursor(t *testing.T, p *loopback.Participant, tc *typecode.TypeCode) *dynamic.Cursor {
	t.Helper()
	c, err := dynamic.NewCursor(p, tc)
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	t.Cleanup(func() { _ = c.Release() })
	return c
}

func fullValue() map[string]any {
	return map[string]any{
		"s":      int16(-12),
		"l":      int32(1 << 30),
		"ll":     int64(-1 << 50),
		"us":     uint16(65535),
		"ul":     uint32(4000000000),
		"ull":    uint64(math.MaxUint64),
		"f":      float32(1.5),
		"d":      math.Pi,
		"b":      true,
		"c":      byte('q'),
		"wc":     'é',
		"o":      uint8(200),
		"str":    "hello",
		"ws":     "wide ünïcode",
		"color":  int32(7),
		"count":  uint32(3),
		"origin": map[string]any{"x": int32(1), "y": int32(-1)},
		"path": []any{
			map[string]any{"x": int32(0), "y": int32(0)},
			map[string]any{"x": int32(5), "y": int32(6)},
		},
		"ids":  []any{int32(1), int32(2), int32(3)},
		"blob": []byte{0, 1, 2, 254, 255},
		"grid": []any{int16(1), int16(2), int16(3), int16(4)},
	}
}

func TestRoundTrip(t *testing.T) {
	p := newParticipant(t)
	c := newCursor(t, p, everythingType)

	want := fullValue()
	if err := dynamic.NewEncoder().Encode(want, c); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := dynamic.NewDecoder().Decode(c)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %#v\nwant: %#v", got, want)
	}
	if st := p.Stats(); st.LiveData != 1 || st.LiveStrings != 0 {
		t.Errorf("transient objects leaked: %+v", st)
	}
}

func TestEncodeAcceptsLooseTypes(t *testing.T) {
	p := newParticipant(t)
	c := newCursor(t, p, everythingType)

	in := map[string]any{
		"s":     -12,
		"ul":    float64(42),
		"f":     2,
		"c":     "q",
		"wc":    "é",
		"o":     255,
		"color": "GREEN",
		"ids":   []int{4, 5},
		"grid":  [4]int16{1, 2, 3, 4},
	}
	if err := dynamic.NewEncoder().Encode(in, c); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := dynamic.NewDecoder().Decode(c)
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]any)
	checks := map[string]any{
		"s":     int16(-12),
		"ul":    uint32(42),
		"f":     float32(2),
		"c":     byte('q'),
		"wc":    'é',
		"o":     uint8(255),
		"color": int32(1),
		"ids":   []any{int32(4), int32(5)},
		"grid":  []any{int16(1), int16(2), int16(3), int16(4)},
	}
	for k, want := range checks {
		if !reflect.DeepEqual(m[k], want) {
			t.Errorf("%s = %#v, want %#v", k, m[k], want)
		}
	}
}

func TestSparseEncodeDenseDecode(t *testing.T) {
	p := newParticipant(t)
	c := newCursor(t, p, everythingType)
	enc, dec := dynamic.NewEncoder(), dynamic.NewDecoder()

	// Fresh object decodes every member with its default.
	out, err := dec.Decode(c)
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]any)
	if len(m) != len(everythingType.Members()) {
		t.Fatalf("decoded %d members, want %d", len(m), len(everythingType.Members()))
	}
	if m["l"] != int32(0) || m["str"] != "" || m["blob"] == nil || len(m["path"].([]any)) != 0 {
		t.Errorf("defaults = %#v", m)
	}
	if m["color"] != int32(0) {
		t.Errorf("enum default = %v", m["color"])
	}

	if err := enc.Encode(map[string]any{"l": int32(9), "str": "keep"}, c); err != nil {
		t.Fatal(err)
	}
	// Unknown keys are ignored and missing members keep their contents.
	if err := enc.Encode(map[string]any{"l": int32(10), "nope": 1}, c); err != nil {
		t.Fatal(err)
	}
	out, _ = dec.Decode(c)
	m = out.(map[string]any)
	if m["l"] != int32(10) || m["str"] != "keep" {
		t.Errorf("after sparse update: l=%v str=%v", m["l"], m["str"])
	}
	if _, ok := m["nope"]; ok {
		t.Error("unknown key decoded")
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	out, _ = dec.Decode(c)
	if got := out.(map[string]any)["str"]; got != "" {
		t.Errorf("str after clear = %q", got)
	}
}

func TestRangeChecks(t *testing.T) {
	p := newParticipant(t)

	tests := []struct {
		member string
		value  any
		ok     bool
	}{
		{"l", int64(math.MaxInt32), true},
		{"l", int64(math.MaxInt32) + 1, false},
		{"l", int64(math.MinInt32), true},
		{"l", int64(math.MinInt32) - 1, false},
		{"s", 32767, true},
		{"s", 32768, false},
		{"us", 65535, true},
		{"us", 65536, false},
		{"us", -1, false},
		{"ul", uint64(math.MaxUint32), true},
		{"ul", uint64(math.MaxUint32) + 1, false},
		{"ull", uint64(math.MaxUint64), true},
		{"ull", -1, false},
		{"ll", uint64(math.MaxInt64) + 1, false},
		{"o", 255, true},
		{"o", 256, false},
		{"o", -1, false},
		{"color", int64(math.MaxInt32) + 1, false},
	}
	for _, tt := range tests {
		c := newCursor(t, p, everythingType)
		err := dynamic.NewEncoder().Encode(map[string]any{tt.member: tt.value}, c)
		if tt.ok && err != nil {
			t.Errorf("%s=%v: unexpected error %v", tt.member, tt.value, err)
		}
		if !tt.ok && !stderrors.Is(err, errors.ErrRange) {
			t.Errorf("%s=%v: expected range error, got %v", tt.member, tt.value, err)
		}
	}
}

func TestRangeErrorLeavesObjectUntouched(t *testing.T) {
	p := newParticipant(t)
	c := newCursor(t, p, everythingType)
	enc := dynamic.NewEncoder()

	if err := enc.Encode(map[string]any{"l": int32(5)}, c); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(map[string]any{"l": int64(1) << 31}, c); !stderrors.Is(err, errors.ErrRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if got, _ := c.Data().GetLong("l", 0); got != 5 {
		t.Errorf("l = %d after rejected write", got)
	}
}

func TestStringConstraints(t *testing.T) {
	p := newParticipant(t)
	c := newCursor(t, p, everythingType)
	enc := dynamic.NewEncoder()

	err := enc.Encode(map[string]any{"str": "a\x00b"}, c)
	if !stderrors.Is(err, errors.ErrInvalidValue) {
		t.Fatalf("NUL in STRING: %v", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || !reflect.DeepEqual(e.Path, []string{"str"}) {
		t.Errorf("error path = %v", e)
	}

	if err := enc.Encode(map[string]any{"ws": "a\x00b"}, c); err != nil {
		t.Errorf("NUL in WSTRING: %v", err)
	}
	if err := enc.Encode(map[string]any{"c": "ab"}, c); !stderrors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("two-byte CHAR: %v", err)
	}
	if err := enc.Encode(map[string]any{"color": "PURPLE"}, c); !stderrors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("unknown enumerator: %v", err)
	}
}

func TestTypeMismatch(t *testing.T) {
	p := newParticipant(t)
	enc := dynamic.NewEncoder()

	tests := []struct {
		name  string
		value any
	}{
		{"root not a map", []any{1}},
		{"bool from int", map[string]any{"b": 1}},
		{"string from int", map[string]any{"str": 1}},
		{"long from string", map[string]any{"l": "1"}},
		{"long from fraction", map[string]any{"l": 1.5}},
		{"struct from slice", map[string]any{"origin": []any{1, 2}}},
		{"sequence from map", map[string]any{"ids": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCursor(t, p, everythingType)
			if err := enc.Encode(tt.value, c); !stderrors.Is(err, errors.ErrTypeMismatch) {
				t.Fatalf("expected type mismatch, got %v", err)
			}
		})
	}
	if st := p.Stats(); st.LiveData != 0 {
		t.Errorf("child cursors leaked: %+v", st)
	}
}

func TestOctetFastPathMatchesElementwise(t *testing.T) {
	p := newParticipant(t)
	enc, dec := dynamic.NewEncoder(), dynamic.NewDecoder()

	blob := []byte{0, 1, 127, 128, 255}
	elems := make([]any, len(blob))
	for i, b := range blob {
		elems[i] = uint8(b)
	}

	fast := newCursor(t, p, everythingType)
	slow := newCursor(t, p, everythingType)
	if err := enc.Encode(map[string]any{"blob": blob}, fast); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(map[string]any{"blob": elems}, slow); err != nil {
		t.Fatal(err)
	}

	a, _ := fast.Data().GetOctetSeq("blob", 0)
	b, _ := slow.Data().GetOctetSeq("blob", 0)
	if !bytes.Equal(a, blob) || !bytes.Equal(b, blob) {
		t.Fatalf("stored bytes differ: %v / %v", a, b)
	}

	fv, _ := dec.Decode(fast)
	sv, _ := dec.Decode(slow)
	if !reflect.DeepEqual(fv, sv) {
		t.Errorf("decoded values differ")
	}

	// The element path still range-checks.
	if err := enc.Encode(map[string]any{"blob": []any{256}}, slow); !stderrors.Is(err, errors.ErrRange) {
		t.Errorf("octet element 256: %v", err)
	}
}

func TestOctetFastPathKeepsTail(t *testing.T) {
	p := newParticipant(t)
	enc := dynamic.NewEncoder()

	fast := newCursor(t, p, everythingType)
	slow := newCursor(t, p, everythingType)
	for _, c := range []*dynamic.Cursor{fast, slow} {
		if err := enc.Encode(map[string]any{"blob": []byte{1, 2, 3}}, c); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		fast []byte
		slow []any
		want []byte
	}{
		{"shorter", []byte{9}, []any{uint8(9)}, []byte{9, 2, 3}},
		{"same length", []byte{7, 8, 9}, []any{7, 8, 9}, []byte{7, 8, 9}},
		{"longer", []byte{4, 5, 6, 7}, []any{4, 5, 6, 7}, []byte{4, 5, 6, 7}},
		{"empty", []byte{}, []any{}, []byte{4, 5, 6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := enc.Encode(map[string]any{"blob": tt.fast}, fast); err != nil {
				t.Fatal(err)
			}
			if err := enc.Encode(map[string]any{"blob": tt.slow}, slow); err != nil {
				t.Fatal(err)
			}
			a, _ := fast.Data().GetOctetSeq("blob", 0)
			b, _ := slow.Data().GetOctetSeq("blob", 0)
			if !bytes.Equal(a, tt.want) || !bytes.Equal(b, tt.want) {
				t.Errorf("fast = %v, slow = %v, want %v", a, b, tt.want)
			}
		})
	}
}

var unionType = typecode.Must(typecode.NewUnion("Choice", typecode.Long,
	typecode.Member{Name: "a", Type: typecode.Long, Labels: []int32{1}},
	typecode.Member{Name: "b", Type: typecode.String, Labels: []int32{2}},
))

var withUnionType = typecode.Must(typecode.NewStruct("WithUnion",
	typecode.Member{Name: "id", Type: typecode.Long},
	typecode.Member{Name: "inner", Type: pointType},
	typecode.Member{Name: "choice", Type: unionType},
	typecode.Member{Name: "ld", Type: typecode.LongDouble},
))

func TestUnsupportedKindsReleaseChildren(t *testing.T) {
	p := newParticipant(t)
	c := newCursor(t, p, withUnionType)
	enc, dec := dynamic.NewEncoder(), dynamic.NewDecoder()

	err := enc.Encode(map[string]any{"inner": map[string]any{"x": 1}, "choice": map[string]any{"a": 1}}, c)
	if !stderrors.Is(err, errors.ErrUnsupportedKind) {
		t.Fatalf("union encode: %v", err)
	}
	if err := enc.Encode(map[string]any{"ld": 1.0}, c); !stderrors.Is(err, errors.ErrUnsupportedKind) {
		t.Fatalf("long double encode: %v", err)
	}
	if _, err := dec.Decode(c); !stderrors.Is(err, errors.ErrUnsupportedKind) {
		t.Fatalf("union decode: %v", err)
	}
	if st := p.Stats(); st.LiveData != 1 {
		t.Errorf("LiveData = %d, want only the root", st.LiveData)
	}

	// The root is still usable after the failures.
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := enc.Encode(map[string]any{"id": 4}, c); err != nil {
		t.Fatalf("Encode after failure: %v", err)
	}
}

func TestNestedErrorPath(t *testing.T) {
	p := newParticipant(t)
	c := newCursor(t, p, everythingType)

	err := dynamic.NewEncoder().Encode(map[string]any{
		"path": []any{map[string]any{"x": 1}, map[string]any{"y": int64(1) << 40}},
	}, c)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindRange {
		t.Fatalf("expected range error, got %v", err)
	}
	if want := []string{"path", "[1]", "y"}; !reflect.DeepEqual(e.Path, want) {
		t.Errorf("Path = %v, want %v", e.Path, want)
	}
	if st := p.Stats(); st.LiveData != 1 {
		t.Errorf("LiveData = %d after nested failure", st.LiveData)
	}
}

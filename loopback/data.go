package loopback

import (
	"unicode/utf8"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/resource"
	"github.com/wippyai/dynamic-dds/typecode"
)

// Data is the loopback implementation of dynamicdds.Data. A root object
// owns its storage; an object bound with BindComplexMember views a member
// of its parent's storage until it is unbound.
type Data struct {
	owner  *Participant
	handle resource.Handle
	tc     *typecode.TypeCode
	n      *node
	parent *Data
	child  *Data
	loaned bool
}

var _ dynamicdds.Data = (*Data)(nil)

func (d *Data) Type() *typecode.TypeCode {
	return d.tc
}

func (d *Data) MemberCount() uint32 {
	if d.n == nil {
		return 0
	}
	switch d.n.tc.Kind() {
	case typecode.KindStruct, typecode.KindArray, typecode.KindSequence:
		return uint32(d.n.length())
	}
	return 0
}

// live reports whether the handle still refers to this object. Handles are
// recycled, so a match on the handle alone is not enough.
func (d *Data) live() bool {
	v, ok := d.owner.objects.GetTyped(d.handle, classData)
	return ok && v == d
}

// check guards every accessor: the object must exist, be bound to a type
// and have no bound member.
func (d *Data) check(op string) error {
	if !d.live() {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeAlreadyDeleted, "%s on deleted data", op)
	}
	if d.n == nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "%s on unbound data", op)
	}
	if d.child != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "%s while a member is bound", op)
	}
	return nil
}

// writable rejects changes to loaned samples and the members bound
// under them.
func (d *Data) writable(op string) error {
	for x := d; x != nil; x = x.parent {
		if x.loaned {
			return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "%s on loaned data", op)
		}
	}
	return nil
}

func badMember(op string, cause error, detail string, args ...any) error {
	b := errors.New(errors.PhaseCursor, errors.KindReturnCode).
		Code(errors.RetcodeBadParameter).
		Detail(op+": "+detail, args...)
	if cause != nil {
		b = b.Cause(cause)
	}
	return b.Build()
}

// slot resolves a member to the node that contains it and its index there.
// With grow set, addressing one past the end of a sequence extends it.
func (d *Data) slot(op, name string, id typecode.MemberID, grow bool) (*node, int, *typecode.TypeCode, error) {
	if err := d.check(op); err != nil {
		return nil, 0, nil, err
	}
	n := d.n
	switch n.tc.Kind() {
	case typecode.KindStruct:
		var idx uint32
		var err error
		if name != "" {
			idx, err = n.tc.FindMemberByName(name)
		} else {
			idx, err = n.tc.FindMemberByID(id)
		}
		if err != nil {
			return nil, 0, nil, badMember(op, err, "no such member")
		}
		mt, _ := n.tc.MemberType(idx)
		return n, int(idx), mt, nil

	case typecode.KindArray, typecode.KindSequence:
		if name != "" {
			return nil, 0, nil, badMember(op, nil, "elements are addressed by id, not %q", name)
		}
		if id < 1 {
			return nil, 0, nil, badMember(op, nil, "element id %d out of range", id)
		}
		i := int(id - 1)
		if i >= n.length() {
			if n.tc.Kind() == typecode.KindArray || !grow {
				return nil, 0, nil, badMember(op, nil, "element id %d out of range (length %d)", id, n.length())
			}
			if bound, _ := n.tc.Length(); bound > 0 && uint32(id) > bound {
				return nil, 0, nil, badMember(op, nil, "element id %d exceeds sequence bound %d", id, bound)
			}
			n.grow(i + 1)
		}
		elem, _ := n.tc.ContentType()
		return n, i, elem, nil
	}
	return nil, 0, nil, badMember(op, nil, "%s has no members", n.tc.Kind())
}

func (d *Data) MemberType(name string, id typecode.MemberID) (*typecode.TypeCode, error) {
	if err := d.check("get_member_type"); err != nil {
		return nil, err
	}
	n := d.n
	if k := n.tc.Kind(); k == typecode.KindSequence && name == "" && id >= 1 {
		// Sequence members may be addressed past the live length when
		// they are about to be set.
		if bound, _ := n.tc.Length(); bound == 0 || uint32(id) <= bound {
			return n.tc.ContentType()
		}
	}
	_, _, mt, err := d.slot("get_member_type", name, id, false)
	return mt, err
}

func (d *Data) BindComplexMember(child dynamicdds.Data, name string, id typecode.MemberID) error {
	const op = "bind_complex_member"
	c, ok := child.(*Data)
	if !ok || c.owner != d.owner {
		return badMember(op, nil, "child was not created by this participant")
	}
	if !c.live() {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeAlreadyDeleted, "%s: child is deleted", op)
	}
	if c.n != nil || c.parent != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "%s: child is already bound", op)
	}
	mt, err := d.MemberType(name, id)
	if err != nil {
		return err
	}
	if !mt.Resolve().Kind().IsAggregate() {
		return badMember(op, nil, "member is %s, not an aggregate", mt.Resolve().Kind())
	}
	container, i, _, err := d.slot(op, name, id, true)
	if err != nil {
		return err
	}
	c.tc = mt
	c.n = container.kids[i]
	c.parent = d
	d.child = c
	return nil
}

func (d *Data) UnbindComplexMember(child dynamicdds.Data) error {
	c, ok := child.(*Data)
	if !ok || c.parent != d || d.child != c {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "unbind_complex_member: child is not bound here")
	}
	if c.child != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "unbind_complex_member: child has a bound member")
	}
	c.tc, c.n, c.parent = nil, nil, nil
	d.child = nil
	return nil
}

func (d *Data) ClearAllMembers() error {
	if err := d.check("clear_all_members"); err != nil {
		return err
	}
	if err := d.writable("clear_all_members"); err != nil {
		return err
	}
	d.n.reset()
	return nil
}

// get returns a scalar member after checking its kind.
func (d *Data) get(op, name string, id typecode.MemberID, kinds ...typecode.Kind) (any, error) {
	container, i, mt, err := d.slot(op, name, id, false)
	if err != nil {
		return nil, err
	}
	if err := kindIn(op, mt, kinds); err != nil {
		return nil, err
	}
	if container.octets() {
		return container.bytes[i], nil
	}
	return container.kids[i].val, nil
}

// set stores a scalar member after checking its kind. The kind is checked
// before slot so a rejected set does not grow a sequence.
func (d *Data) set(op, name string, id typecode.MemberID, v any, kinds ...typecode.Kind) error {
	if err := d.writable(op); err != nil {
		return err
	}
	mt, err := d.MemberType(name, id)
	if err != nil {
		return err
	}
	if err := kindIn(op, mt, kinds); err != nil {
		return err
	}
	container, i, _, err := d.slot(op, name, id, true)
	if err != nil {
		return err
	}
	if container.octets() {
		container.bytes[i] = v.(uint8)
		return nil
	}
	container.kids[i].val = v
	return nil
}

func kindIn(op string, mt *typecode.TypeCode, kinds []typecode.Kind) error {
	k := mt.Resolve().Kind()
	for _, want := range kinds {
		if k == want {
			return nil
		}
	}
	return badMember(op, nil, "member is %s", k)
}

func (d *Data) GetShort(name string, id typecode.MemberID) (int16, error) {
	v, err := d.get("get_short", name, id, typecode.KindShort)
	if err != nil {
		return 0, err
	}
	return v.(int16), nil
}

func (d *Data) SetShort(name string, id typecode.MemberID, v int16) error {
	return d.set("set_short", name, id, v, typecode.KindShort)
}

// GetLong also reads enum members as their ordinal.
func (d *Data) GetLong(name string, id typecode.MemberID) (int32, error) {
	v, err := d.get("get_long", name, id, typecode.KindLong, typecode.KindEnum)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

// SetLong also sets enum members, rejecting undeclared ordinals.
func (d *Data) SetLong(name string, id typecode.MemberID, v int32) error {
	const op = "set_long"
	mt, err := d.MemberType(name, id)
	if err != nil {
		return err
	}
	if et := mt.Resolve(); et.Kind() == typecode.KindEnum {
		if _, ok := et.EnumName(v); !ok {
			return badMember(op, nil, "%d is not an enumerator of %s", v, enumName(et))
		}
	}
	return d.set(op, name, id, v, typecode.KindLong, typecode.KindEnum)
}

func enumName(tc *typecode.TypeCode) string {
	name, _ := tc.Name()
	return name
}

func (d *Data) GetUShort(name string, id typecode.MemberID) (uint16, error) {
	v, err := d.get("get_ushort", name, id, typecode.KindUShort)
	if err != nil {
		return 0, err
	}
	return v.(uint16), nil
}

func (d *Data) SetUShort(name string, id typecode.MemberID, v uint16) error {
	return d.set("set_ushort", name, id, v, typecode.KindUShort)
}

func (d *Data) GetULong(name string, id typecode.MemberID) (uint32, error) {
	v, err := d.get("get_ulong", name, id, typecode.KindULong)
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

func (d *Data) SetULong(name string, id typecode.MemberID, v uint32) error {
	return d.set("set_ulong", name, id, v, typecode.KindULong)
}

func (d *Data) GetLongLong(name string, id typecode.MemberID) (int64, error) {
	v, err := d.get("get_longlong", name, id, typecode.KindLongLong)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (d *Data) SetLongLong(name string, id typecode.MemberID, v int64) error {
	return d.set("set_longlong", name, id, v, typecode.KindLongLong)
}

func (d *Data) GetULongLong(name string, id typecode.MemberID) (uint64, error) {
	v, err := d.get("get_ulonglong", name, id, typecode.KindULongLong)
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func (d *Data) SetULongLong(name string, id typecode.MemberID, v uint64) error {
	return d.set("set_ulonglong", name, id, v, typecode.KindULongLong)
}

func (d *Data) GetFloat(name string, id typecode.MemberID) (float32, error) {
	v, err := d.get("get_float", name, id, typecode.KindFloat)
	if err != nil {
		return 0, err
	}
	return v.(float32), nil
}

func (d *Data) SetFloat(name string, id typecode.MemberID, v float32) error {
	return d.set("set_float", name, id, v, typecode.KindFloat)
}

func (d *Data) GetDouble(name string, id typecode.MemberID) (float64, error) {
	v, err := d.get("get_double", name, id, typecode.KindDouble)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (d *Data) SetDouble(name string, id typecode.MemberID, v float64) error {
	return d.set("set_double", name, id, v, typecode.KindDouble)
}

func (d *Data) GetBoolean(name string, id typecode.MemberID) (bool, error) {
	v, err := d.get("get_boolean", name, id, typecode.KindBoolean)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (d *Data) SetBoolean(name string, id typecode.MemberID, v bool) error {
	return d.set("set_boolean", name, id, v, typecode.KindBoolean)
}

func (d *Data) GetChar(name string, id typecode.MemberID) (byte, error) {
	v, err := d.get("get_char", name, id, typecode.KindChar)
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

func (d *Data) SetChar(name string, id typecode.MemberID, v byte) error {
	return d.set("set_char", name, id, v, typecode.KindChar)
}

func (d *Data) GetWChar(name string, id typecode.MemberID) (rune, error) {
	v, err := d.get("get_wchar", name, id, typecode.KindWChar)
	if err != nil {
		return 0, err
	}
	return v.(rune), nil
}

func (d *Data) SetWChar(name string, id typecode.MemberID, v rune) error {
	return d.set("set_wchar", name, id, v, typecode.KindWChar)
}

func (d *Data) GetOctet(name string, id typecode.MemberID) (uint8, error) {
	v, err := d.get("get_octet", name, id, typecode.KindOctet)
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

func (d *Data) SetOctet(name string, id typecode.MemberID, v uint8) error {
	return d.set("set_octet", name, id, v, typecode.KindOctet)
}

// GetString returns a copy of the member in a buffer that stays live until
// Free.
func (d *Data) GetString(name string, id typecode.MemberID) (dynamicdds.TransientString, error) {
	v, err := d.get("get_string", name, id, typecode.KindString)
	if err != nil {
		return nil, err
	}
	return d.owner.newString(v.(string))
}

func (d *Data) SetString(name string, id typecode.MemberID, v string) error {
	if err := d.checkBound("set_string", name, id, len(v)); err != nil {
		return err
	}
	return d.set("set_string", name, id, v, typecode.KindString)
}

func (d *Data) GetWString(name string, id typecode.MemberID) (dynamicdds.TransientString, error) {
	v, err := d.get("get_wstring", name, id, typecode.KindWString)
	if err != nil {
		return nil, err
	}
	return d.owner.newString(v.(string))
}

func (d *Data) SetWString(name string, id typecode.MemberID, v string) error {
	if err := d.checkBound("set_wstring", name, id, utf8.RuneCountInString(v)); err != nil {
		return err
	}
	return d.set("set_wstring", name, id, v, typecode.KindWString)
}

// checkBound rejects strings longer than a bounded member allows.
func (d *Data) checkBound(op, name string, id typecode.MemberID, length int) error {
	mt, err := d.MemberType(name, id)
	if err != nil {
		return err
	}
	mt = mt.Resolve()
	if k := mt.Kind(); k != typecode.KindString && k != typecode.KindWString {
		return nil
	}
	if bound, _ := mt.Length(); bound > 0 && length > int(bound) {
		return badMember(op, nil, "length %d exceeds bound %d", length, bound)
	}
	return nil
}

// octetMember resolves a sequence<octet> member node.
func (d *Data) octetMember(op, name string, id typecode.MemberID, grow bool) (*node, error) {
	container, i, mt, err := d.slot(op, name, id, grow)
	if err != nil {
		return nil, err
	}
	if container.octets() {
		return nil, badMember(op, nil, "member is OCTET, not a sequence")
	}
	n := container.kids[i]
	if !n.octets() {
		return nil, badMember(op, nil, "member is %s, not sequence<octet>", mt.Resolve().Kind())
	}
	return n, nil
}

func (d *Data) GetOctetSeq(name string, id typecode.MemberID) ([]byte, error) {
	n, err := d.octetMember("get_octet_seq", name, id, false)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, n.bytes...), nil
}

func (d *Data) SetOctetSeq(name string, id typecode.MemberID, v []byte) error {
	const op = "set_octet_seq"
	if err := d.writable(op); err != nil {
		return err
	}
	n, err := d.octetMember(op, name, id, true)
	if err != nil {
		return err
	}
	if bound, _ := n.tc.Length(); bound > 0 && len(v) > int(bound) {
		return badMember(op, nil, "length %d exceeds sequence bound %d", len(v), bound)
	}
	n.bytes = append(n.bytes[:0], v...)
	return nil
}

// transientString is a string handed out by GetString. It counts as a live
// object of the participant until freed.
type transientString struct {
	owner  *Participant
	handle resource.Handle
	s      string
}

func (p *Participant) newString(s string) (dynamicdds.TransientString, error) {
	ts := &transientString{owner: p, s: s}
	h, err := p.objects.Insert(classString, ts)
	if err != nil {
		return nil, errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeAlreadyDeleted, "participant closed")
	}
	ts.handle = h
	return ts, nil
}

func (s *transientString) String() string { return s.s }

// Free releases the buffer. Freeing twice, or after the participant
// closed, is a no-op.
func (s *transientString) Free() {
	if s.handle == 0 {
		return
	}
	_, _ = s.owner.objects.Remove(s.handle)
	s.handle = 0
}

// Drop forgets the handle once the table lets go of the string.
func (s *transientString) Drop() { s.handle = 0 }

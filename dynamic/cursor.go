package dynamic

import (
	stderrors "errors"
	"strconv"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

// Member addresses one member of a data object, by name for struct members
// and by 1-based id for array and sequence elements.
type Member struct {
	Name string
	ID   typecode.MemberID
}

// ByName addresses a struct member.
func ByName(name string) Member {
	return Member{Name: name}
}

// ByID addresses a member by id. Element i of a collection has id i+1.
func ByID(id typecode.MemberID) Member {
	return Member{ID: id}
}

// Element addresses the zero-based element i of an array or sequence.
func Element(i int) Member {
	return Member{ID: typecode.MemberID(i + 1)}
}

func (m Member) String() string {
	if m.Name != "" {
		return m.Name
	}
	return "[" + strconv.Itoa(int(m.ID)-1) + "]"
}

// Cursor is a handle on a dynamic data object that enforces nested binding:
// at most one child is bound at a time, and a cursor with a bound child can
// be neither cleared nor released.
type Cursor struct {
	data     dynamicdds.Data
	factory  dynamicdds.DataFactory
	parent   *Cursor
	child    *Cursor
	owned    bool
	released bool
}

// NewCursor allocates a data object of type tc. The cursor owns the object
// and deletes it on Release.
func NewCursor(f dynamicdds.DataFactory, tc *typecode.TypeCode) (*Cursor, error) {
	if tc == nil {
		return nil, errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeBadParameter, "nil type")
	}
	d, err := f.NewData(tc)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.NullResult(errors.PhaseCursor, "create_data")
	}
	return &Cursor{data: d, factory: f, owned: true}, nil
}

// Wrap borrows an existing data object, such as one from a writer's
// reusable sample or a reader's loan. Child cursors are allocated from f.
func Wrap(f dynamicdds.DataFactory, d dynamicdds.Data) *Cursor {
	return &Cursor{data: d, factory: f}
}

// Data returns the underlying data object.
func (c *Cursor) Data() dynamicdds.Data {
	return c.data
}

// Type returns the descriptor of the object.
func (c *Cursor) Type() *typecode.TypeCode {
	return c.data.Type()
}

// Kind returns the kind of the object with aliases resolved.
func (c *Cursor) Kind() typecode.Kind {
	tc := c.data.Type()
	if tc == nil {
		return typecode.KindNull
	}
	return tc.Resolve().Kind()
}

// MemberType returns the descriptor of member m.
func (c *Cursor) MemberType(m Member) (*typecode.TypeCode, error) {
	if err := c.usable("member_type"); err != nil {
		return nil, err
	}
	return c.data.MemberType(m.Name, m.ID)
}

// Bind allocates a child cursor and binds it to the complex member m.
func (c *Cursor) Bind(m Member) (*Cursor, error) {
	if err := c.usable("bind_complex_member"); err != nil {
		return nil, err
	}
	d, err := c.factory.NewData(nil)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.NullResult(errors.PhaseCursor, "create_data")
	}
	if err := c.data.BindComplexMember(d, m.Name, m.ID); err != nil {
		return nil, stderrors.Join(err, c.factory.DeleteData(d))
	}
	child := &Cursor{data: d, factory: c.factory, parent: c, owned: true}
	c.child = child
	return child, nil
}

// Unbind detaches a child cursor from its parent. The child must not have
// a bound child of its own.
func (c *Cursor) Unbind() error {
	if c.parent == nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "cursor is not bound")
	}
	if c.child != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "unbind with a bound child")
	}
	p := c.parent
	if err := p.data.UnbindComplexMember(c.data); err != nil {
		return err
	}
	p.child = nil
	c.parent = nil
	return nil
}

// Clear resets every member of the object.
func (c *Cursor) Clear() error {
	if err := c.usable("clear_all_members"); err != nil {
		return err
	}
	return c.data.ClearAllMembers()
}

// Release deletes an owned object. Borrowed objects are left to their
// owner. Releasing twice is a no-op.
func (c *Cursor) Release() error {
	if c.released {
		return nil
	}
	if c.child != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "release with a bound child")
	}
	if c.parent != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "release while bound")
	}
	c.released = true
	if !c.owned {
		return nil
	}
	return c.factory.DeleteData(c.data)
}

func (c *Cursor) usable(op string) error {
	if c.released {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeAlreadyDeleted, "%s on released cursor", op)
	}
	if c.child != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "%s with a bound child", op)
	}
	return nil
}

// WithMember binds a transient child cursor to m, runs fn on it, then
// unbinds and releases the child. Cleanup runs even when fn fails; the
// error of fn comes first in the returned error.
func (c *Cursor) WithMember(m Member, fn func(child *Cursor) error) error {
	child, err := c.Bind(m)
	if err != nil {
		return err
	}
	err = fn(child)
	if uerr := child.Unbind(); uerr != nil {
		return stderrors.Join(err, uerr)
	}
	return stderrors.Join(err, child.Release())
}

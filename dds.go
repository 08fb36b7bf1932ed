package dynamicdds

import (
	"github.com/wippyai/dynamic-dds/typecode"
)

// LengthUnlimited requests every available sample from a read or take.
const LengthUnlimited int32 = -1

// SampleStateKind tells whether a sample has been read before.
type SampleStateKind uint32

const (
	ReadSampleState    SampleStateKind = 1 << 0
	NotReadSampleState SampleStateKind = 1 << 1
)

// ViewStateKind tells whether the instance is new to the reader.
type ViewStateKind uint32

const (
	NewViewState    ViewStateKind = 1 << 0
	NotNewViewState ViewStateKind = 1 << 1
)

// InstanceStateKind is the lifecycle position of an instance.
type InstanceStateKind uint32

const (
	AliveInstanceState             InstanceStateKind = 1 << 0
	NotAliveDisposedInstanceState  InstanceStateKind = 1 << 1
	NotAliveNoWritersInstanceState InstanceStateKind = 1 << 2
)

// State masks select samples by OR-ing state kinds.
type (
	SampleStateMask   uint32
	ViewStateMask     uint32
	InstanceStateMask uint32
)

const (
	AnySampleState   SampleStateMask   = 0xffff
	AnyViewState     ViewStateMask     = 0xffff
	AnyInstanceState InstanceStateMask = 0xffff

	NotAliveInstanceState = InstanceStateMask(NotAliveDisposedInstanceState | NotAliveNoWritersInstanceState)
)

// Has reports whether the mask selects s.
func (m SampleStateMask) Has(s SampleStateKind) bool { return uint32(m)&uint32(s) != 0 }

// Has reports whether the mask selects v.
func (m ViewStateMask) Has(v ViewStateKind) bool { return uint32(m)&uint32(v) != 0 }

// Has reports whether the mask selects i.
func (m InstanceStateMask) Has(i InstanceStateKind) bool { return uint32(m)&uint32(i) != 0 }

// StatusMask selects listener callbacks.
type StatusMask uint32

const StatusDataAvailable StatusMask = 1 << 10

// InstanceHandle identifies one instance of a topic. The zero value is
// HandleNil.
type InstanceHandle struct {
	KeyHash [16]byte
	Valid   bool
}

// HandleNil lets the middleware derive the instance from the key members.
var HandleNil = InstanceHandle{}

// IsNil reports whether h is the nil handle.
func (h InstanceHandle) IsNil() bool { return !h.Valid }

// Time is a middleware timestamp.
type Time struct {
	Sec     int32
	Nanosec uint32
}

// SequenceNumber orders samples of one writer.
type SequenceNumber struct {
	High int32
	Low  uint32
}

// Int64 returns the sequence number as a single integer.
func (s SequenceNumber) Int64() int64 {
	return int64(s.High)<<32 | int64(s.Low)
}

// SampleInfo is the per-sample metadata delivered alongside a loaned data
// object.
type SampleInfo struct {
	SourceTimestamp           Time
	ReceptionTimestamp        Time
	InstanceHandle            InstanceHandle
	PublicationHandle         InstanceHandle
	PublicationSequenceNumber SequenceNumber
	ReceptionSequenceNumber   SequenceNumber
	DisposedGenerationCount   int32
	NoWritersGenerationCount  int32
	SampleRank                int32
	GenerationRank            int32
	AbsoluteGenerationRank    int32
	SampleState               SampleStateKind
	ViewState                 ViewStateKind
	InstanceState             InstanceStateKind
	ValidData                 bool
}

// TransientString is a string buffer owned by the middleware. Free must be
// called once the contents have been copied out.
type TransientString interface {
	String() string
	Free()
}

// Data is a dynamic data object: a cursor over middleware-owned memory laid
// out by a type descriptor. Members are addressed by name, or by id when
// name is empty. Array and sequence elements use 1-based ids.
type Data interface {
	// Type returns the descriptor the object is bound to, or nil while an
	// unbound child is waiting for BindComplexMember.
	Type() *typecode.TypeCode

	// MemberCount returns the number of members of a struct or the live
	// element count of a sequence or array.
	MemberCount() uint32

	// MemberType returns the descriptor of one member.
	MemberType(name string, id typecode.MemberID) (*typecode.TypeCode, error)

	// BindComplexMember points child at an aggregate member of this object.
	// The child must be unbound before this object is reused.
	BindComplexMember(child Data, name string, id typecode.MemberID) error

	// UnbindComplexMember releases a binding made by BindComplexMember.
	UnbindComplexMember(child Data) error

	// ClearAllMembers resets every member to its default.
	ClearAllMembers() error

	GetShort(name string, id typecode.MemberID) (int16, error)
	SetShort(name string, id typecode.MemberID, v int16) error
	GetLong(name string, id typecode.MemberID) (int32, error)
	SetLong(name string, id typecode.MemberID, v int32) error
	GetUShort(name string, id typecode.MemberID) (uint16, error)
	SetUShort(name string, id typecode.MemberID, v uint16) error
	GetULong(name string, id typecode.MemberID) (uint32, error)
	SetULong(name string, id typecode.MemberID, v uint32) error
	GetLongLong(name string, id typecode.MemberID) (int64, error)
	SetLongLong(name string, id typecode.MemberID, v int64) error
	GetULongLong(name string, id typecode.MemberID) (uint64, error)
	SetULongLong(name string, id typecode.MemberID, v uint64) error
	GetFloat(name string, id typecode.MemberID) (float32, error)
	SetFloat(name string, id typecode.MemberID, v float32) error
	GetDouble(name string, id typecode.MemberID) (float64, error)
	SetDouble(name string, id typecode.MemberID, v float64) error
	GetBoolean(name string, id typecode.MemberID) (bool, error)
	SetBoolean(name string, id typecode.MemberID, v bool) error
	GetChar(name string, id typecode.MemberID) (byte, error)
	SetChar(name string, id typecode.MemberID, v byte) error
	GetWChar(name string, id typecode.MemberID) (rune, error)
	SetWChar(name string, id typecode.MemberID, v rune) error
	GetOctet(name string, id typecode.MemberID) (uint8, error)
	SetOctet(name string, id typecode.MemberID, v uint8) error

	GetString(name string, id typecode.MemberID) (TransientString, error)
	SetString(name string, id typecode.MemberID, v string) error
	GetWString(name string, id typecode.MemberID) (TransientString, error)
	SetWString(name string, id typecode.MemberID, v string) error

	// GetOctetSeq and SetOctetSeq move a whole sequence<octet> member in
	// one call.
	GetOctetSeq(name string, id typecode.MemberID) ([]byte, error)
	SetOctetSeq(name string, id typecode.MemberID, v []byte) error
}

// DataFactory allocates and releases data objects. NewData with a nil
// descriptor returns an unbound object for use with BindComplexMember.
type DataFactory interface {
	NewData(tc *typecode.TypeCode) (Data, error)
	DeleteData(d Data) error
}

// DataWriter publishes dynamic data objects on one topic.
type DataWriter interface {
	Name() string
	Type() *typecode.TypeCode
	CreateData() (Data, error)
	DeleteData(d Data) error
	Write(d Data, h InstanceHandle) error
	Dispose(d Data, h InstanceHandle) error
	UnregisterInstance(d Data, h InstanceHandle) error
}

// Loan is a borrowed sequence of data objects and their metadata. It is
// valid until handed back with DataReader.ReturnLoan.
type Loan interface {
	Len() int
	Data(i int) Data
	Info(i int) *SampleInfo
}

// Listener receives data-available notifications on a middleware
// goroutine.
type Listener interface {
	OnDataAvailable(r DataReader)
}

// DataReader receives dynamic data objects from one topic. Read and Take
// fail with the NO_DATA return code when nothing matches.
type DataReader interface {
	Name() string
	Type() *typecode.TypeCode
	Read(maxSamples int32, s SampleStateMask, v ViewStateMask, i InstanceStateMask) (Loan, error)
	Take(maxSamples int32, s SampleStateMask, v ViewStateMask, i InstanceStateMask) (Loan, error)
	ReturnLoan(l Loan) error

	// SetListener installs l for the statuses in mask. A nil listener with
	// a zero mask removes it.
	SetListener(l Listener, mask StatusMask) error
}

// EntityLookup resolves writers and readers by full name, for example
// "MyPublisher::HelloWorldWriter". A nil result means no such entity.
type EntityLookup interface {
	LookupDataWriter(fullName string) DataWriter
	LookupDataReader(fullName string) DataReader
}

// Middleware is the capability set the sample exchange layer consumes.
type Middleware interface {
	EntityLookup
	DataFactory

	// Close deletes every contained entity.
	Close() error
}

package resource

// Handle is an opaque reference to an object in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Class tags the kind of object a handle refers to. Classes are chosen by
// the table owner; the table only uses them for lookups and accounting.
type Class uint32

// Event types for object lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventBorrowed
	EventBorrowReturned
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	default:
		return "unknown"
	}
}

// Event represents an object lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Class  Class
	Type   EventType
}

// Observer receives notifications about object lifecycle events.
// Observers run synchronously under the table's observer lock and must not
// call back into Subscribe or Unsubscribe.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Backend provides the underlying storage mechanism for objects.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(class Class, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes an object and returns its value.
	// Fails with ErrNotFound for unknown handles and ErrOutstandingBorrow
	// while the object is borrowed.
	Drop(handle Handle) (any, error)

	// Borrow increments the borrow count for a handle.
	Borrow(handle Handle) error

	// ReturnBorrow decrements the borrow count for a handle.
	ReturnBorrow(handle Handle) error

	// Borrowed reports whether a handle has outstanding borrows.
	Borrowed(handle Handle) bool

	// ClassOf returns the class a handle was created with.
	ClassOf(handle Handle) (Class, bool)

	// Len and Count report live objects in total and per class.
	Len() int
	Count(class Class) int

	// Each visits live objects until fn returns false. fn must not call
	// back into the backend.
	Each(fn func(Handle, Class, any) bool)

	// Close releases all objects held by the backend.
	Close() error
}

// Table manages objects with class information and observer support.
type Table interface {
	// Insert adds a value and returns its handle.
	Insert(class Class, value any) (Handle, error)

	// GetTyped retrieves a value only if it belongs to the expected class.
	GetTyped(handle Handle, class Class) (any, bool)

	// Remove drops an object and returns its value.
	Remove(handle Handle) (any, error)

	// Borrow pins an object so Remove fails until the borrow is returned.
	Borrow(handle Handle) error

	// ReturnBorrow releases one borrow taken with Borrow.
	ReturnBorrow(handle Handle) error

	// Borrowed reports whether the handle has outstanding borrows.
	Borrowed(handle Handle) bool

	// Subscribe adds an observer for lifecycle events.
	Subscribe(Observer)

	// Unsubscribe removes an observer.
	Unsubscribe(Observer)

	// Len returns the number of live objects.
	Len() int

	// Count returns the number of live objects of one class.
	Count(class Class) int

	// Each visits live objects until fn returns false.
	Each(fn func(Handle, Class, any) bool)

	// Clear drops all objects that are not borrowed.
	Clear()

	// Close releases all objects and stops accepting operations.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup when
// their handle is dropped.
type Dropper interface {
	Drop()
}

package resource

import (
	"sync"
)

// UnifiedTable implements the Table interface on top of a Backend.
type UnifiedTable struct {
	backend   Backend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

var _ Table = (*UnifiedTable)(nil)

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return NewTableWithBackend(NewLocalBackend())
}

// NewTableWithBackend creates a unified table over b.
func NewTableWithBackend(b Backend) *UnifiedTable {
	return &UnifiedTable{backend: b}
}

// Insert adds a value and returns its handle.
func (t *UnifiedTable) Insert(class Class, value any) (Handle, error) {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0, ErrClosed
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(class, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Class:  class,
		Value:  value,
	})

	return handle, nil
}

// GetTyped retrieves a value only if it belongs to the expected class.
func (t *UnifiedTable) GetTyped(handle Handle, class Class) (any, bool) {
	actual, ok := t.backend.ClassOf(handle)
	if !ok || actual != class {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Remove drops an object and returns its value. Values implementing
// Dropper have Drop called before observers are notified.
func (t *UnifiedTable) Remove(handle Handle) (any, error) {
	class, _ := t.backend.ClassOf(handle)
	value, err := t.backend.Drop(handle)
	if err != nil {
		return nil, err
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Class:  class,
		Value:  value,
	})

	return value, nil
}

// Borrow pins an object so Remove fails until the borrow is returned.
func (t *UnifiedTable) Borrow(handle Handle) error {
	if err := t.backend.Borrow(handle); err != nil {
		return err
	}
	class, _ := t.backend.ClassOf(handle)
	t.notify(Event{Type: EventBorrowed, Handle: handle, Class: class})
	return nil
}

// ReturnBorrow releases one borrow taken with Borrow.
func (t *UnifiedTable) ReturnBorrow(handle Handle) error {
	if err := t.backend.ReturnBorrow(handle); err != nil {
		return err
	}
	class, _ := t.backend.ClassOf(handle)
	t.notify(Event{Type: EventBorrowReturned, Handle: handle, Class: class})
	return nil
}

// Borrowed reports whether the handle has outstanding borrows.
func (t *UnifiedTable) Borrowed(handle Handle) bool {
	return t.backend.Borrowed(handle)
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live objects.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Count returns the number of live objects of one class.
func (t *UnifiedTable) Count(class Class) int {
	return t.backend.Count(class)
}

// Each visits live objects until fn returns false. fn must not call back
// into the table.
func (t *UnifiedTable) Each(fn func(Handle, Class, any) bool) {
	t.backend.Each(fn)
}

// Clear drops all objects that are not borrowed.
func (t *UnifiedTable) Clear() {
	// Collect handles first to avoid holding the backend lock during Remove
	var handles []Handle
	t.backend.Each(func(h Handle, _ Class, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		_, _ = t.Remove(h)
	}
}

// Close releases all objects and stops accepting operations.
func (t *UnifiedTable) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

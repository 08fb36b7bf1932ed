package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed            = errors.New("resource backend closed")
	ErrNotFound          = errors.New("resource handle not found")
	ErrOutstandingBorrow = errors.New("cannot drop resource with outstanding borrows")
)

// LocalBackend is an in-memory object store with borrow tracking.
// Freed slots are reused, so a stale handle may refer to a newer object.
type LocalBackend struct {
	entries  []entry
	freeList []Handle
	live     map[Class]int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	class       Class
	borrowCount uint32
	valid       bool
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
		live:     make(map[Class]int),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(class Class, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{
		class: class,
		value: value,
		valid: true,
	}
	b.live[class]++

	if len(b.freeList) > 0 {
		handle := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[handle-1] = e
		return handle, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// lookup returns the live entry for handle. Callers hold b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 {
		return nil
	}
	idx := int(handle - 1)
	if idx >= len(b.entries) {
		return nil
	}
	e := &b.entries[idx]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Drop removes an object and returns its value.
func (b *LocalBackend) Drop(handle Handle) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	e := b.lookup(handle)
	if e == nil {
		return nil, ErrNotFound
	}
	if e.borrowCount > 0 {
		return nil, ErrOutstandingBorrow
	}

	value := e.value
	b.live[e.class]--
	*e = entry{}
	b.freeList = append(b.freeList, handle)

	return value, nil
}

// Close releases all objects, calling Drop on values that implement Dropper.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			b.entries[i] = entry{}
		}
	}

	b.entries = nil
	b.freeList = nil
	clear(b.live)
	return nil
}

// Borrow increments the borrow count for a handle.
func (b *LocalBackend) Borrow(handle Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return ErrNotFound
	}
	e.borrowCount++
	return nil
}

// ReturnBorrow decrements the borrow count for a handle.
func (b *LocalBackend) ReturnBorrow(handle Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return ErrNotFound
	}
	e.borrowCount--
	return nil
}

// Borrowed reports whether the handle has outstanding borrows.
func (b *LocalBackend) Borrowed(handle Handle) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	return e != nil && e.borrowCount > 0
}

// ClassOf returns the class for a handle.
func (b *LocalBackend) ClassOf(handle Handle) (Class, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.class, true
}

// Len returns the number of live objects.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, n := range b.live {
		count += n
	}
	return count
}

// Count returns the number of live objects of one class.
func (b *LocalBackend) Count(class Class) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.live[class]
}

// Each iterates over all live objects until fn returns false.
func (b *LocalBackend) Each(fn func(Handle, Class, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Handle(i+1), e.class, e.value) {
				break
			}
		}
	}
}

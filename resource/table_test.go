package resource

import (
	"errors"
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestUnifiedTable_Basic(t *testing.T) {
	table := NewTable()

	h, err := table.Insert(1, "test")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.GetTyped(h, 1)
	if !ok {
		t.Fatal("GetTyped with correct class failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}
	if _, ok = table.GetTyped(h, 2); ok {
		t.Fatal("GetTyped with wrong class should fail")
	}

	val, err = table.Remove(h)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
	if _, err = table.Remove(h); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on double remove, got %v", err)
	}
}

func TestUnifiedTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h, _ := table.Insert(1, "test")
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated {
		t.Fatal("Expected EventCreated")
	}
	if obs.events[0].Handle != h || obs.events[0].Class != 1 {
		t.Fatal("Wrong handle or class in event")
	}

	if err := table.Borrow(h); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	if err := table.ReturnBorrow(h); err != nil {
		t.Fatalf("ReturnBorrow failed: %v", err)
	}
	if _, err := table.Remove(h); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	want := []EventType{EventCreated, EventBorrowed, EventBorrowReturned, EventDropped}
	if len(obs.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(obs.events))
	}
	for i, typ := range want {
		if obs.events[i].Type != typ {
			t.Errorf("event %d: got %s, want %s", i, obs.events[i].Type, typ)
		}
	}

	table.Unsubscribe(obs)
	_, _ = table.Insert(1, "test2")
	if len(obs.events) != len(want) {
		t.Fatal("Should not receive events after Unsubscribe")
	}
}

func TestUnifiedTable_ObserverFunc(t *testing.T) {
	table := NewTable()
	var dropped []Handle
	table.Subscribe(ObserverFunc(func(e Event) {
		if e.Type == EventDropped {
			dropped = append(dropped, e.Handle)
		}
	}))

	h, _ := table.Insert(3, 42)
	_, _ = table.Remove(h)
	if len(dropped) != 1 || dropped[0] != h {
		t.Fatalf("dropped = %v, want [%d]", dropped, h)
	}
}

func TestUnifiedTable_BorrowBlocksRemove(t *testing.T) {
	table := NewTable()
	h, _ := table.Insert(1, "loaned")

	if err := table.Borrow(h); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	if !table.Borrowed(h) {
		t.Fatal("Expected Borrowed() == true")
	}
	if _, err := table.Remove(h); !errors.Is(err, ErrOutstandingBorrow) {
		t.Fatalf("Expected ErrOutstandingBorrow, got %v", err)
	}
	if err := table.ReturnBorrow(h); err != nil {
		t.Fatalf("ReturnBorrow failed: %v", err)
	}
	if _, err := table.Remove(h); err != nil {
		t.Fatalf("Remove after ReturnBorrow failed: %v", err)
	}
}

func TestUnifiedTable_Count(t *testing.T) {
	table := NewTable()

	a, _ := table.Insert(1, "a")
	_, _ = table.Insert(1, "b")
	_, _ = table.Insert(2, "c")

	if got := table.Count(1); got != 2 {
		t.Fatalf("Count(1) = %d, want 2", got)
	}
	if got := table.Count(2); got != 1 {
		t.Fatalf("Count(2) = %d, want 1", got)
	}
	_, _ = table.Remove(a)
	if got := table.Count(1); got != 1 {
		t.Fatalf("Count(1) after remove = %d, want 1", got)
	}
	if got := table.Count(9); got != 0 {
		t.Fatalf("Count(9) = %d, want 0", got)
	}
}

func TestUnifiedTable_Clear(t *testing.T) {
	table := NewTable()

	_, _ = table.Insert(1, "a")
	_, _ = table.Insert(1, "b")
	pinned, _ := table.Insert(1, "c")
	_ = table.Borrow(pinned)

	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	table.Clear()

	if table.Len() != 1 {
		t.Fatalf("Expected borrowed object to survive Clear, Len() = %d", table.Len())
	}
}

func TestUnifiedTable_Close(t *testing.T) {
	table := NewTable()

	_, _ = table.Insert(1, "a")
	_, _ = table.Insert(1, "b")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	h, err := table.Insert(1, "c")
	if h != 0 || !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected Insert to fail after Close, got %d, %v", h, err)
	}
}

func TestUnifiedTable_WithBackend(t *testing.T) {
	backend := NewLocalBackend()
	table := NewTableWithBackend(backend)

	h, _ := table.Insert(7, "x")
	class, ok := backend.ClassOf(h)
	if !ok || class != 7 {
		t.Fatalf("ClassOf = %d, %v; want 7, true", class, ok)
	}
}

func TestUnifiedTable_Each(t *testing.T) {
	table := NewTable()
	_, _ = table.Insert(1, "a")
	gone, _ := table.Insert(2, "b")
	_, _ = table.Insert(2, "c")
	_, _ = table.Remove(gone)

	seen := map[Class][]any{}
	table.Each(func(_ Handle, class Class, value any) bool {
		seen[class] = append(seen[class], value)
		return true
	})
	if len(seen[1]) != 1 || len(seen[2]) != 1 || seen[2][0] != "c" {
		t.Fatalf("Each visited %v", seen)
	}

	visits := 0
	table.Each(func(Handle, Class, any) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Fatalf("Each kept going after false: %d visits", visits)
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestUnifiedTable_DropperInterface(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h, _ := table.Insert(1, d)
	_, _ = table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
}

func TestUnifiedTable_CloseDrops(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}
	_, _ = table.Insert(1, d)

	_ = table.Close()
	if d.count != 1 {
		t.Fatalf("Expected Close to drop live objects, Drop() called %d times", d.count)
	}
}

func TestUnifiedTable_ClearDrops(t *testing.T) {
	table := NewTable()
	free, pinned := &dropCounter{}, &dropCounter{}
	_, _ = table.Insert(1, free)
	h, _ := table.Insert(1, pinned)
	_ = table.Borrow(h)

	table.Clear()
	if free.count != 1 || pinned.count != 0 {
		t.Fatalf("Drop() calls: free %d, pinned %d", free.count, pinned.count)
	}
}

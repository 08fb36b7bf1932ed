// Package resource provides handle tables for middleware-owned objects.
//
// The loopback middleware hands out data objects, transient strings and
// loaned samples. Each of them lives in a table so the middleware can
// detect use-after-delete, refuse deletion of loaned objects, and report
// how many objects are still outstanding.
//
// # Lifecycle
//
// Objects follow a simple lifecycle:
//
//	Insert        - object becomes live, handle is returned
//	Borrow        - object is pinned (for example while loaned to a caller)
//	ReturnBorrow  - one pin is released
//	Remove        - object is dropped; fails while pinned
//
// # Handle Table
//
// The UnifiedTable maps integer handles to Go values:
//
//	table := resource.NewTable()
//
//	h, err := table.Insert(ClassData, obj)
//	value, ok := table.Get(h)
//	value, err = table.Remove(h)
//
// # Classes
//
// Handles carry a class chosen by the owner of the table:
//
//	const (
//	    ClassData resource.Class = iota + 1
//	    ClassString
//	)
//
//	value, ok := table.GetTyped(h, ClassData)   // ok
//	value, ok = table.GetTyped(h, ClassString)  // !ok
//	live := table.Count(ClassString)
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    if e.Type == resource.EventDropped {
//	        log.Printf("handle %d dropped", e.Handle)
//	    }
//	}))
//
// # Memory Management
//
// Objects are not garbage collected by the table. The owner must call
// Remove when the object is deleted, or Close to release everything at once.
// Close calls Drop on values implementing Dropper.
package resource

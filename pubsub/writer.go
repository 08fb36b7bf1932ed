package pubsub

import (
	"sync"

	"go.uber.org/zap"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/dynamic"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

// Writer publishes Go values on one topic through a reusable data object.
// A Writer is not meant for concurrent use; calls are serialized.
type Writer struct {
	s    session
	name string
	dw   dynamicdds.DataWriter
	enc  *dynamic.Encoder

	mu     sync.Mutex
	sample *dynamic.Cursor
	closed bool
}

func newWriter(p *Participant, name string, dw dynamicdds.DataWriter) *Writer {
	return &Writer{
		s:    newSession(p),
		name: name,
		dw:   dw,
		enc:  dynamic.NewEncoder(),
	}
}

// Name returns the full writer name.
func (w *Writer) Name() string { return w.name }

// Type returns the topic type.
func (w *Writer) Type() *typecode.TypeCode { return w.dw.Type() }

// Write clears the reusable sample, encodes value into it and publishes it.
// The middleware derives the instance from the key members.
func (w *Writer) Write(value any) error {
	return w.publish("write", value, true, w.dw.Write)
}

// Dispose encodes value on top of the reusable sample and disposes the
// instance it names. The value must carry the key members.
func (w *Writer) Dispose(value any) error {
	return w.publish("dispose", value, false, w.dw.Dispose)
}

// Unregister encodes value on top of the reusable sample and gives up the
// writer's claim on the instance it names.
func (w *Writer) Unregister(value any) error {
	return w.publish("unregister", value, false, w.dw.UnregisterInstance)
}

func (w *Writer) publish(op string, value any, clear bool, send func(dynamicdds.Data, dynamicdds.InstanceHandle) error) error {
	f, err := w.s.factory(errors.PhasePublish)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Closed(errors.PhasePublish, "writer "+w.name)
	}
	c, err := w.reusable(f)
	if err != nil {
		return err
	}
	if clear {
		if err := c.Clear(); err != nil {
			return err
		}
	}
	if err := w.enc.Encode(value, c); err != nil {
		return err
	}
	if err := send(c.Data(), dynamicdds.HandleNil); err != nil {
		return err
	}
	Logger().Debug("sample published", zap.String("writer", w.name), zap.String("op", op))
	return nil
}

// reusable returns the writer's sample, creating it on first use.
func (w *Writer) reusable(f dynamicdds.DataFactory) (*dynamic.Cursor, error) {
	if w.sample != nil {
		return w.sample, nil
	}
	d, err := w.dw.CreateData()
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.NullResult(errors.PhasePublish, "create_data")
	}
	w.sample = dynamic.Wrap(f, d)
	Logger().Debug("reusable sample created", zap.String("writer", w.name))
	return w.sample, nil
}

// Close deletes the reusable sample. Later operations fail with an error
// of kind closed. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.sample == nil {
		return nil
	}
	c := w.sample
	w.sample = nil
	if err := c.Release(); err != nil {
		return err
	}
	return w.dw.DeleteData(c.Data())
}

package loopback

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

type sampleKind uint8

const (
	sampleWrite sampleKind = iota
	sampleDispose
	sampleUnregister
)

func (k sampleKind) String() string {
	switch k {
	case sampleWrite:
		return "write"
	case sampleDispose:
		return "dispose"
	default:
		return "unregister"
	}
}

// sample is one publication as seen by every matched reader.
type sample struct {
	payload   payload
	key       dynamicdds.InstanceHandle
	writer    dynamicdds.InstanceHandle
	timestamp dynamicdds.Time
	seq       int64
	kind      sampleKind
}

// Writer is the loopback implementation of dynamicdds.DataWriter.
type Writer struct {
	p     *Participant
	name  string
	topic *topic
	guid  uuid.UUID

	mu        sync.Mutex
	seq       int64
	instances map[[16]byte]payload
	closed    bool
}

var _ dynamicdds.DataWriter = (*Writer)(nil)

func newWriter(p *Participant, name string, t *topic) *Writer {
	return &Writer{
		p:         p,
		name:      name,
		topic:     t,
		guid:      uuid.New(),
		instances: make(map[[16]byte]payload),
	}
}

func (w *Writer) Name() string { return w.name }

func (w *Writer) Type() *typecode.TypeCode { return w.topic.tc }

// GUID identifies the writer; its bytes are the publication handle in
// SampleInfo.
func (w *Writer) GUID() uuid.UUID { return w.guid }

func (w *Writer) handle() dynamicdds.InstanceHandle {
	return dynamicdds.InstanceHandle{KeyHash: [16]byte(w.guid), Valid: true}
}

func (w *Writer) CreateData() (dynamicdds.Data, error) {
	return w.p.NewData(w.topic.tc)
}

func (w *Writer) DeleteData(d dynamicdds.Data) error {
	return w.p.DeleteData(d)
}

func (w *Writer) Write(d dynamicdds.Data, h dynamicdds.InstanceHandle) error {
	return w.publish(sampleWrite, d, h)
}

func (w *Writer) Dispose(d dynamicdds.Data, h dynamicdds.InstanceHandle) error {
	return w.publish(sampleDispose, d, h)
}

func (w *Writer) UnregisterInstance(d dynamicdds.Data, h dynamicdds.InstanceHandle) error {
	return w.publish(sampleUnregister, d, h)
}

// source checks that dd is a root data object of the topic type.
func (w *Writer) source(op string, dd dynamicdds.Data) (*Data, error) {
	d, ok := dd.(*Data)
	if !ok || d == nil || d.owner != w.p {
		return nil, errors.FromReturnCode(errors.PhasePublish, errors.RetcodeBadParameter, "%s: data not created by this participant", op)
	}
	if !d.live() {
		return nil, errors.FromReturnCode(errors.PhasePublish, errors.RetcodeAlreadyDeleted, "%s: data is deleted", op)
	}
	if d.parent != nil || d.child != nil || d.n == nil {
		return nil, errors.FromReturnCode(errors.PhasePublish, errors.RetcodePreconditionNotMet, "%s: data has an active binding", op)
	}
	if !d.tc.Equal(w.topic.tc) {
		return nil, errors.FromReturnCode(errors.PhasePublish, errors.RetcodeBadParameter, "%s: data type does not match topic", op)
	}
	return d, nil
}

func (w *Writer) publish(kind sampleKind, dd dynamicdds.Data, h dynamicdds.InstanceHandle) error {
	op := kind.String()
	d, err := w.source(op, dd)
	if err != nil {
		return err
	}
	key, err := keyHash(d.n)
	if err != nil {
		return errors.New(errors.PhasePublish, errors.KindReturnCode).Code(errors.RetcodeError).Cause(err).Build()
	}
	if !h.IsNil() && h != key {
		return errors.FromReturnCode(errors.PhasePublish, errors.RetcodePreconditionNotMet, "%s: instance handle does not match the key", op)
	}
	pl, err := marshalNode(d.n)
	if err != nil {
		return errors.New(errors.PhasePublish, errors.KindReturnCode).Code(errors.RetcodeError).Cause(err).Build()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.p.isClosed() {
		return closedError(errors.PhasePublish, op)
	}
	switch kind {
	case sampleWrite, sampleDispose:
		w.instances[key.KeyHash] = pl
	case sampleUnregister:
		if _, ok := w.instances[key.KeyHash]; !ok {
			return errors.FromReturnCode(errors.PhasePublish, errors.RetcodePreconditionNotMet, "%s: instance is not registered", op)
		}
		delete(w.instances, key.KeyHash)
	}
	w.send(kind, key, pl)
	return nil
}

// send stamps and delivers a sample. Callers hold w.mu, which keeps the
// writer's samples in sequence order at every reader.
func (w *Writer) send(kind sampleKind, key dynamicdds.InstanceHandle, pl payload) {
	w.seq++
	s := &sample{
		payload:   pl,
		key:       key,
		writer:    w.handle(),
		timestamp: now(),
		seq:       w.seq,
		kind:      kind,
	}
	n := w.topic.deliver(s)
	w.p.tally.published.Add(1)
	w.p.tally.delivered.Add(uint64(n))
	Logger().Debug("sample published",
		zap.String("writer", w.name),
		zap.Stringer("kind", kind),
		zap.Int64("seq", s.seq),
		zap.Int("bytes", pl.size),
		zap.Bool("compressed", pl.compressed),
		zap.Int("readers", n))
}

// close unregisters every instance the writer still holds.
func (w *Writer) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	for k, pl := range w.instances {
		w.send(sampleUnregister, dynamicdds.InstanceHandle{KeyHash: k, Valid: true}, pl)
	}
	w.instances = nil
	w.closed = true
}

func now() dynamicdds.Time {
	t := time.Now()
	return dynamicdds.Time{Sec: int32(t.Unix()), Nanosec: uint32(t.Nanosecond())}
}

package loopback

import (
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/resource"
	"github.com/wippyai/dynamic-dds/typecode"
)

// Participant is the loopback middleware handle for one application. It
// implements dynamicdds.Middleware.
type Participant struct {
	net     *Network
	name    string
	domain  int32
	objects resource.Table
	tally   *tally

	mu      sync.RWMutex
	writers map[string]*Writer
	readers map[string]*Reader
	closed  bool
}

var _ dynamicdds.Middleware = (*Participant)(nil)

func newObjectTable(p *Participant) resource.Table {
	p.tally = &tally{participant: p.name}
	t := resource.NewTable()
	t.Subscribe(p.tally)
	return t
}

// Name returns the participant name.
func (p *Participant) Name() string { return p.name }

// DomainID returns the domain the participant joined.
func (p *Participant) DomainID() int32 { return p.domain }

func (p *Participant) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func closedError(phase errors.Phase, what string) error {
	return errors.FromReturnCode(phase, errors.RetcodeAlreadyDeleted, "%s: participant closed", what)
}

// CreateWriter adds a writer for topic under fullName.
func (p *Participant) CreateWriter(fullName, topicName string, tc *typecode.TypeCode) (*Writer, error) {
	if tc == nil {
		return nil, errors.FromReturnCode(errors.PhaseLookup, errors.RetcodeBadParameter, "create_datawriter: nil type")
	}
	t, err := p.net.topic(p.domain, topicName, tc)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, closedError(errors.PhaseLookup, "create_datawriter")
	}
	if _, dup := p.writers[fullName]; dup {
		return nil, errors.FromReturnCode(errors.PhaseLookup, errors.RetcodePreconditionNotMet, "writer %q already exists", fullName)
	}
	w := newWriter(p, fullName, t)
	p.writers[fullName] = w
	Logger().Debug("writer created",
		zap.String("participant", p.name),
		zap.String("writer", fullName),
		zap.String("topic", topicName),
		zap.Stringer("guid", w.guid))
	return w, nil
}

// CreateReader adds a reader for topic under fullName.
func (p *Participant) CreateReader(fullName, topicName string, tc *typecode.TypeCode, qos ReaderQoS) (*Reader, error) {
	if tc == nil {
		return nil, errors.FromReturnCode(errors.PhaseLookup, errors.RetcodeBadParameter, "create_datareader: nil type")
	}
	if err := qos.validate(); err != nil {
		return nil, err
	}
	t, err := p.net.topic(p.domain, topicName, tc)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, closedError(errors.PhaseLookup, "create_datareader")
	}
	if _, dup := p.readers[fullName]; dup {
		p.mu.Unlock()
		return nil, errors.FromReturnCode(errors.PhaseLookup, errors.RetcodePreconditionNotMet, "reader %q already exists", fullName)
	}
	r := newReader(p, fullName, t, qos.withDefaults())
	p.readers[fullName] = r
	p.mu.Unlock()

	t.attach(r)
	Logger().Debug("reader created",
		zap.String("participant", p.name),
		zap.String("reader", fullName),
		zap.String("topic", topicName))
	return r, nil
}

// LookupDataWriter returns the writer registered under fullName, or nil.
func (p *Participant) LookupDataWriter(fullName string) dynamicdds.DataWriter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if w, ok := p.writers[fullName]; ok && !p.closed {
		return w
	}
	return nil
}

// LookupDataReader returns the reader registered under fullName, or nil.
func (p *Participant) LookupDataReader(fullName string) dynamicdds.DataReader {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if r, ok := p.readers[fullName]; ok && !p.closed {
		return r
	}
	return nil
}

// NewData allocates a data object of type tc, or an unbound object for
// BindComplexMember when tc is nil.
func (p *Participant) NewData(tc *typecode.TypeCode) (dynamicdds.Data, error) {
	d, err := p.newData(tc, nil)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (p *Participant) newData(tc *typecode.TypeCode, n *node) (*Data, error) {
	if p.isClosed() {
		return nil, closedError(errors.PhaseCursor, "create_data")
	}
	d := &Data{owner: p}
	if tc != nil {
		if k := tc.Resolve().Kind(); !k.IsAggregate() {
			return nil, errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeBadParameter,
				"create_data: %s is not an aggregate type", k)
		}
		if n == nil {
			n = newNode(tc)
		}
		d.tc, d.n = tc, n
	}
	h, err := p.objects.Insert(classData, d)
	if err != nil {
		return nil, closedError(errors.PhaseCursor, "create_data")
	}
	d.handle = h
	return d, nil
}

// DeleteData releases a data object. Objects that are bound, have a bound
// member or sit in an unreturned loan cannot be deleted.
func (p *Participant) DeleteData(dd dynamicdds.Data) error {
	d, ok := dd.(*Data)
	if !ok || d == nil || d.owner != p {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeBadParameter, "delete_data: not created by this participant")
	}
	if !d.live() {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeAlreadyDeleted, "delete_data: already deleted")
	}
	if d.parent != nil || d.child != nil {
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "delete_data: data has an active binding")
	}
	if _, err := p.objects.Remove(d.handle); err != nil {
		if stderrors.Is(err, resource.ErrOutstandingBorrow) {
			return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodePreconditionNotMet, "delete_data: data is on loan")
		}
		return errors.FromReturnCode(errors.PhaseCursor, errors.RetcodeAlreadyDeleted, "delete_data: %v", err)
	}
	return nil
}

// Close deletes every contained entity. Writers unregister their instances
// first, so readers on other participants see them leave. Closing twice is
// a no-op.
func (p *Participant) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	writers := p.writers
	readers := p.readers
	p.writers = map[string]*Writer{}
	p.readers = map[string]*Reader{}
	p.mu.Unlock()

	for _, w := range writers {
		w.close()
	}
	for _, r := range readers {
		r.close()
	}
	p.reportLeaks()
	p.objects.Clear()
	p.objects.Unsubscribe(p.tally)
	return p.objects.Close()
}

// reportLeaks logs the objects the application never released. Objects
// still pinned by a loan mean a read or take was never returned.
func (p *Participant) reportLeaks() {
	var handles []resource.Handle
	leaked := make(map[resource.Class]int)
	p.objects.Each(func(h resource.Handle, c resource.Class, _ any) bool {
		handles = append(handles, h)
		leaked[c]++
		return true
	})
	pinned := 0
	for _, h := range handles {
		if p.objects.Borrowed(h) {
			pinned++
		}
	}

	log := Logger().Debug
	if pinned > 0 {
		log = Logger().Warn
	}
	log("participant closed",
		zap.String("participant", p.name),
		zap.Int("leaked_data", leaked[classData]),
		zap.Int("leaked_strings", leaked[classString]),
		zap.Int("unreturned_loans", leaked[classLoan]),
		zap.Int("pinned", pinned))
}

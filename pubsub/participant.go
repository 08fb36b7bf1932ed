package pubsub

import (
	stderrors "errors"
	"sync"
	"weak"

	"go.uber.org/zap"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/errors"
)

// Participant is a session over one middleware participant. It caches the
// Writers and Readers it hands out, so every lookup of a name returns the
// same object.
type Participant struct {
	mw dynamicdds.Middleware

	mu      sync.Mutex
	writers map[string]*Writer
	readers map[string]*Reader
	closed  bool
}

// New opens a session on mw. The session owns mw and closes it in Close.
func New(mw dynamicdds.Middleware) *Participant {
	return &Participant{
		mw:      mw,
		writers: make(map[string]*Writer),
		readers: make(map[string]*Reader),
	}
}

// LookupWriter returns the Writer for a full writer name such as
// "MyPublisher::HelloWorldWriter".
func (p *Participant) LookupWriter(name string) (*Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.Closed(errors.PhaseLookup, "participant")
	}
	if w, ok := p.writers[name]; ok {
		return w, nil
	}

	dw := p.mw.LookupDataWriter(name)
	if dw == nil {
		return nil, errors.NotFound(errors.PhaseLookup, "writer", name)
	}
	w := newWriter(p, name, dw)
	p.writers[name] = w
	Logger().Debug("writer found", zap.String("writer", name))
	return w, nil
}

// LookupReader returns the Reader for a full reader name such as
// "MySubscriber::HelloWorldReader".
func (p *Participant) LookupReader(name string) (*Reader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.Closed(errors.PhaseLookup, "participant")
	}
	if r, ok := p.readers[name]; ok {
		return r, nil
	}

	dr := p.mw.LookupDataReader(name)
	if dr == nil {
		return nil, errors.NotFound(errors.PhaseLookup, "reader", name)
	}
	r := newReader(p, name, dr)
	p.readers[name] = r
	Logger().Debug("reader found", zap.String("reader", name))
	return r, nil
}

// Close closes every Writer and Reader handed out, then the middleware.
// Closing twice is a no-op.
func (p *Participant) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	writers, readers := p.writers, p.readers
	p.writers, p.readers = nil, nil
	p.mu.Unlock()

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	for _, r := range readers {
		errs = append(errs, r.Close())
	}
	errs = append(errs, p.mw.Close())
	return stderrors.Join(errs...)
}

func (p *Participant) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// session is the non-owning link from an entity back to its Participant.
type session struct {
	p weak.Pointer[Participant]
}

func newSession(p *Participant) session {
	return session{p: weak.Make(p)}
}

// alive fails once the Participant is closed or gone.
func (s session) alive(phase errors.Phase) error {
	p := s.p.Value()
	if p == nil || p.isClosed() {
		return errors.Closed(phase, "participant")
	}
	return nil
}

// factory returns the middleware data factory while the Participant lives.
func (s session) factory(phase errors.Phase) (dynamicdds.DataFactory, error) {
	p := s.p.Value()
	if p == nil || p.isClosed() {
		return nil, errors.Closed(phase, "participant")
	}
	return p.mw, nil
}

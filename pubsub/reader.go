package pubsub

import (
	"sync"

	"go.uber.org/zap"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/dynamic"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

// CallbackID identifies a registered data-available callback.
type CallbackID uint64

type callback struct {
	id CallbackID
	fn func()
}

// Reader receives Go values from one topic. Read and Take are safe to call
// from a data-available callback.
type Reader struct {
	s    session
	name string
	dr   dynamicdds.DataReader
	dec  *dynamic.Decoder

	mu        sync.Mutex
	callbacks []callback
	nextID    CallbackID
	installed bool
	closed    bool
}

func newReader(p *Participant, name string, dr dynamicdds.DataReader) *Reader {
	return &Reader{
		s:    newSession(p),
		name: name,
		dr:   dr,
		dec:  dynamic.NewDecoder(),
	}
}

// Name returns the full reader name.
func (r *Reader) Name() string { return r.name }

// Type returns the topic type.
func (r *Reader) Type() *typecode.TypeCode { return r.dr.Type() }

// Read returns matching samples and leaves them in the middleware cache.
func (r *Reader) Read(opts ...ReceiveOption) ([]Sample, error) {
	return r.receive("read", r.dr.Read, opts)
}

// Take returns matching samples and removes them from the middleware
// cache.
func (r *Reader) Take(opts ...ReceiveOption) ([]Sample, error) {
	return r.receive("take", r.dr.Take, opts)
}

type receiveFunc func(int32, dynamicdds.SampleStateMask, dynamicdds.ViewStateMask, dynamicdds.InstanceStateMask) (dynamicdds.Loan, error)

func (r *Reader) receive(op string, recv receiveFunc, opts []ReceiveOption) (samples []Sample, err error) {
	f, err := r.s.factory(errors.PhaseSubscribe)
	if err != nil {
		return nil, err
	}
	if r.isClosed() {
		return nil, errors.Closed(errors.PhaseSubscribe, "reader "+r.name)
	}

	o := defaultReceiveOptions()
	for _, opt := range opts {
		opt(&o)
	}

	loan, err := recv(o.maxSamples, o.samples, o.views, o.instances)
	if err != nil {
		if errors.IsNoData(err) {
			return nil, nil
		}
		return nil, err
	}
	if loan == nil {
		return nil, errors.NullResult(errors.PhaseSubscribe, op)
	}
	defer func() {
		rerr := r.dr.ReturnLoan(loan)
		switch {
		case rerr == nil:
			Logger().Debug("loan returned", zap.String("reader", r.name), zap.String("op", op))
		case err == nil:
			samples, err = nil, rerr
		default:
			Logger().Warn("return loan failed", zap.String("reader", r.name), zap.Error(rerr))
		}
	}()

	n := loan.Len()
	samples = make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		info := loan.Info(i)
		s := Sample{Info: sampleInfo(info)}
		if info.ValidData {
			v, err := r.dec.DecodeData(f, loan.Data(i))
			if err != nil {
				return nil, err
			}
			s.Value = v
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// AddDataAvailableCallback registers fn to run whenever data arrives. The
// first registration installs the middleware listener. Callbacks run on a
// middleware goroutine in registration order.
func (r *Reader) AddDataAvailableCallback(fn func()) (CallbackID, error) {
	if fn == nil {
		return 0, errors.InvalidInput(errors.PhaseListener, nil, "nil callback")
	}
	if err := r.s.alive(errors.PhaseListener); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, errors.Closed(errors.PhaseListener, "reader "+r.name)
	}
	if !r.installed {
		if err := r.dr.SetListener(dataListener{r}, dynamicdds.StatusDataAvailable); err != nil {
			return 0, err
		}
		r.installed = true
		Logger().Debug("listener installed", zap.String("reader", r.name))
	}
	r.nextID++
	r.callbacks = append(r.callbacks, callback{id: r.nextID, fn: fn})
	return r.nextID, nil
}

// RemoveDataAvailableCallback unregisters a callback. Removing the last one
// uninstalls the middleware listener.
func (r *Reader) RemoveDataAvailableCallback(id CallbackID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, cb := range r.callbacks {
		if cb.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.New(errors.PhaseListener, errors.KindNotFound).
			Detail("callback %d is not registered on %s", id, r.name).Build()
	}
	// Copy so a dispatch in progress keeps its snapshot intact.
	cbs := make([]callback, 0, len(r.callbacks)-1)
	cbs = append(cbs, r.callbacks[:idx]...)
	r.callbacks = append(cbs, r.callbacks[idx+1:]...)

	if len(r.callbacks) == 0 && r.installed {
		if err := r.dr.SetListener(nil, 0); err != nil {
			return err
		}
		r.installed = false
		Logger().Debug("listener removed", zap.String("reader", r.name))
	}
	return nil
}

// dispatch runs the registered callbacks. Callbacks registered or removed
// while it runs take effect on the next notification.
func (r *Reader) dispatch() {
	r.mu.Lock()
	cbs := r.callbacks
	r.mu.Unlock()
	for _, cb := range cbs {
		cb.fn()
	}
}

// Close removes every callback and uninstalls the listener. Closing twice
// is a no-op.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.callbacks = nil
	if r.installed {
		r.installed = false
		if err := r.dr.SetListener(nil, 0); err != nil {
			Logger().Warn("listener removal failed", zap.String("reader", r.name), zap.Error(err))
			return err
		}
	}
	return nil
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type dataListener struct {
	r *Reader
}

func (l dataListener) OnDataAvailable(dynamicdds.DataReader) {
	l.r.dispatch()
}

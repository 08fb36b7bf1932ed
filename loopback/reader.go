package loopback

import (
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/config"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/resource"
	"github.com/wippyai/dynamic-dds/typecode"
)

// ReaderQoS holds the reader policies the loopback honors. Zero fields take
// the library defaults.
type ReaderQoS struct {
	// HistoryDepth is the KEEP_LAST depth per instance.
	HistoryDepth int
	// MaxOutstandingLoans bounds unreturned read/take loans.
	MaxOutstandingLoans int
}

func (q ReaderQoS) validate() error {
	if q.HistoryDepth < 0 || q.MaxOutstandingLoans < 0 {
		return errors.FromReturnCode(errors.PhaseLookup, errors.RetcodeInconsistentPolicy, "negative reader QoS value")
	}
	return nil
}

func (q ReaderQoS) withDefaults() ReaderQoS {
	if q.HistoryDepth == 0 {
		q.HistoryDepth = config.DefaultHistoryDepth
	}
	if q.MaxOutstandingLoans == 0 {
		q.MaxOutstandingLoans = config.DefaultMaxOutstandingLoans
	}
	return q
}

// instance is the reader-side state of one key.
type instance struct {
	handle       dynamicdds.InstanceHandle
	writers      map[dynamicdds.InstanceHandle]struct{}
	state        dynamicdds.InstanceStateKind
	view         dynamicdds.ViewStateKind
	disposedGen  int32
	noWritersGen int32
	cached       int
}

// cachedSample is a sample in one reader's history.
type cachedSample struct {
	*sample
	inst         *instance
	reception    dynamicdds.Time
	receptionSeq int64
	disposedGen  int32
	noWritersGen int32
	valid        bool
	read         bool
}

// Reader is the loopback implementation of dynamicdds.DataReader.
type Reader struct {
	p     *Participant
	name  string
	topic *topic
	qos   ReaderQoS

	mu        sync.Mutex
	instances map[[16]byte]*instance
	history   []*cachedSample
	recvSeq   int64
	loans     int
	listener  *listenerLoop
	closed    bool
}

var _ dynamicdds.DataReader = (*Reader)(nil)

func newReader(p *Participant, name string, t *topic, qos ReaderQoS) *Reader {
	return &Reader{
		p:         p,
		name:      name,
		topic:     t,
		qos:       qos,
		instances: make(map[[16]byte]*instance),
	}
}

func (r *Reader) Name() string { return r.name }

func (r *Reader) Type() *typecode.TypeCode { return r.topic.tc }

// QoS returns the effective reader policies.
func (r *Reader) QoS() ReaderQoS { return r.qos }

// receive adds s to the history and signals the listener. It reports
// whether the sample was accepted.
func (r *Reader) receive(s *sample) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}

	inst, ok := r.instances[s.key.KeyHash]
	if !ok {
		inst = &instance{
			handle:  s.key,
			writers: make(map[dynamicdds.InstanceHandle]struct{}),
			state:   dynamicdds.AliveInstanceState,
			view:    dynamicdds.NewViewState,
		}
		r.instances[s.key.KeyHash] = inst
	}

	enqueue := true
	switch s.kind {
	case sampleWrite:
		switch inst.state {
		case dynamicdds.NotAliveDisposedInstanceState:
			inst.disposedGen++
			inst.view = dynamicdds.NewViewState
		case dynamicdds.NotAliveNoWritersInstanceState:
			inst.noWritersGen++
			inst.view = dynamicdds.NewViewState
		}
		inst.state = dynamicdds.AliveInstanceState
		inst.writers[s.writer] = struct{}{}
	case sampleDispose:
		inst.writers[s.writer] = struct{}{}
		inst.state = dynamicdds.NotAliveDisposedInstanceState
	case sampleUnregister:
		delete(inst.writers, s.writer)
		// Only the transition to NO_WRITERS is worth a sample.
		enqueue = len(inst.writers) == 0 && inst.state == dynamicdds.AliveInstanceState
		if enqueue {
			inst.state = dynamicdds.NotAliveNoWritersInstanceState
		}
	}

	if enqueue {
		r.recvSeq++
		r.history = append(r.history, &cachedSample{
			sample:       s,
			inst:         inst,
			reception:    now(),
			receptionSeq: r.recvSeq,
			disposedGen:  inst.disposedGen,
			noWritersGen: inst.noWritersGen,
			valid:        s.kind == sampleWrite,
		})
		inst.cached++
		r.trim(inst)
	}
	r.reclaim(inst)
	l := r.listener
	r.mu.Unlock()

	if enqueue && l != nil {
		l.signal()
	}
	return true
}

// trim enforces KEEP_LAST by dropping the oldest samples of inst.
func (r *Reader) trim(inst *instance) {
	for inst.cached > r.qos.HistoryDepth {
		for i, cs := range r.history {
			if cs.inst == inst {
				r.history = append(r.history[:i], r.history[i+1:]...)
				inst.cached--
				break
			}
		}
	}
}

// reclaim forgets an instance nobody writes and nobody can read anymore.
func (r *Reader) reclaim(inst *instance) {
	if inst.cached == 0 && len(inst.writers) == 0 && inst.state != dynamicdds.AliveInstanceState {
		delete(r.instances, inst.handle.KeyHash)
	}
}

func (r *Reader) Read(maxSamples int32, s dynamicdds.SampleStateMask, v dynamicdds.ViewStateMask, i dynamicdds.InstanceStateMask) (dynamicdds.Loan, error) {
	return r.receiveLoan("read", false, maxSamples, s, v, i)
}

func (r *Reader) Take(maxSamples int32, s dynamicdds.SampleStateMask, v dynamicdds.ViewStateMask, i dynamicdds.InstanceStateMask) (dynamicdds.Loan, error) {
	return r.receiveLoan("take", true, maxSamples, s, v, i)
}

func (r *Reader) receiveLoan(op string, take bool, maxSamples int32, sm dynamicdds.SampleStateMask, vm dynamicdds.ViewStateMask, im dynamicdds.InstanceStateMask) (dynamicdds.Loan, error) {
	if maxSamples == 0 || maxSamples < dynamicdds.LengthUnlimited {
		return nil, errors.FromReturnCode(errors.PhaseSubscribe, errors.RetcodeBadParameter, "%s: invalid max_samples %d", op, maxSamples)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, closedError(errors.PhaseSubscribe, op)
	}
	if r.loans >= r.qos.MaxOutstandingLoans {
		return nil, errors.FromReturnCode(errors.PhaseSubscribe, errors.RetcodeOutOfResources,
			"%s: %d loans outstanding", op, r.loans)
	}

	var (
		selected []*cachedSample
		nodes    []*node
		broken   []*cachedSample
	)
	for _, cs := range r.history {
		if maxSamples != dynamicdds.LengthUnlimited && len(selected) == int(maxSamples) {
			break
		}
		ss := dynamicdds.NotReadSampleState
		if cs.read {
			ss = dynamicdds.ReadSampleState
		}
		if !sm.Has(ss) || !vm.Has(cs.inst.view) || !im.Has(cs.inst.state) {
			continue
		}
		n, err := unmarshalNode(r.topic.tc, cs.payload)
		if err != nil {
			// A payload that cannot be rebuilt would block every later read.
			Logger().Warn("dropping undecodable sample",
				zap.String("reader", r.name),
				zap.Int64("reception_seq", cs.receptionSeq),
				zap.Error(err))
			broken = append(broken, cs)
			continue
		}
		selected = append(selected, cs)
		nodes = append(nodes, n)
	}
	if len(broken) > 0 {
		r.remove(broken)
	}
	if len(selected) == 0 {
		return nil, errors.FromReturnCode(errors.PhaseSubscribe, errors.RetcodeNoData, "%s", op)
	}

	l, err := r.lend(selected, nodes)
	if err != nil {
		return nil, err
	}

	for _, cs := range selected {
		cs.read = true
		cs.inst.view = dynamicdds.NotNewViewState
	}
	if take {
		r.remove(selected)
	}
	r.loans++
	Logger().Debug("loan issued",
		zap.String("reader", r.name),
		zap.String("op", op),
		zap.Int("samples", len(selected)),
		zap.Int("outstanding", r.loans))
	return l, nil
}

// lend wraps the decoded nodes of the selected samples into loaned data
// objects with their sample infos. Callers hold r.mu.
func (r *Reader) lend(selected []*cachedSample, nodes []*node) (*loan, error) {
	l := &loan{r: r}
	h, err := r.p.objects.Insert(classLoan, l)
	if err != nil {
		return nil, closedError(errors.PhaseSubscribe, "loan")
	}
	l.handle = h

	// Most recent sample of each instance in this collection.
	latest := make(map[*instance]*cachedSample)
	for _, cs := range selected {
		latest[cs.inst] = cs
	}

	for i, cs := range selected {
		d, err := r.materialize(nodes[i])
		if err != nil {
			return nil, stderrors.Join(err, l.release())
		}
		l.data = append(l.data, d)

		rank := int32(0)
		for _, later := range selected[i+1:] {
			if later.inst == cs.inst {
				rank++
			}
		}
		gen := cs.disposedGen + cs.noWritersGen
		mrs := latest[cs.inst]
		l.infos = append(l.infos, dynamicdds.SampleInfo{
			SourceTimestamp:           cs.timestamp,
			ReceptionTimestamp:        cs.reception,
			InstanceHandle:            cs.inst.handle,
			PublicationHandle:         cs.writer,
			PublicationSequenceNumber: sequenceNumber(cs.seq),
			ReceptionSequenceNumber:   sequenceNumber(cs.receptionSeq),
			DisposedGenerationCount:   cs.disposedGen,
			NoWritersGenerationCount:  cs.noWritersGen,
			SampleRank:                rank,
			GenerationRank:            mrs.disposedGen + mrs.noWritersGen - gen,
			AbsoluteGenerationRank:    cs.inst.disposedGen + cs.inst.noWritersGen - gen,
			SampleState:               sampleState(cs.read),
			ViewState:                 cs.inst.view,
			InstanceState:             cs.inst.state,
			ValidData:                 cs.valid,
		})
	}
	return l, nil
}

// materialize turns a decoded node into a loaned data object. The object is
// borrowed so DeleteData refuses it until the loan comes back.
func (r *Reader) materialize(n *node) (*Data, error) {
	d, err := r.p.newData(r.topic.tc, n)
	if err != nil {
		return nil, err
	}
	d.loaned = true
	if err := r.p.objects.Borrow(d.handle); err != nil {
		return nil, stderrors.Join(err, r.p.DeleteData(d))
	}
	return d, nil
}

func (r *Reader) remove(selected []*cachedSample) {
	gone := make(map[*cachedSample]struct{}, len(selected))
	for _, cs := range selected {
		gone[cs] = struct{}{}
	}
	kept := r.history[:0]
	for _, cs := range r.history {
		if _, ok := gone[cs]; ok {
			cs.inst.cached--
			continue
		}
		kept = append(kept, cs)
	}
	clear(r.history[len(kept):])
	r.history = kept
	for _, cs := range selected {
		r.reclaim(cs.inst)
	}
}

func sampleState(read bool) dynamicdds.SampleStateKind {
	if read {
		return dynamicdds.ReadSampleState
	}
	return dynamicdds.NotReadSampleState
}

func sequenceNumber(n int64) dynamicdds.SequenceNumber {
	return dynamicdds.SequenceNumber{High: int32(n >> 32), Low: uint32(n)}
}

// ReturnLoan hands back a loan from Read or Take. Each loan is returned
// exactly once.
func (r *Reader) ReturnLoan(ll dynamicdds.Loan) error {
	l, ok := ll.(*loan)
	if !ok || l == nil || l.r != r {
		return errors.FromReturnCode(errors.PhaseSubscribe, errors.RetcodePreconditionNotMet, "return_loan: loan not issued by this reader")
	}
	if err := l.release(); err != nil {
		return err
	}

	r.mu.Lock()
	r.loans--
	outstanding := r.loans
	r.mu.Unlock()
	Logger().Debug("loan returned",
		zap.String("reader", r.name),
		zap.Int("samples", len(l.data)),
		zap.Int("outstanding", outstanding))
	return nil
}

// SetListener installs l for data-available notifications. A nil listener
// or a mask without StatusDataAvailable removes the current one. The old
// listener's goroutine is stopped without waiting, so this is safe to call
// from inside OnDataAvailable.
func (r *Reader) SetListener(l dynamicdds.Listener, mask dynamicdds.StatusMask) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return closedError(errors.PhaseListener, "set_listener")
	}
	old := r.listener
	r.listener = nil
	if l != nil && mask&dynamicdds.StatusDataAvailable != 0 {
		r.listener = startListener(r, l)
	}
	installed := r.listener != nil
	r.mu.Unlock()

	if old != nil {
		old.halt()
	}
	Logger().Debug("listener updated", zap.String("reader", r.name), zap.Bool("installed", installed))
	return nil
}

// close detaches the reader and drops its history. Outstanding loans stay
// valid until the participant's object table closes.
func (r *Reader) close() {
	r.topic.detach(r)

	r.mu.Lock()
	r.closed = true
	l := r.listener
	r.listener = nil
	r.history = nil
	r.instances = nil
	r.mu.Unlock()

	if l != nil {
		l.halt()
	}
}

// loan is the loopback implementation of dynamicdds.Loan.
type loan struct {
	r      *Reader
	handle resource.Handle
	data   []*Data
	infos  []dynamicdds.SampleInfo
}

func (l *loan) Len() int { return len(l.data) }

func (l *loan) Data(i int) dynamicdds.Data { return l.data[i] }

func (l *loan) Info(i int) *dynamicdds.SampleInfo { return &l.infos[i] }

// release unpins and deletes the loaned objects. It fails when the loan was
// already released.
func (l *loan) release() error {
	objects := l.r.p.objects
	if _, err := objects.Remove(l.handle); err != nil {
		return errors.FromReturnCode(errors.PhaseSubscribe, errors.RetcodePreconditionNotMet, "return_loan: loan already returned")
	}
	var errs []error
	for _, d := range l.data {
		if err := objects.ReturnBorrow(d.handle); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := objects.Remove(d.handle); err != nil {
			errs = append(errs, err)
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return errors.New(errors.PhaseSubscribe, errors.KindReturnCode).
			Code(errors.RetcodeError).
			Cause(err).
			Detail("return_loan").
			Build()
	}
	return nil
}

// listenerLoop runs one installed listener on its own goroutine.
// Notifications that arrive while the listener is busy coalesce into one.
type listenerLoop struct {
	l      dynamicdds.Listener
	notify chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func startListener(r *Reader, l dynamicdds.Listener) *listenerLoop {
	loop := &listenerLoop{
		l:      l,
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	go loop.run(r)
	return loop
}

func (ll *listenerLoop) run(r *Reader) {
	for {
		select {
		case <-ll.stop:
			return
		case <-ll.notify:
		}
		select {
		case <-ll.stop:
			return
		default:
		}
		ll.l.OnDataAvailable(r)
	}
}

func (ll *listenerLoop) signal() {
	select {
	case ll.notify <- struct{}{}:
	default:
	}
}

func (ll *listenerLoop) halt() {
	ll.once.Do(func() { close(ll.stop) })
}

package pubsub

import (
	stderrors "errors"
	"reflect"
	"runtime"
	"testing"
	"time"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/dynamic"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/loopback"
	"github.com/wippyai/dynamic-dds/typecode"
)

const (
	writerName = "MyPublisher::HelloWorldWriter"
	readerName = "MySubscriber::HelloWorldReader"
)

var helloType = typecode.Must(typecode.NewStruct("HelloWorld",
	typecode.Member{Name: "sender", Type: typecode.NewString(128), Key: true},
	typecode.Member{Name: "message", Type: typecode.NewString(1024)},
	typecode.Member{Name: "count", Type: typecode.Long},
))

// newLoopback builds one loopback participant with a writer and a reader
// on the same topic.
func newLoopback(t *testing.T) *loopback.Participant {
	t.Helper()
	lp := loopback.NewNetwork().CreateParticipant("test", 0)
	t.Cleanup(func() { _ = lp.Close() })
	if _, err := lp.CreateWriter(writerName, "HelloWorldTopic", helloType); err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if _, err := lp.CreateReader(readerName, "HelloWorldTopic", helloType, loopback.ReaderQoS{HistoryDepth: 10}); err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	return lp
}

func open(t *testing.T, mw dynamicdds.Middleware) (*Participant, *Writer, *Reader) {
	t.Helper()
	p := New(mw)
	t.Cleanup(func() { _ = p.Close() })
	w, err := p.LookupWriter(writerName)
	if err != nil {
		t.Fatalf("LookupWriter: %v", err)
	}
	r, err := p.LookupReader(readerName)
	if err != nil {
		t.Fatalf("LookupReader: %v", err)
	}
	return p, w, r
}

func hello(sender, message string, count int32) map[string]any {
	return map[string]any{"sender": sender, "message": message, "count": count}
}

func TestWriteTake(t *testing.T) {
	_, w, r := open(t, newLoopback(t))

	if err := w.Write(hello("5", "42", 7)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	samples, err := r.Take()
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	s := samples[0]
	if !reflect.DeepEqual(s.Value, hello("5", "42", 7)) {
		t.Errorf("Value = %#v", s.Value)
	}
	if s.Info.InstanceState != dynamicdds.AliveInstanceState || !s.Info.ValidData {
		t.Errorf("Info = %+v", s.Info)
	}
	if s.Info.SourceTimestamp.IsZero() || time.Since(s.Info.SourceTimestamp) > time.Minute {
		t.Errorf("SourceTimestamp = %v", s.Info.SourceTimestamp)
	}
	if s.Info.PublicationSequenceNumber != 1 {
		t.Errorf("PublicationSequenceNumber = %d", s.Info.PublicationSequenceNumber)
	}
}

func TestWriteTakeUntypedCount(t *testing.T) {
	_, w, r := open(t, newLoopback(t))

	if err := w.Write(map[string]any{"sender": "5", "message": "42", "count": 7}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	samples, err := r.Take()
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	v := samples[0].Value.(map[string]any)
	if got, ok := v["count"].(int32); !ok || got != 7 {
		t.Errorf("count = %#v, want int32(7)", v["count"])
	}
}

var textType = typecode.Must(typecode.NewStruct("Text",
	typecode.Member{Name: "id", Type: typecode.Long, Key: true},
	typecode.Member{Name: "s", Type: typecode.String},
	typecode.Member{Name: "ws", Type: typecode.WString},
))

func TestNonUTF8StringsRoundTrip(t *testing.T) {
	lp := loopback.NewNetwork().CreateParticipant("text", 0)
	t.Cleanup(func() { _ = lp.Close() })
	if _, err := lp.CreateWriter("P::TextWriter", "TextTopic", textType); err != nil {
		t.Fatal(err)
	}
	if _, err := lp.CreateReader("S::TextReader", "TextTopic", textType, loopback.ReaderQoS{HistoryDepth: 10}); err != nil {
		t.Fatal(err)
	}
	p := New(lp)
	t.Cleanup(func() { _ = p.Close() })
	w, err := p.LookupWriter("P::TextWriter")
	if err != nil {
		t.Fatal(err)
	}
	r, err := p.LookupReader("S::TextReader")
	if err != nil {
		t.Fatal(err)
	}

	want := []map[string]any{
		{"id": int32(1), "s": "\xff", "ws": "a\xc0b"},
		{"id": int32(2), "s": "ok", "ws": "ok"},
	}
	for _, v := range want {
		if err := w.Write(v); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	for range 2 {
		samples, err := r.Take()
		if err != nil {
			t.Fatalf("Take: %v", err)
		}
		if len(samples) != 2 {
			t.Fatalf("got %d samples, want 2", len(samples))
		}
		for i, s := range samples {
			if !reflect.DeepEqual(s.Value, want[i]) {
				t.Errorf("sample %d = %#v, want %#v", i, s.Value, want[i])
			}
		}
		for _, v := range want {
			if err := w.Write(v); err != nil {
				t.Fatalf("Write: %v", err)
			}
		}
	}
}

func TestTakeEmpty(t *testing.T) {
	_, _, r := open(t, newLoopback(t))
	for _, recv := range []func(...ReceiveOption) ([]Sample, error){r.Read, r.Take} {
		samples, err := recv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(samples) != 0 {
			t.Fatalf("expected no samples, got %d", len(samples))
		}
	}
}

func TestWriteClearsFirst(t *testing.T) {
	_, w, r := open(t, newLoopback(t))

	if err := w.Write(hello("5", "first", 1)); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(map[string]any{"sender": "5"}); err != nil {
		t.Fatal(err)
	}
	samples, err := r.Take()
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if got := samples[1].Value; !reflect.DeepEqual(got, hello("5", "", 0)) {
		t.Errorf("second sample = %#v", got)
	}
}

func TestDisposeKeepsPriorMembers(t *testing.T) {
	_, w, r := open(t, newLoopback(t))

	if err := w.Write(hello("a", "kept", 3)); err != nil {
		t.Fatal(err)
	}
	if err := w.Dispose(map[string]any{"sender": "a"}); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	v, err := dynamic.NewDecoder().Decode(w.sample)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, hello("a", "kept", 3)) {
		t.Errorf("reusable sample after dispose = %#v", v)
	}

	samples, err := r.Take(WithInstanceStates(dynamicdds.NotAliveInstanceState))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	last := samples[1]
	if last.Value != nil || last.Info.ValidData {
		t.Errorf("dispose sample carries a value: %#v", last.Value)
	}
	if last.Info.InstanceState != dynamicdds.NotAliveDisposedInstanceState {
		t.Errorf("InstanceState = %v", last.Info.InstanceState)
	}
}

var blobType = typecode.Must(typecode.NewStruct("Blob",
	typecode.Member{Name: "id", Type: typecode.Long, Key: true},
	typecode.Member{Name: "data", Type: typecode.Must(typecode.NewSequence(typecode.Octet, 0))},
))

func TestDisposeOverwritesOctetPrefix(t *testing.T) {
	lp := loopback.NewNetwork().CreateParticipant("blob", 0)
	t.Cleanup(func() { _ = lp.Close() })
	if _, err := lp.CreateWriter("P::BlobWriter", "BlobTopic", blobType); err != nil {
		t.Fatal(err)
	}
	p := New(lp)
	t.Cleanup(func() { _ = p.Close() })
	w, err := p.LookupWriter("P::BlobWriter")
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Write(map[string]any{"id": 1, "data": []byte{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}
	if err := w.Dispose(map[string]any{"id": 1, "data": []byte{9}}); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	v, err := dynamic.NewDecoder().Decode(w.sample)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"id": int32(1), "data": []byte{9, 2, 3}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("reusable sample after dispose = %#v, want %#v", v, want)
	}
}

func TestUnregister(t *testing.T) {
	_, w, r := open(t, newLoopback(t))

	if err := w.Unregister(hello("nobody", "", 0)); errors.CodeOf(err) != errors.RetcodePreconditionNotMet {
		t.Fatalf("unregister of unknown instance: %v", err)
	}
	if err := w.Write(hello("a", "x", 1)); err != nil {
		t.Fatal(err)
	}
	if err := w.Unregister(map[string]any{"sender": "a"}); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	samples, err := r.Read(WithInstanceStates(dynamicdds.InstanceStateMask(dynamicdds.NotAliveNoWritersInstanceState)))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 || samples[1].Info.ValidData {
		t.Fatalf("samples = %+v", samples)
	}
}

func TestReadLeavesSamples(t *testing.T) {
	_, w, r := open(t, newLoopback(t))
	if err := w.Write(hello("a", "x", 1)); err != nil {
		t.Fatal(err)
	}

	first, err := r.Read()
	if err != nil || len(first) != 1 {
		t.Fatalf("Read = %d, %v", len(first), err)
	}
	if first[0].Info.SampleState != dynamicdds.NotReadSampleState {
		t.Errorf("first read state = %v", first[0].Info.SampleState)
	}

	unread, err := r.Read(WithSampleStates(dynamicdds.SampleStateMask(dynamicdds.NotReadSampleState)))
	if err != nil || len(unread) != 0 {
		t.Fatalf("unread filter = %d, %v", len(unread), err)
	}

	taken, err := r.Take(WithViewStates(dynamicdds.ViewStateMask(dynamicdds.NotNewViewState)))
	if err != nil || len(taken) != 1 {
		t.Fatalf("Take = %d, %v", len(taken), err)
	}
	if taken[0].Info.SampleState != dynamicdds.ReadSampleState {
		t.Errorf("state after read = %v", taken[0].Info.SampleState)
	}
}

func TestMaxSamples(t *testing.T) {
	_, w, r := open(t, newLoopback(t))
	for i := int32(0); i < 5; i++ {
		if err := w.Write(hello("a", "x", i)); err != nil {
			t.Fatal(err)
		}
	}
	samples, err := r.Take(WithMaxSamples(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	rest, _ := r.Take()
	if len(rest) != 3 {
		t.Errorf("remaining = %d, want 3", len(rest))
	}
}

func TestEncodeErrorsPropagate(t *testing.T) {
	_, w, r := open(t, newLoopback(t))

	tests := []struct {
		name  string
		value any
		want  *errors.Error
	}{
		{"range", map[string]any{"count": int64(1) << 31}, errors.ErrRange},
		{"nul", map[string]any{"sender": "a\x00b"}, errors.ErrInvalidValue},
		{"shape", []any{1, 2}, errors.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Write(tt.value)
			if !stderrors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if err := w.Write(map[string]any{"count": int64(1)<<31 - 1}); err != nil {
		t.Fatalf("max LONG rejected: %v", err)
	}
	samples, _ := r.Take()
	if len(samples) != 1 {
		t.Errorf("failed writes published samples: %d", len(samples))
	}
}

func TestLookup(t *testing.T) {
	p, w, r := open(t, newLoopback(t))

	w2, err := p.LookupWriter(writerName)
	if err != nil || w2 != w {
		t.Errorf("second writer lookup = %p, %v", w2, err)
	}
	r2, err := p.LookupReader(readerName)
	if err != nil || r2 != r {
		t.Errorf("second reader lookup = %p, %v", r2, err)
	}
	if w.Name() != writerName || !w.Type().Equal(helloType) || !r.Type().Equal(helloType) {
		t.Error("entity metadata mismatch")
	}

	if _, err := p.LookupWriter("MyPublisher::Missing"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing writer: %v", err)
	}
	if _, err := p.LookupReader("MySubscriber::Missing"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing reader: %v", err)
	}
}

func TestParticipantClose(t *testing.T) {
	lp := newLoopback(t)
	p, w, r := open(t, lp)
	if err := w.Write(hello("a", "x", 1)); err != nil {
		t.Fatal(err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := w.Write(hello("a", "x", 2)); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("write after close: %v", err)
	}
	if _, err := r.Take(); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("take after close: %v", err)
	}
	if _, err := r.AddDataAvailableCallback(func() {}); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("callback after close: %v", err)
	}
	if _, err := p.LookupWriter(writerName); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("lookup after close: %v", err)
	}
	if st := lp.Stats(); st.LiveData != 0 {
		t.Errorf("reusable sample leaked: %+v", st)
	}
}

func TestWriterCloseDeletesSample(t *testing.T) {
	lp := newLoopback(t)
	_, w, _ := open(t, lp)
	if err := w.Write(hello("a", "x", 1)); err != nil {
		t.Fatal(err)
	}
	if got := lp.Stats().LiveData; got != 1 {
		t.Fatalf("LiveData = %d, want 1", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := lp.Stats().LiveData; got != 0 {
		t.Errorf("LiveData after close = %d", got)
	}
	if err := w.Write(hello("a", "x", 1)); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("write after close: %v", err)
	}
}

func TestSessionIsWeak(t *testing.T) {
	lp := newLoopback(t)
	w := func() *Writer {
		p := New(lp)
		w, err := p.LookupWriter(writerName)
		if err != nil {
			t.Fatal(err)
		}
		return w
	}()
	runtime.GC()
	runtime.GC()
	if err := w.Write(hello("a", "x", 1)); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("write without a participant: %v", err)
	}
}

func TestNoLeaks(t *testing.T) {
	lp := newLoopback(t)
	_, w, r := open(t, lp)
	for i := int32(0); i < 3; i++ {
		if err := w.Write(hello("a", "x", i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Read(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Take(); err != nil {
		t.Fatal(err)
	}
	st := lp.Stats()
	if st.LiveData != 1 || st.LiveStrings != 0 || st.OutstandingLoans != 0 {
		t.Errorf("stats = %+v", st)
	}
	if st.LoansIssued != 2 {
		t.Errorf("LoansIssued = %d, want 2", st.LoansIssued)
	}
}

func TestReaderCloseUninstallsListener(t *testing.T) {
	lp := newLoopback(t)
	spy := newSpy(lp)
	_, _, r := open(t, spy)

	if _, err := r.AddDataAvailableCallback(func() {}); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := spy.reader.installs(); !reflect.DeepEqual(got, []bool{true, false}) {
		t.Errorf("listener changes = %v", got)
	}
	if _, err := r.Take(); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("take after close: %v", err)
	}
}

package pubsub

import (
	stderrors "errors"
	"sync"

	dynamicdds "github.com/wippyai/dynamic-dds"
	"github.com/wippyai/dynamic-dds/typecode"
)

// spyMiddleware wraps a middleware and records what the pubsub layer does
// with the reader named readerName.
type spyMiddleware struct {
	dynamicdds.Middleware
	reader *spyReader
}

func newSpy(mw dynamicdds.Middleware) *spyMiddleware {
	return &spyMiddleware{
		Middleware: mw,
		reader:     &spyReader{DataReader: mw.LookupDataReader(readerName)},
	}
}

func (m *spyMiddleware) LookupDataReader(name string) dynamicdds.DataReader {
	if name == readerName {
		return m.reader
	}
	return m.Middleware.LookupDataReader(name)
}

type spyReader struct {
	dynamicdds.DataReader

	mu          sync.Mutex
	acquired    int
	returned    int
	outstanding int
	overlapped  bool
	listeners   []bool

	// failMember makes the loaned data fail on this member.
	failMember string
	// returnErr is returned by ReturnLoan after handing the loan back.
	returnErr error
}

func (s *spyReader) Read(n int32, sm dynamicdds.SampleStateMask, vm dynamicdds.ViewStateMask, im dynamicdds.InstanceStateMask) (dynamicdds.Loan, error) {
	return s.acquire(s.DataReader.Read(n, sm, vm, im))
}

func (s *spyReader) Take(n int32, sm dynamicdds.SampleStateMask, vm dynamicdds.ViewStateMask, im dynamicdds.InstanceStateMask) (dynamicdds.Loan, error) {
	return s.acquire(s.DataReader.Take(n, sm, vm, im))
}

func (s *spyReader) acquire(l dynamicdds.Loan, err error) (dynamicdds.Loan, error) {
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outstanding > 0 {
		s.overlapped = true
	}
	s.acquired++
	s.outstanding++
	return &spyLoan{Loan: l, failMember: s.failMember}, nil
}

func (s *spyReader) ReturnLoan(l dynamicdds.Loan) error {
	sl, ok := l.(*spyLoan)
	if !ok {
		return stderrors.New("foreign loan")
	}
	if err := s.DataReader.ReturnLoan(sl.Loan); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.returned++
	s.outstanding--
	return s.returnErr
}

func (s *spyReader) SetListener(l dynamicdds.Listener, mask dynamicdds.StatusMask) error {
	s.mu.Lock()
	s.listeners = append(s.listeners, l != nil)
	s.mu.Unlock()
	return s.DataReader.SetListener(l, mask)
}

func (s *spyReader) counts() (acquired, returned int, overlapped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.returned, s.overlapped
}

func (s *spyReader) installs() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.listeners...)
}

type spyLoan struct {
	dynamicdds.Loan
	failMember string
}

func (l *spyLoan) Data(i int) dynamicdds.Data {
	d := l.Loan.Data(i)
	if l.failMember == "" {
		return d
	}
	return failingData{Data: d, member: l.failMember}
}

var errBrokenMember = stderrors.New("broken member")

// failingData fails every long getter on one member.
type failingData struct {
	dynamicdds.Data
	member string
}

func (d failingData) GetLong(name string, id typecode.MemberID) (int32, error) {
	if name == d.member {
		return 0, errBrokenMember
	}
	return d.Data.GetLong(name, id)
}

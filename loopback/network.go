package loopback

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/dynamic-dds/config"
	"github.com/wippyai/dynamic-dds/errors"
	"github.com/wippyai/dynamic-dds/typecode"
)

// Network connects participants living in one process. Writers and readers
// match when their participants share a domain id and they use the same
// topic name.
type Network struct {
	mu     sync.Mutex
	topics map[topicKey]*topic
}

type topicKey struct {
	domain int32
	name   string
}

// topic fans samples out to the readers attached to it.
type topic struct {
	key     topicKey
	tc      *typecode.TypeCode
	mu      sync.RWMutex
	readers []*Reader
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{topics: make(map[topicKey]*topic)}
}

// topic finds or creates a topic. A topic keeps the type it was first
// created with; a later use with a different type is inconsistent.
func (n *Network) topic(domain int32, name string, tc *typecode.TypeCode) (*topic, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := topicKey{domain: domain, name: name}
	if t, ok := n.topics[key]; ok {
		if !t.tc.Equal(tc) {
			return nil, errors.FromReturnCode(errors.PhaseLookup, errors.RetcodeInconsistentPolicy,
				"topic %q in domain %d already has a different type", name, domain)
		}
		return t, nil
	}
	t := &topic{key: key, tc: tc}
	n.topics[key] = t
	Logger().Debug("topic created", zap.String("topic", name), zap.Int32("domain", domain))
	return t, nil
}

// CreateParticipant joins the network on a domain. Entities are added with
// CreateWriter and CreateReader.
func (n *Network) CreateParticipant(name string, domain int32) *Participant {
	p := &Participant{
		net:     n,
		name:    name,
		domain:  domain,
		writers: make(map[string]*Writer),
		readers: make(map[string]*Reader),
	}
	p.objects = newObjectTable(p)
	return p
}

// CreateParticipantFromConfig creates the participant named
// "Library::Participant" in lib with all of its writers and readers.
// Writers are looked up as "Publisher::Writer" and readers as
// "Subscriber::Reader".
func (n *Network) CreateParticipantFromConfig(lib *config.Library, fullName string) (*Participant, error) {
	pc, ok := lib.Participant(fullName)
	if !ok {
		return nil, errors.NotFound(errors.PhaseLookup, "participant", fullName)
	}
	dom, ok := lib.Domain(pc.Domain)
	if !ok {
		return nil, errors.NotFound(errors.PhaseLookup, "domain", pc.Domain)
	}
	reg, err := lib.Registry()
	if err != nil {
		return nil, err
	}

	topicType := func(name string) (*typecode.TypeCode, error) {
		td := dom.Topic(name)
		if td == nil {
			return nil, errors.NotFound(errors.PhaseLookup, "topic", name)
		}
		tc, ok := reg.Lookup(td.Type)
		if !ok {
			return nil, errors.NotFound(errors.PhaseLookup, "type", td.Type)
		}
		return tc, nil
	}

	p := n.CreateParticipant(fullName, dom.ID)
	build := func() error {
		for _, pub := range pc.Publishers {
			for _, wd := range pub.Writers {
				tc, err := topicType(wd.Topic)
				if err != nil {
					return err
				}
				if _, err := p.CreateWriter(pub.Name+"::"+wd.Name, wd.Topic, tc); err != nil {
					return err
				}
			}
		}
		for _, sub := range pc.Subscribers {
			for _, rd := range sub.Readers {
				tc, err := topicType(rd.Topic)
				if err != nil {
					return err
				}
				qos := ReaderQoS{HistoryDepth: rd.HistoryDepth, MaxOutstandingLoans: rd.MaxOutstandingLoans}
				if _, err := p.CreateReader(sub.Name+"::"+rd.Name, rd.Topic, tc, qos); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := build(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (t *topic) attach(r *Reader) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readers = append(t.readers, r)
}

func (t *topic) detach(r *Reader) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, x := range t.readers {
		if x == r {
			t.readers = append(t.readers[:i], t.readers[i+1:]...)
			return
		}
	}
}

// deliver hands s to every attached reader and reports how many took it.
func (t *topic) deliver(s *sample) int {
	t.mu.RLock()
	readers := append([]*Reader(nil), t.readers...)
	t.mu.RUnlock()

	n := 0
	for _, r := range readers {
		if r.receive(s) {
			n++
		}
	}
	return n
}

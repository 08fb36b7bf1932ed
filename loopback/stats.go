package loopback

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/dynamic-dds/resource"
)

// Object classes tracked in a participant's resource table.
const (
	classData resource.Class = iota + 1
	classString
	classLoan
)

func className(c resource.Class) string {
	switch c {
	case classData:
		return "data"
	case classString:
		return "string"
	case classLoan:
		return "loan"
	}
	return "unknown"
}

// Stats is a point-in-time view of the objects a participant has handed
// out. Live counts drop back to zero once every data object is deleted,
// every string freed and every loan returned.
type Stats struct {
	LiveData         int
	LiveStrings      int
	OutstandingLoans int

	// Totals since the participant was created.
	DataCreated   uint64
	StringsIssued uint64
	LoansIssued   uint64
	Published     uint64
	Delivered     uint64
}

// tally observes the resource table and keeps lifetime totals.
type tally struct {
	participant string
	data        atomic.Uint64
	strings     atomic.Uint64
	loans       atomic.Uint64
	published   atomic.Uint64
	delivered   atomic.Uint64
}

func (t *tally) OnResourceEvent(e resource.Event) {
	if e.Type == resource.EventCreated {
		switch e.Class {
		case classData:
			t.data.Add(1)
		case classString:
			t.strings.Add(1)
		case classLoan:
			t.loans.Add(1)
		}
	}
	if e.Class != classString {
		Logger().Debug("object event",
			zap.String("participant", t.participant),
			zap.String("class", className(e.Class)),
			zap.Stringer("event", e.Type),
			zap.Uint32("handle", uint32(e.Handle)))
	}
}

// Stats reports the participant's object counts.
func (p *Participant) Stats() Stats {
	return Stats{
		LiveData:         p.objects.Count(classData),
		LiveStrings:      p.objects.Count(classString),
		OutstandingLoans: p.objects.Count(classLoan),
		DataCreated:      p.tally.data.Load(),
		StringsIssued:    p.tally.strings.Load(),
		LoansIssued:      p.tally.loans.Load(),
		Published:        p.tally.published.Load(),
		Delivered:        p.tally.delivered.Load(),
	}
}

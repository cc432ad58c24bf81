package manager

import (
	"github.com/sarchlab/memsim/mem/workload"
	"github.com/sarchlab/memsim/sim"
)

// A reclaimDoneEvent frees a reclaiming block once the reclaim delay has
// elapsed. It carries the run generation so that events scheduled before a
// reset die quietly.
type reclaimDoneEvent struct {
	*sim.EventBase

	owner      workload.PID
	automatic  bool
	generation uint64
}

func newReclaimDoneEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	owner workload.PID,
	automatic bool,
	generation uint64,
) *reclaimDoneEvent {
	return &reclaimDoneEvent{
		EventBase:  sim.NewEventBase(time, handler),
		owner:      owner,
		automatic:  automatic,
		generation: generation,
	}
}

// An expiryCheckEvent fires the periodic lifetime scan. It is secondary so
// that allocation steps at the same instant run first.
type expiryCheckEvent struct {
	*sim.EventBase

	generation uint64
}

func newExpiryCheckEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	generation uint64,
) *expiryCheckEvent {
	return &expiryCheckEvent{
		EventBase:  sim.NewSecondaryEventBase(time, handler),
		generation: generation,
	}
}

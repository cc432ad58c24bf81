// Package workload defines the synthetic processes that request memory and
// the registry that tracks their lifecycle.
package workload

import (
	"github.com/sarchlab/memsim/sim"
)

// PID stands for Process ID.
type PID uint32

// Status describes where a process is in its lifecycle.
type Status int

// Possible process statuses.
const (
	StatusWaiting Status = iota
	StatusAllocated
	StatusFailed
	StatusTerminated
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusAllocated:
		return "allocated"
	case StatusFailed:
		return "failed"
	case StatusTerminated:
		return "terminated"
	case StatusCompleted:
		return "completed"
	}

	return "unknown"
}

// A Process is one synthetic memory consumer. A process asks for a fixed
// amount of memory, holds it for its lifetime, and releases it when the
// lifetime runs out or when it is terminated by hand.
type Process struct {
	ID     PID
	Size   uint64
	Status Status

	// AllocatedAt is the time the process received its memory. It is only
	// meaningful while the process is allocated.
	AllocatedAt sim.VTimeInSec

	// Lifetime is how long the process keeps its memory once allocated.
	Lifetime sim.VTimeInSec

	// PausedElapsed holds the time the process had already spent allocated
	// when the run was paused. It is only meaningful while paused.
	PausedElapsed sim.VTimeInSec
}

// Remaining returns how much of the lifetime is left at the given time.
func (p *Process) Remaining(now sim.VTimeInSec) sim.VTimeInSec {
	if p.Status != StatusAllocated {
		return 0
	}

	remaining := p.Lifetime - (now - p.AllocatedAt)
	if remaining < 0 {
		return 0
	}

	return remaining
}

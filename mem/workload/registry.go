package workload

import (
	"errors"
	"log"

	"github.com/sarchlab/memsim/sim"
)

// Registry validation errors.
var (
	ErrNoProcesses = errors.New("no processes specified")
	ErrZeroSize    = errors.New("process size cannot be zero")
)

// A Registry owns all the processes of one run. Queries that walk the
// processes always do so in ID order, so the earliest-submitted process is
// served first.
type Registry struct {
	procs []*Process
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Init replaces the registry content with one fresh process per size, all
// waiting, with IDs assigned sequentially from 1 in input order.
func (r *Registry) Init(sizes []uint64, lifetime sim.VTimeInSec) error {
	if len(sizes) == 0 {
		return ErrNoProcesses
	}

	procs := make([]*Process, 0, len(sizes))
	for i, size := range sizes {
		if size == 0 {
			return ErrZeroSize
		}

		procs = append(procs, &Process{
			ID:       PID(i + 1),
			Size:     size,
			Status:   StatusWaiting,
			Lifetime: lifetime,
		})
	}

	r.procs = procs

	return nil
}

// Clear removes every process from the registry.
func (r *Registry) Clear() {
	r.procs = nil
}

// Len returns the number of processes in the registry.
func (r *Registry) Len() int {
	return len(r.procs)
}

// NextWaiting returns the waiting process with the smallest ID, or nil when
// no process is waiting.
func (r *Registry) NextWaiting() *Process {
	return r.firstWithStatus(StatusWaiting)
}

// NextFailed returns the failed process with the smallest ID, or nil when no
// process is failed.
func (r *Registry) NextFailed() *Process {
	return r.firstWithStatus(StatusFailed)
}

func (r *Registry) firstWithStatus(s Status) *Process {
	for _, p := range r.procs {
		if p.Status == s {
			return p
		}
	}

	return nil
}

// Failed returns the failed processes in ID order.
func (r *Registry) Failed() []*Process {
	var failed []*Process
	for _, p := range r.procs {
		if p.Status == StatusFailed {
			failed = append(failed, p)
		}
	}

	return failed
}

// Find returns the process with the given ID, or nil when it does not exist.
func (r *Registry) Find(pid PID) *Process {
	for _, p := range r.procs {
		if p.ID == pid {
			return p
		}
	}

	return nil
}

// Processes returns a copy of all the processes in ID order.
func (r *Registry) Processes() []Process {
	procs := make([]Process, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, *p)
	}

	return procs
}

// MarkAllocated moves a waiting process to allocated and stamps the
// allocation time.
func (r *Registry) MarkAllocated(p *Process, now sim.VTimeInSec) {
	r.mustBeIn(p, StatusWaiting)

	p.Status = StatusAllocated
	p.AllocatedAt = now
}

// MarkFailed moves a waiting process to failed.
func (r *Registry) MarkFailed(p *Process) {
	r.mustBeIn(p, StatusWaiting)

	p.Status = StatusFailed
}

// MarkWaiting moves a failed process back to waiting so that it can retry.
func (r *Registry) MarkWaiting(p *Process) {
	r.mustBeIn(p, StatusFailed)

	p.Status = StatusWaiting
}

// MarkTerminated moves an allocated process to terminated and clears its
// allocation time.
func (r *Registry) MarkTerminated(p *Process) {
	r.mustBeIn(p, StatusAllocated)

	p.Status = StatusTerminated
	p.AllocatedAt = 0
	p.PausedElapsed = 0
}

// MarkCompleted moves a terminated process to completed.
func (r *Registry) MarkCompleted(p *Process) {
	r.mustBeIn(p, StatusTerminated)

	p.Status = StatusCompleted
}

// ResetFailedToWaiting moves every failed process back to waiting and
// returns how many processes were moved.
func (r *Registry) ResetFailedToWaiting() int {
	count := 0
	for _, p := range r.procs {
		if p.Status == StatusFailed {
			p.Status = StatusWaiting
			count++
		}
	}

	return count
}

// SnapshotElapsed records, for every allocated process, how long it has been
// allocated at the given time. It is used when the run pauses.
func (r *Registry) SnapshotElapsed(now sim.VTimeInSec) {
	for _, p := range r.procs {
		if p.Status == StatusAllocated {
			p.PausedElapsed = now - p.AllocatedAt
		}
	}
}

// RestoreElapsed rewrites the allocation time of every allocated process so
// that the elapsed time recorded by SnapshotElapsed is preserved at the
// given time. It is used when the run resumes.
func (r *Registry) RestoreElapsed(now sim.VTimeInSec) {
	for _, p := range r.procs {
		if p.Status == StatusAllocated {
			p.AllocatedAt = now - p.PausedElapsed
			p.PausedElapsed = 0
		}
	}
}

// WaitingCount returns the number of waiting processes.
func (r *Registry) WaitingCount() int {
	return r.countWithStatus(StatusWaiting)
}

// AllocatedCount returns the number of allocated processes.
func (r *Registry) AllocatedCount() int {
	return r.countWithStatus(StatusAllocated)
}

// FailedCount returns the number of failed processes.
func (r *Registry) FailedCount() int {
	return r.countWithStatus(StatusFailed)
}

// TerminatedCount returns the number of terminated processes.
func (r *Registry) TerminatedCount() int {
	return r.countWithStatus(StatusTerminated)
}

// CompletedCount returns the number of completed processes.
func (r *Registry) CompletedCount() int {
	return r.countWithStatus(StatusCompleted)
}

// ActiveCount returns the number of processes that still demand memory now
// or in the future.
func (r *Registry) ActiveCount() int {
	return r.countWithStatus(StatusWaiting) +
		r.countWithStatus(StatusAllocated) +
		r.countWithStatus(StatusFailed)
}

func (r *Registry) countWithStatus(s Status) int {
	count := 0
	for _, p := range r.procs {
		if p.Status == s {
			count++
		}
	}

	return count
}

func (r *Registry) mustBeIn(p *Process, allowed ...Status) {
	for _, s := range allowed {
		if p.Status == s {
			return
		}
	}

	log.Panicf("process %d is %s, which does not allow this transition",
		p.ID, p.Status)
}

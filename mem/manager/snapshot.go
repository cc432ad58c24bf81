package manager

import (
	"github.com/sarchlab/memsim/mem/workload"
	"github.com/sarchlab/memsim/sim"
)

// A BlockView is the read-only presentation of one memory block.
type BlockView struct {
	Addr  uint64       `json:"addr"`
	Size  uint64       `json:"size"`
	State string       `json:"state"`
	Owner workload.PID `json:"owner,omitempty"`
}

// A ProcessView is the read-only presentation of one process.
type ProcessView struct {
	ID        workload.PID   `json:"id"`
	Size      uint64         `json:"size"`
	Status    string         `json:"status"`
	Remaining sim.VTimeInSec `json:"remaining"`
}

// Stats carries the derived figures of the run.
type Stats struct {
	TotalKB                 uint64 `json:"total_kb"`
	AllocatedKB             uint64 `json:"allocated_kb"`
	ReclaimingKB            uint64 `json:"reclaiming_kb"`
	FreeKB                  uint64 `json:"free_kb"`
	LargestFreeKB           uint64 `json:"largest_free_kb"`
	ExternalFragmentationKB uint64 `json:"external_fragmentation_kb"`
	Waiting                 int    `json:"waiting"`
	Allocated               int    `json:"allocated"`
	Failed                  int    `json:"failed"`
	Terminated              int    `json:"terminated"`
	Completed               int    `json:"completed"`
	Active                  int    `json:"active"`
}

// A Snapshot is a consistent view of the whole run at one instant.
type Snapshot struct {
	Now         sim.VTimeInSec `json:"now"`
	Paused      bool           `json:"paused"`
	AutoRunning bool           `json:"auto_running"`
	Algorithm   string         `json:"algorithm"`
	Blocks      []BlockView    `json:"blocks"`
	Processes   []ProcessView  `json:"processes"`
	Stats       Stats          `json:"stats"`
}

// Snapshot returns the current state of the run.
func (c *Comp) Snapshot() Snapshot {
	c.Lock()
	defer c.Unlock()

	now := c.CurrentTime()

	blocks := make([]BlockView, 0, c.region.Len())
	for _, b := range c.region.Blocks() {
		blocks = append(blocks, BlockView{
			Addr:  b.Addr,
			Size:  b.Size,
			State: b.State.String(),
			Owner: b.Owner,
		})
	}

	procs := make([]ProcessView, 0, c.registry.Len())
	for _, p := range c.registry.Processes() {
		procs = append(procs, ProcessView{
			ID:        p.ID,
			Size:      p.Size,
			Status:    p.Status.String(),
			Remaining: c.remainingLifetime(p, now),
		})
	}

	return Snapshot{
		Now:         now,
		Paused:      c.paused,
		AutoRunning: c.autoRunning,
		Algorithm:   c.config.Algorithm.String(),
		Blocks:      blocks,
		Processes:   procs,
		Stats:       c.statsLocked(),
	}
}

// While paused the remaining lifetime comes from the frozen elapsed time, so
// the view does not drift as virtual time advances.
func (c *Comp) remainingLifetime(
	p workload.Process,
	now sim.VTimeInSec,
) sim.VTimeInSec {
	if c.paused && p.Status == workload.StatusAllocated {
		remaining := p.Lifetime - p.PausedElapsed
		if remaining < 0 {
			return 0
		}

		return remaining
	}

	return p.Remaining(now)
}

// Stats returns the derived figures of the run.
func (c *Comp) Stats() Stats {
	c.Lock()
	defer c.Unlock()

	return c.statsLocked()
}

func (c *Comp) statsLocked() Stats {
	return Stats{
		TotalKB:                 c.region.Total(),
		AllocatedKB:             c.region.AllocatedKB(),
		ReclaimingKB:            c.region.ReclaimingKB(),
		FreeKB:                  c.region.FreeKB(),
		LargestFreeKB:           c.region.LargestFreeKB(),
		ExternalFragmentationKB: c.region.ExternalFragmentationKB(),
		Waiting:                 c.registry.WaitingCount(),
		Allocated:               c.registry.AllocatedCount(),
		Failed:                  c.registry.FailedCount(),
		Terminated:              c.registry.TerminatedCount(),
		Completed:               c.registry.CompletedCount(),
		Active:                  c.registry.ActiveCount(),
	}
}

// UsedKB returns the memory held by processes, including blocks in the
// reclaim window.
func (c *Comp) UsedKB() uint64 {
	c.Lock()
	defer c.Unlock()

	return c.usedKBLocked()
}

// usedKBLocked is the occupied level that every lifecycle hook carries in
// its Detail field. Hooks fire with the component locked, so observers must
// read the level from the context instead of calling back into the
// component.
func (c *Comp) usedKBLocked() uint64 {
	return c.region.AllocatedKB() + c.region.ReclaimingKB()
}

// TotalKB returns the size of the memory region.
func (c *Comp) TotalKB() uint64 {
	c.Lock()
	defer c.Unlock()

	return c.region.Total()
}

package manager

import (
	"fmt"

	"github.com/sarchlab/memsim/mem/contig"
	"github.com/sarchlab/memsim/mem/workload"
	"github.com/sarchlab/memsim/sim"
	"github.com/sarchlab/memsim/tracing"
)

// deallocateLocked is the shared routine behind manual deallocation and
// lifetime expiry. The owner is terminated immediately; the block holds its
// memory through the reclaim window and frees when the reclaimDoneEvent
// fires.
func (c *Comp) deallocateLocked(blockIndex int, automatic bool) error {
	blk := c.region.Block(blockIndex)
	if blk.State != contig.BlockAllocated {
		if automatic {
			return nil
		}

		return fmt.Errorf("block %d: %w", blockIndex, ErrBlockNotAllocated)
	}

	if p := c.registry.Find(blk.Owner); p != nil {
		c.registry.MarkTerminated(p)
	}

	c.region.BeginReclaim(blockIndex)
	c.addResidencyStepLocked(blk.Owner, "reclaim_begin")
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosReclaimBegin,
		Item:   blk.Owner,
		Detail: c.usedKBLocked(),
	})

	done := newReclaimDoneEvent(
		c.CurrentTime()+c.config.ReclaimDelay,
		c,
		blk.Owner,
		automatic,
		c.generation,
	)
	c.Engine.Schedule(done)

	return nil
}

func (c *Comp) handleReclaimDone(e *reclaimDoneEvent) error {
	c.Lock()
	defer c.Unlock()

	if e.generation != c.generation {
		return nil
	}

	index := c.region.ReclaimingIndex(e.owner)
	if index < 0 {
		return nil
	}

	c.region.Free(index)
	c.region.MergeAdjacentFree()
	c.endResidencyTaskLocked(e.owner)
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosBlockFreed,
		Item:   e.owner,
		Detail: c.usedKBLocked(),
	})

	if e.automatic {
		if p := c.registry.Find(e.owner); p != nil {
			c.registry.MarkCompleted(p)
		}
	}

	c.retrySweepLocked()

	return nil
}

func (c *Comp) handleExpiryCheck(e *expiryCheckEvent) error {
	c.Lock()
	defer c.Unlock()

	if e.generation != c.generation {
		return nil
	}

	if !c.autoRunning {
		c.nextExpiryTime = -1
		return nil
	}

	if !c.paused {
		c.expireDueLocked()
	}

	c.nextExpiryTime = c.config.ExpiryCheckFreq.NextTick(c.CurrentTime())
	c.Engine.Schedule(newExpiryCheckEvent(c.nextExpiryTime, c, c.generation))

	return nil
}

// armExpiryLocked schedules the next expiry scan unless the chain is already
// armed.
func (c *Comp) armExpiryLocked() {
	t := c.config.ExpiryCheckFreq.NextTick(c.CurrentTime())
	if c.nextExpiryTime >= t {
		return
	}

	c.nextExpiryTime = t
	c.Engine.Schedule(newExpiryCheckEvent(t, c, c.generation))
}

func (c *Comp) expireDueLocked() {
	now := c.CurrentTime()

	for i := 0; i < c.region.Len(); i++ {
		blk := c.region.Block(i)
		if blk.State != contig.BlockAllocated {
			continue
		}

		p := c.registry.Find(blk.Owner)
		if p == nil || p.Status != workload.StatusAllocated {
			continue
		}

		if now-p.AllocatedAt >= p.Lifetime {
			c.deallocateLocked(i, true)
		}
	}
}

// retrySweepLocked allocates failed processes that fit after memory was
// freed. Each pass places at most the first one that fits; passes repeat
// until one places nothing. The reentrancy flag keeps simultaneous triggers
// from double-allocating.
func (c *Comp) retrySweepLocked() {
	if c.inRetrySweep || c.paused {
		return
	}

	c.inRetrySweep = true
	defer func() { c.inRetrySweep = false }()

	for {
		placed := false

		for _, p := range c.registry.Failed() {
			index, ok := c.config.Algorithm.Pick(c.region.Blocks(), p.Size)
			if !ok {
				continue
			}

			c.registry.MarkWaiting(p)
			c.allocateLocked(index, p)
			c.addResidencyStepLocked(p.ID, "retry")
			placed = true

			break
		}

		if !placed {
			return
		}
	}
}

func (c *Comp) residencyTaskID(pid workload.PID) string {
	return fmt.Sprintf("%s.p%d.r%d", c.Name(), pid, c.generation)
}

func (c *Comp) startResidencyTaskLocked(p *workload.Process) {
	tracing.StartTask(
		c.residencyTaskID(p.ID),
		"",
		c,
		"residency",
		fmt.Sprintf("process_%d", p.ID),
		nil,
	)
}

func (c *Comp) addResidencyStepLocked(pid workload.PID, what string) {
	tracing.AddTaskStep(c.residencyTaskID(pid), c, what)
}

func (c *Comp) endResidencyTaskLocked(pid workload.PID) {
	tracing.EndTask(c.residencyTaskID(pid), c)
}

func (c *Comp) endOpenResidencyTasksLocked() {
	for _, blk := range c.region.Blocks() {
		if blk.IsOccupied() {
			c.endResidencyTaskLocked(blk.Owner)
		}
	}
}

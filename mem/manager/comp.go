package manager

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/memsim/mem/contig"
	"github.com/sarchlab/memsim/mem/workload"
	"github.com/sarchlab/memsim/sim"
)

// Hook positions for the observers of a run. Hooks fire while the component
// holds its lock, so every context carries the occupied level in KB as the
// detail; observers read it from there rather than querying the component.
var (
	// HookPosAllocation is triggered when a process is placed in a block.
	// The item is the process ID.
	HookPosAllocation = &sim.HookPos{Name: "Allocation"}

	// HookPosAllocFailure is triggered when no block fits a candidate. The
	// item is the process ID.
	HookPosAllocFailure = &sim.HookPos{Name: "AllocFailure"}

	// HookPosReclaimBegin is triggered when a block enters the reclaim
	// window. The item is the owner process ID.
	HookPosReclaimBegin = &sim.HookPos{Name: "ReclaimBegin"}

	// HookPosBlockFreed is triggered when a block becomes free. The item is
	// the former owner process ID, or 0 when a whole run is released.
	HookPosBlockFreed = &sim.HookPos{Name: "BlockFreed"}

	// HookPosCompaction is triggered after the region is compacted.
	HookPosCompaction = &sim.HookPos{Name: "Compaction"}

	// HookPosStep is triggered after every allocation attempt. The item is
	// the StepResult.
	HookPosStep = &sim.HookPos{Name: "Step"}
)

// StepOutcome classifies one allocation attempt.
type StepOutcome int

// The possible outcomes of a step.
const (
	// StepAllocated means the candidate process received a block.
	StepAllocated StepOutcome = iota

	// StepFailed means no block fits the candidate process.
	StepFailed

	// StepIdle means there was no candidate process.
	StepIdle

	// StepStaleConfig means the step was refused because the configuration
	// was edited without a reset.
	StepStaleConfig

	// StepPaused means the step was refused because the run is paused.
	StepPaused
)

func (o StepOutcome) String() string {
	switch o {
	case StepAllocated:
		return "allocated"
	case StepFailed:
		return "failed"
	case StepIdle:
		return "idle"
	case StepStaleConfig:
		return "stale-config"
	case StepPaused:
		return "paused"
	}

	return "unknown"
}

// IdleStatus describes the demand population when a step finds no candidate.
type IdleStatus int

// The possible idle classifications.
const (
	// IdleResident means allocated or reclaiming processes still hold
	// memory, so the run keeps progressing on its own.
	IdleResident IdleStatus = iota

	// IdleAllCompleted means every process that ran has completed.
	IdleAllCompleted

	// IdleAllFailed means every remaining process failed to fit.
	IdleAllFailed

	// IdleMixed means the population ended in a mix of terminal states.
	IdleMixed
)

func (s IdleStatus) String() string {
	switch s {
	case IdleResident:
		return "resident"
	case IdleAllCompleted:
		return "all-completed"
	case IdleAllFailed:
		return "all-failed"
	case IdleMixed:
		return "mixed"
	}

	return "unknown"
}

// A StepResult reports what one allocation attempt did.
type StepResult struct {
	Outcome StepOutcome

	// Process is the candidate, for StepAllocated and StepFailed.
	Process workload.PID

	// BlockIndex is the block that received the process, for StepAllocated.
	BlockIndex int

	// MemoryLeft reports, for StepFailed, whether any free memory exists at
	// all. It separates a fragmented region from an exhausted one.
	MemoryLeft bool

	// Idle classifies the demand population, for StepIdle.
	Idle IdleStatus

	// Warn is true on the first refused step after a configuration edit.
	Warn bool
}

// Comp drives one allocation run. It owns the memory region and the process
// registry, performs allocation attempts, reclaims expired blocks after the
// reclaim delay, retries failed processes when memory frees up, and compacts
// the region on demand.
//
// Commands arrive from the host (CLI or monitoring API) and events arrive
// from the engine; both serialize on the component lock.
type Comp struct {
	*sim.TickingComponent

	region   *contig.Region
	registry *workload.Registry
	config   Config

	generation     uint64
	autoRunning    bool
	paused         bool
	configDirty    bool
	staleWarned    bool
	inRetrySweep   bool
	nextExpiryTime sim.VTimeInSec
}

// Handle dispatches the events of the run.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *reclaimDoneEvent:
		return c.handleReclaimDone(e)
	case *expiryCheckEvent:
		return c.handleExpiryCheck(e)
	case sim.TickEvent:
		return c.TickingComponent.Handle(e)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(e))
	}

	return nil
}

// Tick performs one auto-run allocation attempt. The tick chain stays alive
// while the run can still progress and dies when it cannot.
func (c *Comp) Tick() bool {
	c.Lock()
	defer c.Unlock()

	if !c.autoRunning {
		return false
	}

	if c.paused {
		return true
	}

	result := c.stepLocked()

	switch result.Outcome {
	case StepStaleConfig:
		c.autoRunning = false
		return false
	case StepIdle:
		if result.Idle == IdleResident {
			return true
		}

		c.autoRunning = false

		return false
	default:
		return true
	}
}

// Step performs one allocation attempt on behalf of the host. Inert while
// paused.
func (c *Comp) Step() StepResult {
	c.Lock()
	defer c.Unlock()

	if c.paused {
		return StepResult{Outcome: StepPaused}
	}

	return c.stepLocked()
}

func (c *Comp) stepLocked() StepResult {
	if c.configDirty {
		warn := !c.staleWarned
		c.staleWarned = true

		return c.reportStepLocked(StepResult{
			Outcome: StepStaleConfig,
			Warn:    warn,
		})
	}

	candidate := c.registry.NextWaiting()
	if candidate == nil {
		candidate = c.promoteFailedLocked()
	}

	if candidate == nil {
		return c.reportStepLocked(StepResult{
			Outcome: StepIdle,
			Idle:    c.classifyIdleLocked(),
		})
	}

	index, ok := c.config.Algorithm.Pick(c.region.Blocks(), candidate.Size)
	if !ok {
		c.registry.MarkFailed(candidate)
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosAllocFailure,
			Item:   candidate.ID,
			Detail: c.usedKBLocked(),
		})

		return c.reportStepLocked(StepResult{
			Outcome:    StepFailed,
			Process:    candidate.ID,
			MemoryLeft: c.region.FreeKB() > 0,
		})
	}

	c.allocateLocked(index, candidate)

	return c.reportStepLocked(StepResult{
		Outcome:    StepAllocated,
		Process:    candidate.ID,
		BlockIndex: index,
	})
}

func (c *Comp) reportStepLocked(result StepResult) StepResult {
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosStep,
		Item:   result,
		Detail: c.usedKBLocked(),
	})

	return result
}

// promoteFailedLocked returns the first failed process that fits right now,
// promoted back to waiting. Failed processes that still do not fit stay
// failed, so a run where nothing fits can reach the idle outcome.
func (c *Comp) promoteFailedLocked() *workload.Process {
	for _, p := range c.registry.Failed() {
		if _, ok := c.config.Algorithm.Pick(c.region.Blocks(), p.Size); ok {
			c.registry.MarkWaiting(p)
			return p
		}
	}

	return nil
}

func (c *Comp) classifyIdleLocked() IdleStatus {
	switch {
	case c.registry.AllocatedCount() > 0 || c.region.ReclaimingKB() > 0:
		return IdleResident
	case c.registry.FailedCount() == 0 && c.registry.TerminatedCount() == 0:
		return IdleAllCompleted
	case c.registry.CompletedCount() == 0 &&
		c.registry.TerminatedCount() == 0:
		return IdleAllFailed
	default:
		return IdleMixed
	}
}

func (c *Comp) allocateLocked(index int, p *workload.Process) {
	c.region.Split(index, p.Size, p.ID)
	c.registry.MarkAllocated(p, c.CurrentTime())
	c.startResidencyTaskLocked(p)
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosAllocation,
		Item:   p.ID,
		Detail: c.usedKBLocked(),
	})
}

// Configure validates the configuration and resets the run with it. Events
// that are still in flight from the previous run die quietly.
func (c *Comp) Configure(cfg Config) error {
	c.Lock()
	defer c.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}

	region := contig.NewRegion(0)
	if err := region.Init(cfg.BlockSizes, cfg.TotalMemory); err != nil {
		return err
	}

	registry := workload.NewRegistry()
	if err := registry.Init(cfg.ProcessSizes, cfg.Lifetime); err != nil {
		return err
	}

	if c.region != nil {
		c.endOpenResidencyTasksLocked()
	}

	c.resetRunStateLocked()

	c.region = region
	c.registry = registry
	c.config = cfg
	c.configDirty = false
	c.staleWarned = false
	c.TickScheduler.Freq = cfg.StepFreq

	return nil
}

func (c *Comp) resetRunStateLocked() {
	c.autoRunning = false
	c.paused = false
	c.nextExpiryTime = -1
	c.generation++
}

// StartAutoRun arms the periodic allocation attempts and the lifetime-expiry
// scan. It is refused while the configuration is dirty.
func (c *Comp) StartAutoRun() error {
	c.Lock()
	defer c.Unlock()

	if c.configDirty {
		return ErrStaleConfig
	}

	if c.autoRunning {
		return nil
	}

	c.autoRunning = true
	c.TickLater()
	c.armExpiryLocked()

	return nil
}

// StopAutoRun lets the periodic chains die on their next firing. Allocated
// processes keep their memory.
func (c *Comp) StopAutoRun() {
	c.Lock()
	defer c.Unlock()

	c.autoRunning = false
}

// EndRun stops the run and releases every block immediately, without the
// reclaim delay. The memory configuration itself survives; only the demand
// is cleared.
func (c *Comp) EndRun() {
	c.Lock()
	defer c.Unlock()

	c.endOpenResidencyTasksLocked()
	c.resetRunStateLocked()

	c.region.ForceReleaseAll()
	c.registry.Clear()

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosBlockFreed,
		Item:   workload.PID(0),
		Detail: c.usedKBLocked(),
	})
}

// Pause freezes the elapsed time of every allocated process. While paused,
// ticks and expiry scans fire as no-ops and demand-mutating commands are
// inert.
func (c *Comp) Pause() {
	c.Lock()
	defer c.Unlock()

	if c.paused {
		return
	}

	c.paused = true
	c.registry.SnapshotElapsed(c.CurrentTime())
}

// Resume restores the allocation times so that every remaining lifetime is
// preserved exactly.
func (c *Comp) Resume() {
	c.Lock()
	defer c.Unlock()

	if !c.paused {
		return
	}

	c.paused = false
	c.registry.RestoreElapsed(c.CurrentTime())
}

// Compact packs the occupied blocks to the front of the region and resets
// every failed process to waiting. Inert while paused.
func (c *Comp) Compact() {
	c.Lock()
	defer c.Unlock()

	if c.paused {
		return
	}

	c.region.Compact()
	c.registry.ResetFailedToWaiting()
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCompaction,
		Item:   nil,
		Detail: c.usedKBLocked(),
	})
	c.retrySweepLocked()
}

// Deallocate manually releases the block at the given index. The owner stays
// terminated and is never re-queued. Inert while paused.
func (c *Comp) Deallocate(blockIndex int) error {
	c.Lock()
	defer c.Unlock()

	if blockIndex < 0 || blockIndex >= c.region.Len() {
		return fmt.Errorf("block %d: %w", blockIndex, ErrBlockNotAllocated)
	}

	if c.paused {
		return nil
	}

	return c.deallocateLocked(blockIndex, false)
}

// MarkConfigEdited records that the presentation changed the configuration.
// Stepping and starting a run are refused until the edit is acknowledged or
// applied with Configure.
func (c *Comp) MarkConfigEdited() {
	c.Lock()
	defer c.Unlock()

	c.configDirty = true
	c.staleWarned = false
}

// AcknowledgeConfig lifts the stale-configuration refusal without resetting.
func (c *Comp) AcknowledgeConfig() {
	c.Lock()
	defer c.Unlock()

	c.configDirty = false
	c.staleWarned = false
}

// Config returns the applied configuration.
func (c *Comp) Config() Config {
	c.Lock()
	defer c.Unlock()

	return c.config
}

// Package main runs randomized allocation scenarios and checks the
// structural invariants of the region and the registry after every advance.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sarchlab/memsim/mem/fit"
	"github.com/sarchlab/memsim/mem/manager"
	"github.com/sarchlab/memsim/mem/workload"
	"github.com/sarchlab/memsim/sim"
)

var seedFlag = flag.Int64("seed", 0, "Random Seed")
var numScenarioFlag = flag.Int("num-scenarios",
	20, "Number of scenarios to run")

var algorithms = []fit.Algorithm{fit.FirstFit, fit.BestFit, fit.WorstFit}

type scenarioTest struct {
	rng      *rand.Rand
	cfg      manager.Config
	engine   sim.Engine
	manager  *manager.Comp
	manual   map[workload.PID]bool
	deadline sim.VTimeInSec
}

func main() {
	flag.Parse()

	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	fmt.Fprintf(os.Stderr, "Seed %d\n", seed)
	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < *numScenarioFlag; i++ {
		s := setupScenario(rng)
		s.run()
	}
}

func setupScenario(rng *rand.Rand) *scenarioTest {
	cfg := randomConfig(rng)

	engine := sim.NewSerialEngine()
	mgr := manager.MakeBuilder().
		WithEngine(engine).
		Build("Manager")

	if err := mgr.Configure(cfg); err != nil {
		panic(err)
	}

	return &scenarioTest{
		rng:      rng,
		cfg:      cfg,
		engine:   engine,
		manager:  mgr,
		manual:   make(map[workload.PID]bool),
		deadline: haltDeadline(cfg),
	}
}

// randomConfig draws a scenario. Process sizes deliberately overshoot the
// block sizes sometimes, so runs end in every terminal mix.
func randomConfig(rng *rand.Rand) manager.Config {
	numBlocks := 2 + rng.Intn(5)
	blockSizes := make([]uint64, numBlocks)
	total := uint64(0)

	for i := range blockSizes {
		blockSizes[i] = uint64(16 * (1 + rng.Intn(40)))
		total += blockSizes[i]
	}

	total += uint64(16 * rng.Intn(20))

	numProcs := 1 + rng.Intn(8)
	processSizes := make([]uint64, numProcs)

	for i := range processSizes {
		processSizes[i] = uint64(8 * (1 + rng.Intn(90)))
	}

	return manager.Config{
		TotalMemory:     total,
		BlockSizes:      blockSizes,
		ProcessSizes:    processSizes,
		Algorithm:       algorithms[rng.Intn(len(algorithms))],
		Lifetime:        sim.VTimeInSec(0.5 + rng.Float64()*1.5),
		ReclaimDelay:    sim.VTimeInSec(0.1 + rng.Float64()*0.4),
		StepFreq:        sim.Freq(1+rng.Intn(4)) * sim.Hz,
		ExpiryCheckFreq: sim.Freq(2+rng.Intn(6)) * sim.Hz,
	}
}

// haltDeadline bounds a run. Every process reaches a terminal state at most
// once per revival and revivals are bounded by the population, so a healthy
// run halts well inside this horizon.
func haltDeadline(cfg manager.Config) sim.VTimeInSec {
	n := sim.VTimeInSec(len(cfg.ProcessSizes))
	span := cfg.Lifetime + cfg.ReclaimDelay + 1

	return (n+2)*span*3 + 30
}

func (s *scenarioTest) run() {
	if err := s.manager.StartAutoRun(); err != nil {
		panic(err)
	}

	for {
		target := s.engine.CurrentTime() + 0.25
		if err := s.engine.RunUntil(target); err != nil {
			panic(err)
		}

		s.mustBeConsistent()
		s.disturb()

		if !s.manager.Snapshot().AutoRunning {
			break
		}

		if s.engine.CurrentTime() > s.deadline {
			panic("scenario did not halt")
		}
	}

	s.mustBeDone()
}

// disturb occasionally exercises the command surface mid-run.
func (s *scenarioTest) disturb() {
	switch s.rng.Intn(10) {
	case 0:
		s.manager.Compact()
		s.mustBeConsistent()
	case 1:
		s.deallocateRandomBlock()
	case 2:
		s.pauseAndCheckFrozen()
	}
}

func (s *scenarioTest) deallocateRandomBlock() {
	snapshot := s.manager.Snapshot()

	allocated := make([]int, 0, len(snapshot.Blocks))
	for i, b := range snapshot.Blocks {
		if b.State == "allocated" {
			allocated = append(allocated, i)
		}
	}

	if len(allocated) == 0 {
		return
	}

	index := allocated[s.rng.Intn(len(allocated))]
	s.manual[snapshot.Blocks[index].Owner] = true

	if err := s.manager.Deallocate(index); err != nil {
		panic(err)
	}
}

// pauseAndCheckFrozen pauses the run, lets virtual time pass, and checks
// that no allocated process lost lifetime.
func (s *scenarioTest) pauseAndCheckFrozen() {
	s.manager.Pause()
	before := s.remainingByPID()

	target := s.engine.CurrentTime() + 1.5
	if err := s.engine.RunUntil(target); err != nil {
		panic(err)
	}

	after := s.remainingByPID()
	for pid, remaining := range before {
		if after[pid] != remaining {
			panic(fmt.Sprintf(
				"remaining lifetime of P%d drifted while paused", pid))
		}
	}

	s.manager.Resume()
	s.deadline += 2
}

func (s *scenarioTest) remainingByPID() map[workload.PID]sim.VTimeInSec {
	remaining := make(map[workload.PID]sim.VTimeInSec)

	for _, p := range s.manager.Snapshot().Processes {
		if p.Status == "allocated" {
			remaining[p.ID] = p.Remaining
		}
	}

	return remaining
}

//nolint:gocyclo
func (s *scenarioTest) mustBeConsistent() {
	snapshot := s.manager.Snapshot()

	addr := uint64(0)
	for i, b := range snapshot.Blocks {
		if b.Addr != addr {
			panic(fmt.Sprintf("block %d starts at %d, want %d",
				i, b.Addr, addr))
		}

		if b.Size == 0 {
			panic(fmt.Sprintf("block %d has zero size", i))
		}

		if b.State == "free" && b.Owner != 0 {
			panic(fmt.Sprintf("free block %d keeps owner P%d", i, b.Owner))
		}

		addr += b.Size
	}

	if addr != s.cfg.TotalMemory {
		panic(fmt.Sprintf("blocks sum to %d KB, want %d KB",
			addr, s.cfg.TotalMemory))
	}

	stats := snapshot.Stats
	if stats.AllocatedKB+stats.ReclaimingKB+stats.FreeKB != stats.TotalKB {
		panic("block states do not partition the region")
	}

	population := stats.Waiting + stats.Allocated + stats.Failed +
		stats.Terminated + stats.Completed
	if population != len(s.cfg.ProcessSizes) {
		panic(fmt.Sprintf("process states count %d processes, want %d",
			population, len(s.cfg.ProcessSizes)))
	}

	if stats.Active != stats.Waiting+stats.Allocated+stats.Failed {
		panic("active count disagrees with the non-terminal states")
	}

	blocksOwned := make(map[workload.PID]int)
	for _, b := range snapshot.Blocks {
		if b.State == "allocated" {
			blocksOwned[b.Owner]++
		}
	}

	for _, p := range snapshot.Processes {
		if p.Status == "allocated" {
			if blocksOwned[p.ID] != 1 {
				panic(fmt.Sprintf("allocated P%d owns %d blocks",
					p.ID, blocksOwned[p.ID]))
			}

			if p.Remaining < 0 {
				panic(fmt.Sprintf("P%d has negative remaining lifetime", p.ID))
			}

			continue
		}

		if blocksOwned[p.ID] != 0 {
			panic(fmt.Sprintf("%s P%d still owns a block", p.Status, p.ID))
		}
	}
}

func (s *scenarioTest) mustBeDone() {
	snapshot := s.manager.Snapshot()

	if snapshot.AutoRunning {
		panic("run reported done while auto-running")
	}

	stats := snapshot.Stats
	if stats.Waiting != 0 || stats.Allocated != 0 {
		panic("run halted with live demand")
	}

	if stats.FreeKB != stats.TotalKB {
		panic("run halted with occupied memory")
	}

	if stats.Completed+stats.Terminated > 0 && len(snapshot.Blocks) != 1 {
		panic("free blocks left unmerged after the last reclaim")
	}

	for _, p := range snapshot.Processes {
		if s.manual[p.ID] {
			if p.Status != "terminated" {
				panic(fmt.Sprintf(
					"P%d was deallocated manually but ended %s",
					p.ID, p.Status))
			}

			continue
		}

		if p.Status != "completed" && p.Status != "failed" {
			panic(fmt.Sprintf("P%d ended %s", p.ID, p.Status))
		}
	}
}

package analysis

import (
	"math"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/mem/manager"
	"github.com/sarchlab/memsim/sim"
)

// activityNames lists the counted events in report order.
var activityNames = []string{
	"Allocations",
	"Failures",
	"Reclaims",
	"Frees",
	"Compactions",
}

// ActivityAnalyzer counts the allocation lifecycle events of a run, either
// over the whole run or per period.
type ActivityAnalyzer struct {
	PerfLogger
	sim.TimeTeller

	usePeriod bool
	period    sim.VTimeInSec
	source    sim.Named

	lastTime sim.VTimeInSec
	counts   map[string]int64
}

// Func counts the event behind the hook, if it is a lifecycle event.
func (a *ActivityAnalyzer) Func(ctx sim.HookCtx) {
	name := activityName(ctx.Pos)
	if name == "" {
		return
	}

	now := a.CurrentTime()

	if a.usePeriod {
		lastPeriodEndTime := a.periodEndTime(a.lastTime)
		if now > lastPeriodEndTime {
			a.summarize()
		}
	}

	if a.counts == nil {
		a.counts = make(map[string]int64)
	}

	a.counts[name]++
	a.lastTime = now
}

func activityName(pos *sim.HookPos) string {
	switch pos {
	case manager.HookPosAllocation:
		return "Allocations"
	case manager.HookPosAllocFailure:
		return "Failures"
	case manager.HookPosReclaimBegin:
		return "Reclaims"
	case manager.HookPosBlockFreed:
		return "Frees"
	case manager.HookPosCompaction:
		return "Compactions"
	}

	return ""
}

func (a *ActivityAnalyzer) summarize() {
	now := a.CurrentTime()

	startTime := sim.VTimeInSec(0)
	endTime := now

	if a.usePeriod {
		startTime = a.periodStartTime(a.lastTime)
		endTime = a.periodEndTime(a.lastTime)

		if endTime > now {
			endTime = now
		}
	}

	for _, name := range activityNames {
		count := a.counts[name]
		if count == 0 {
			continue
		}

		a.PerfLogger.AddDataEntry(PerfAnalyzerEntry{
			Start:     startTime,
			End:       endTime,
			Where:     a.source.Name(),
			What:      name,
			EntryType: "Activity",
			Value:     float64(count),
			Unit:      "Event",
		})
	}

	a.counts = make(map[string]int64)
}

func (a *ActivityAnalyzer) periodStartTime(t sim.VTimeInSec) sim.VTimeInSec {
	return sim.VTimeInSec(math.Floor(float64(t/a.period))) * a.period
}

func (a *ActivityAnalyzer) periodEndTime(t sim.VTimeInSec) sim.VTimeInSec {
	return a.periodStartTime(t) + a.period
}

// ActivityAnalyzerBuilder can build an ActivityAnalyzer.
type ActivityAnalyzerBuilder struct {
	perfLogger PerfLogger
	timeTeller sim.TimeTeller
	usePeriod  bool
	period     sim.VTimeInSec
	source     sim.Named
}

// MakeActivityAnalyzerBuilder creates an ActivityAnalyzerBuilder.
func MakeActivityAnalyzerBuilder() ActivityAnalyzerBuilder {
	return ActivityAnalyzerBuilder{}
}

// WithPerfLogger sets the logger to be used by the ActivityAnalyzer.
func (b ActivityAnalyzerBuilder) WithPerfLogger(
	l PerfLogger,
) ActivityAnalyzerBuilder {
	b.perfLogger = l
	return b
}

// WithTimeTeller sets the TimeTeller to be used by the ActivityAnalyzer.
func (b ActivityAnalyzerBuilder) WithTimeTeller(
	t sim.TimeTeller,
) ActivityAnalyzerBuilder {
	b.timeTeller = t
	return b
}

// WithPeriod sets the period to be used by the ActivityAnalyzer.
func (b ActivityAnalyzerBuilder) WithPeriod(
	p sim.VTimeInSec,
) ActivityAnalyzerBuilder {
	b.usePeriod = true
	b.period = p

	return b
}

// WithSource sets the component whose events are counted.
func (b ActivityAnalyzerBuilder) WithSource(
	source sim.Named,
) ActivityAnalyzerBuilder {
	b.source = source
	return b
}

// Build creates an ActivityAnalyzer.
func (b ActivityAnalyzerBuilder) Build() *ActivityAnalyzer {
	if b.perfLogger == nil {
		panic("ActivityAnalyzer requires a PerfLogger")
	}

	if b.timeTeller == nil {
		panic("ActivityAnalyzer requires a TimeTeller")
	}

	if b.source == nil {
		panic("ActivityAnalyzer requires a source")
	}

	a := &ActivityAnalyzer{
		PerfLogger: b.perfLogger,
		TimeTeller: b.timeTeller,
		usePeriod:  b.usePeriod,
		period:     b.period,
		source:     b.source,
	}

	atexit.Register(func() { a.summarize() })

	return a
}

package analysis

import (
	"math"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/sim"
)

// UsageAnalyzer records the average occupied memory of a region, either
// over the whole run or per period.
type UsageAnalyzer struct {
	PerfLogger
	sim.TimeTeller

	source    UsageSource
	usePeriod bool
	period    sim.VTimeInSec

	lastTime        sim.VTimeInSec
	lastLevel       uint64
	levelToDuration map[uint64]sim.VTimeInSec
}

// Func records the occupied level that the source attaches to its lifecycle
// hooks. Hooks fire while the source holds its lock, so the level must come
// from the context; calling UsedKB here would deadlock. Hooks without a
// level, such as tracing traffic, are ignored.
func (a *UsageAnalyzer) Func(ctx sim.HookCtx) {
	currLevel, ok := ctx.Detail.(uint64)
	if !ok {
		return
	}

	now := a.CurrentTime()

	if a.usePeriod {
		lastPeriodEndTime := a.periodEndTime(a.lastTime)

		if now > lastPeriodEndTime {
			a.summarize()
			a.resetPeriod()
		}
	}

	a.levelToDuration[a.lastLevel] += now - a.lastTime
	a.lastLevel = currLevel
	a.lastTime = now
}

func (a *UsageAnalyzer) summarize() {
	now := a.CurrentTime()

	if !a.usePeriod {
		a.summarizePeriod(now, 0, now)
		return
	}

	periodStartTime := a.periodStartTime(a.lastTime)
	periodEndTime := a.periodEndTime(a.lastTime)

	for periodEndTime < now {
		a.summarizePeriod(now, periodStartTime, periodEndTime)

		a.levelToDuration = make(map[uint64]sim.VTimeInSec)
		a.lastTime = periodEndTime
		periodStartTime = periodEndTime
		periodEndTime = periodStartTime + a.period
	}
}

func (a *UsageAnalyzer) summarizePeriod(
	now, periodStartTime, periodEndTime sim.VTimeInSec,
) {
	sumLevel := 0.0
	sumDuration := 0.0
	for level, duration := range a.levelToDuration {
		sumLevel += float64(level) * float64(duration)
		sumDuration += float64(duration)
	}

	summarizeEndTime := minTime(periodEndTime, now)
	if summarizeEndTime > a.lastTime {
		remainingTime := summarizeEndTime - a.lastTime
		sumLevel += float64(a.lastLevel) * float64(remainingTime)
		sumDuration += float64(remainingTime)
	}

	if sumDuration == 0 {
		return
	}

	avgLevel := sumLevel / sumDuration

	if avgLevel == 0 {
		return
	}

	a.PerfLogger.AddDataEntry(PerfAnalyzerEntry{
		Start:     periodStartTime,
		End:       periodEndTime,
		Where:     a.source.Name(),
		What:      "Level",
		EntryType: "Usage",
		Value:     avgLevel,
		Unit:      "KB",
	})
}

func (a *UsageAnalyzer) resetPeriod() {
	now := a.CurrentTime()

	a.levelToDuration = make(map[uint64]sim.VTimeInSec)

	a.lastTime = a.periodStartTime(now)
}

func (a *UsageAnalyzer) periodStartTime(t sim.VTimeInSec) sim.VTimeInSec {
	return sim.VTimeInSec(math.Floor(float64(t/a.period))) * a.period
}

func (a *UsageAnalyzer) periodEndTime(t sim.VTimeInSec) sim.VTimeInSec {
	return a.periodStartTime(t) + a.period
}

func minTime(a, b sim.VTimeInSec) sim.VTimeInSec {
	if a < b {
		return a
	}

	return b
}

// UsageAnalyzerBuilder can build a UsageAnalyzer.
type UsageAnalyzerBuilder struct {
	perfLogger PerfLogger
	timeTeller sim.TimeTeller
	usePeriod  bool
	period     sim.VTimeInSec
	source     UsageSource
}

// MakeUsageAnalyzerBuilder creates a UsageAnalyzerBuilder.
func MakeUsageAnalyzerBuilder() UsageAnalyzerBuilder {
	return UsageAnalyzerBuilder{}
}

// WithPerfLogger sets the PerfLogger to use.
func (b UsageAnalyzerBuilder) WithPerfLogger(
	perfLogger PerfLogger,
) UsageAnalyzerBuilder {
	b.perfLogger = perfLogger
	return b
}

// WithTimeTeller sets the TimeTeller to use.
func (b UsageAnalyzerBuilder) WithTimeTeller(
	timeTeller sim.TimeTeller,
) UsageAnalyzerBuilder {
	b.timeTeller = timeTeller
	return b
}

// WithPeriod sets the period to use.
func (b UsageAnalyzerBuilder) WithPeriod(
	period sim.VTimeInSec,
) UsageAnalyzerBuilder {
	b.usePeriod = true
	b.period = period
	return b
}

// WithSource sets the usage source to observe.
func (b UsageAnalyzerBuilder) WithSource(
	source UsageSource,
) UsageAnalyzerBuilder {
	b.source = source
	return b
}

// Build creates a UsageAnalyzer.
func (b UsageAnalyzerBuilder) Build() *UsageAnalyzer {
	if b.perfLogger == nil {
		panic("perfLogger is not set")
	}

	if b.timeTeller == nil {
		panic("timeTeller is not set")
	}

	if b.source == nil {
		panic("source is not set")
	}

	analyzer := &UsageAnalyzer{
		PerfLogger:      b.perfLogger,
		TimeTeller:      b.timeTeller,
		source:          b.source,
		usePeriod:       b.usePeriod,
		period:          b.period,
		levelToDuration: make(map[uint64]sim.VTimeInSec),
	}

	atexit.Register(func() {
		analyzer.summarize()
	})

	return analyzer
}

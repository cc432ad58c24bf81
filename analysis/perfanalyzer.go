// Package analysis records performance metrics of an allocation run, such as
// the occupied memory over time and the rate of allocation events.
package analysis

import (
	"github.com/sarchlab/memsim/sim"
)

// PerfAnalyzerEntry is a single entry in the performance database.
type PerfAnalyzerEntry struct {
	Start     sim.VTimeInSec
	End       sim.VTimeInSec
	Where     string
	What      string
	EntryType string
	Value     float64
	Unit      string
}

// PerfLogger is the interface that provide the service that can record
// performance data entries.
type PerfLogger interface {
	AddDataEntry(entry PerfAnalyzerEntry)
}

// UsageSource is a domain whose occupied capacity can be sampled.
type UsageSource interface {
	sim.Named
	UsedKB() uint64
}

// HookableSource is a usage source that analyzers can attach to.
type HookableSource interface {
	UsageSource
	sim.Hookable
}

// PerfAnalyzer can report performance metrics during simulation.
type PerfAnalyzer struct {
	usePeriod bool
	period    sim.VTimeInSec
	engine    sim.Engine
	backend   PerfAnalyzerBackend
}

// RegisterEngine registers the engine that is used in the simulation.
func (p *PerfAnalyzer) RegisterEngine(e sim.Engine) {
	p.engine = e
}

// RegisterComponent attaches a usage analyzer and an activity analyzer to
// the component that drives an allocation run.
func (p *PerfAnalyzer) RegisterComponent(c HookableSource) {
	p.registerUsage(c)
	p.registerActivity(c)
}

func (p *PerfAnalyzer) registerUsage(c HookableSource) {
	builder := MakeUsageAnalyzerBuilder().
		WithTimeTeller(p.engine).
		WithPerfLogger(p).
		WithSource(c)

	if p.usePeriod {
		builder = builder.WithPeriod(p.period)
	}

	c.AcceptHook(builder.Build())
}

func (p *PerfAnalyzer) registerActivity(c HookableSource) {
	builder := MakeActivityAnalyzerBuilder().
		WithTimeTeller(p.engine).
		WithPerfLogger(p).
		WithSource(c)

	if p.usePeriod {
		builder = builder.WithPeriod(p.period)
	}

	c.AcceptHook(builder.Build())
}

// AddDataEntry adds a data entry to the backend database.
func (p *PerfAnalyzer) AddDataEntry(entry PerfAnalyzerEntry) {
	p.backend.AddDataEntry(entry)
}

// PerfAnalyzerBuilder is a builder that can build a PerfAnalyzer.
type PerfAnalyzerBuilder struct {
	usePeriod   bool
	period      sim.VTimeInSec
	backendType string
	dbFilename  string
}

// MakePerfAnalyzerBuilder creates a new PerfAnalyzerBuilder.
func MakePerfAnalyzerBuilder() PerfAnalyzerBuilder {
	return PerfAnalyzerBuilder{
		backendType: "csv",
		dbFilename:  "perf",
	}
}

// WithPeriod sets the period of the PerfAnalyzer.
func (b PerfAnalyzerBuilder) WithPeriod(
	period sim.VTimeInSec,
) PerfAnalyzerBuilder {
	b.usePeriod = true
	b.period = period
	return b
}

// WithSQLiteBackend sets the backend of the PerfAnalyzer to be a SQLite
// database.
func (b PerfAnalyzerBuilder) WithSQLiteBackend() PerfAnalyzerBuilder {
	b.backendType = "sqlite"
	return b
}

// WithDBFilename sets the filename of the database file.
func (b PerfAnalyzerBuilder) WithDBFilename(
	filename string,
) PerfAnalyzerBuilder {
	b.dbFilename = filename
	return b
}

// Build creates a PerfAnalyzer.
func (b PerfAnalyzerBuilder) Build() *PerfAnalyzer {
	var backend PerfAnalyzerBackend

	switch b.backendType {
	case "csv":
		backend = NewCSVPerfAnalyzerBackend(b.dbFilename)
	case "sqlite":
		backend = NewSQLitePerfAnalyzerBackend(b.dbFilename)
	default:
		panic("unknown backend type " + b.backendType)
	}

	return &PerfAnalyzer{
		usePeriod: b.usePeriod,
		period:    b.period,
		backend:   backend,
	}
}

// Package simulation assembles the services that an allocation run needs:
// the engine, the data recorder, the residency tracer, the performance
// analyzer, and the monitoring server.
package simulation

import (
	"github.com/sarchlab/memsim/analysis"
	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/manager"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/sim"
	"github.com/sarchlab/memsim/tracing"
)

// A Simulation provides the services required to run an allocation run.
type Simulation struct {
	id     string
	engine sim.Engine

	dataRecorder datarecording.DataRecorder
	visTracer    *tracing.DBTracer
	perfAnalyzer *analysis.PerfAnalyzer
	monitor      *monitoring.Monitor

	manager       *manager.Comp
	components    []sim.Component
	compNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// GetDataRecorder returns the data recorder used in the simulation. It is
// nil when recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetVisTracer returns the tracer that records residency tasks. It is nil
// when recording is disabled.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// GetPerfAnalyzer returns the performance analyzer. It is nil when
// performance analysis is disabled.
func (s *Simulation) GetPerfAnalyzer() *analysis.PerfAnalyzer {
	return s.perfAnalyzer
}

// GetMonitor returns the monitor used in the simulation. It is nil when
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetManager returns the registered manager.
func (s *Simulation) GetManager() *manager.Comp {
	return s.manager
}

// RegisterManager registers the component that drives the allocation run
// and attaches the enabled observers to it.
func (s *Simulation) RegisterManager(c *manager.Comp) {
	s.RegisterComponent(c)
	s.manager = c

	if s.monitor != nil {
		s.monitor.RegisterManager(c)
	}

	if s.perfAnalyzer != nil {
		s.perfAnalyzer.RegisterComponent(c)
	}

	if s.visTracer != nil {
		tracing.CollectTrace(c, s.visTracer)
	}
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c sim.Component) {
	compName := c.Name()
	if _, ok := s.compNameIndex[compName]; ok {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1
}

// GetComponentByName returns the component with the given name.
func (s *Simulation) GetComponentByName(name string) sim.Component {
	return s.components[s.compNameIndex[name]]
}

// Components returns all the registered components.
func (s *Simulation) Components() []sim.Component {
	return s.components
}

// Terminate writes out the pending records of the simulation.
func (s *Simulation) Terminate() {
	if s.visTracer != nil {
		s.visTracer.Terminate()
	}

	if s.dataRecorder != nil {
		s.dataRecorder.Flush()
	}
}

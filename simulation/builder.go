package simulation

import (
	"github.com/rs/xid"

	"github.com/sarchlab/memsim/analysis"
	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/sim"
	"github.com/sarchlab/memsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn      bool
	monitorPort    int
	recordingOn    bool
	outputFileName string
	perfOn         bool
	perfPeriod     sim.VTimeInSec
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn:   true,
		recordingOn: true,
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithoutRecording sets the simulation to not record residency traces.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithPerfAnalysis enables performance analysis. A positive period buckets
// the reports; zero reports whole-run figures.
func (b Builder) WithPerfAnalysis(period sim.VTimeInSec) Builder {
	b.perfOn = true
	b.perfPeriod = period
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		compNameIndex: make(map[string]int),
	}

	s.id = xid.New().String()
	s.engine = sim.NewSerialEngine()

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "memsim_" + s.id
	}

	if b.recordingOn {
		s.dataRecorder = datarecording.New(outputPath)
		s.visTracer = tracing.NewDBTracer(s.engine, s.dataRecorder)
	}

	if b.perfOn {
		perfBuilder := analysis.MakePerfAnalyzerBuilder().
			WithDBFilename(outputPath + "_perf")
		if b.perfPeriod > 0 {
			perfBuilder = perfBuilder.WithPeriod(b.perfPeriod)
		}

		s.perfAnalyzer = perfBuilder.Build()
		s.perfAnalyzer.RegisterEngine(s.engine)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		s.monitor.RegisterEngine(s.engine)
		s.monitor.StartServer()
	}

	return s
}

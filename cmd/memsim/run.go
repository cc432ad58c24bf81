package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/mem/fit"
	"github.com/sarchlab/memsim/mem/manager"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/sim"
	"github.com/sarchlab/memsim/simulation"
	"github.com/sarchlab/memsim/tracing"
)

var runFlags struct {
	total        uint64
	blocks       string
	procs        string
	algorithm    string
	lifetime     float64
	reclaimDelay float64
	stepFreq     float64
	expiryFreq   float64
	duration     float64
	speed        float64
	monitor      bool
	monitorPort  int
	openBrowser  bool
	record       bool
	output       string
	perf         bool
	perfPeriod   float64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an allocation scenario",
	Run: func(_ *cobra.Command, _ []string) {
		runScenario()
	},
}

//nolint:funlen
func init() {
	_ = godotenv.Load()

	f := runCmd.Flags()
	f.Uint64Var(&runFlags.total, "total",
		envUint("MEMSIM_TOTAL", 1700),
		"total memory in KB")
	f.StringVar(&runFlags.blocks, "blocks",
		envString("MEMSIM_BLOCKS", "100,500,200,300,600"),
		"comma-separated block sizes in KB")
	f.StringVar(&runFlags.procs, "procs",
		envString("MEMSIM_PROCS", "212,417,112,426"),
		"comma-separated process sizes in KB")
	f.StringVar(&runFlags.algorithm, "algorithm",
		envString("MEMSIM_ALGORITHM", "first-fit"),
		"placement algorithm: first-fit, best-fit, or worst-fit")
	f.Float64Var(&runFlags.lifetime, "lifetime",
		envFloat("MEMSIM_LIFETIME", 5),
		"virtual seconds an allocation lives")
	f.Float64Var(&runFlags.reclaimDelay, "reclaim-delay",
		envFloat("MEMSIM_RECLAIM_DELAY", 0.3),
		"virtual seconds between release and the block becoming free")
	f.Float64Var(&runFlags.stepFreq, "step-freq",
		envFloat("MEMSIM_STEP_FREQ", 1),
		"allocation attempts per virtual second")
	f.Float64Var(&runFlags.expiryFreq, "expiry-freq",
		envFloat("MEMSIM_EXPIRY_FREQ", 2),
		"expiry scans per virtual second")
	f.Float64Var(&runFlags.duration, "duration",
		envFloat("MEMSIM_DURATION", 0),
		"virtual seconds to simulate; 0 runs until the scenario halts")
	f.Float64Var(&runFlags.speed, "speed",
		envFloat("MEMSIM_SPEED", 1),
		"virtual seconds per wall second; 0 fast-forwards")
	f.BoolVar(&runFlags.monitor, "monitor",
		envBool("MEMSIM_MONITOR", false),
		"serve the monitoring page")
	f.IntVar(&runFlags.monitorPort, "monitor-port",
		envInt("MEMSIM_MONITOR_PORT", 0),
		"port for the monitoring server; 0 picks a random port")
	f.BoolVar(&runFlags.openBrowser, "open-browser",
		envBool("MEMSIM_OPEN_BROWSER", false),
		"open the monitoring page in a browser")
	f.BoolVar(&runFlags.record, "record",
		envBool("MEMSIM_RECORD", false),
		"record residency traces to SQLite")
	f.StringVar(&runFlags.output, "output",
		envString("MEMSIM_OUTPUT", ""),
		"output file name, without extension")
	f.BoolVar(&runFlags.perf, "perf",
		envBool("MEMSIM_PERF", false),
		"report memory usage and event counts")
	f.Float64Var(&runFlags.perfPeriod, "perf-period",
		envFloat("MEMSIM_PERF_PERIOD", 1),
		"performance report period in virtual seconds")

	rootCmd.AddCommand(runCmd)
}

func runScenario() {
	cfg := scenarioConfig()

	s := buildSimulation()
	engine := s.GetEngine()

	if verbose {
		engine.AcceptHook(sim.NewEventLogger(log.New(os.Stdout, "", 0)))
	}

	mgr := manager.MakeBuilder().
		WithEngine(engine).
		Build("Manager")
	s.RegisterManager(mgr)
	tracers := attachTracers(engine, mgr)

	if err := mgr.Configure(cfg); err != nil {
		log.Fatal(err)
	}

	if runFlags.openBrowser && s.GetMonitor() != nil {
		url := fmt.Sprintf("http://localhost:%d", s.GetMonitor().Port())
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "cannot open browser: %s\n", err)
		}
	}

	if err := mgr.StartAutoRun(); err != nil {
		log.Fatal(err)
	}

	wallStart := time.Now()
	drive(s, mgr)

	tracers.busy.TerminateAllTasks(engine.CurrentTime())
	report(mgr, tracers, time.Since(wallStart))

	s.Terminate()
	atexit.Exit(0)
}

type runTracers struct {
	avg   *tracing.AverageTimeTracer
	total *tracing.TotalTimeTracer
	busy  *tracing.BusyTimeTracer
	steps *tracing.StepCountTracer
}

// attachTracers observes the residency tasks of the run for the final
// report.
func attachTracers(engine sim.Engine, mgr *manager.Comp) runTracers {
	residency := func(task tracing.Task) bool {
		return task.Kind == "residency"
	}

	t := runTracers{
		avg:   tracing.NewAverageTimeTracer(engine, residency),
		total: tracing.NewTotalTimeTracer(engine, residency),
		busy:  tracing.NewBusyTimeTracer(engine, residency),
		steps: tracing.NewStepCountTracer(residency),
	}

	tracing.CollectTrace(mgr, t.avg)
	tracing.CollectTrace(mgr, t.total)
	tracing.CollectTrace(mgr, t.busy)
	tracing.CollectTrace(mgr, t.steps)

	return t
}

func scenarioConfig() manager.Config {
	algorithm, err := fit.ParseAlgorithm(runFlags.algorithm)
	if err != nil {
		log.Fatal(err)
	}

	return manager.Config{
		TotalMemory:     runFlags.total,
		BlockSizes:      parseSizeList("blocks", runFlags.blocks),
		ProcessSizes:    parseSizeList("procs", runFlags.procs),
		Algorithm:       algorithm,
		Lifetime:        sim.VTimeInSec(runFlags.lifetime),
		ReclaimDelay:    sim.VTimeInSec(runFlags.reclaimDelay),
		StepFreq:        sim.Freq(runFlags.stepFreq),
		ExpiryCheckFreq: sim.Freq(runFlags.expiryFreq),
	}
}

func buildSimulation() *simulation.Simulation {
	builder := simulation.MakeBuilder()

	if !runFlags.monitor {
		builder = builder.WithoutMonitoring()
	}

	if runFlags.monitorPort > 0 {
		builder = builder.WithMonitorPort(runFlags.monitorPort)
	}

	if !runFlags.record {
		builder = builder.WithoutRecording()
	}

	if runFlags.output != "" {
		builder = builder.WithOutputFileName(runFlags.output)
	}

	if runFlags.perf {
		builder = builder.WithPerfAnalysis(
			sim.VTimeInSec(runFlags.perfPeriod))
	}

	return builder.Build()
}

// drive advances the virtual clock, paced against the wall clock when a
// speed is set, as fast as possible otherwise.
func drive(s *simulation.Simulation, mgr *manager.Comp) {
	engine := s.GetEngine()

	speed := runFlags.speed
	if runFlags.monitor && speed == 0 {
		// The monitoring page needs a live clock to command against.
		speed = 1
	}

	if speed > 0 {
		pace(s, mgr, speed)
		return
	}

	if runFlags.duration > 0 {
		if err := engine.RunUntil(sim.VTimeInSec(runFlags.duration)); err != nil {
			log.Fatal(err)
		}

		return
	}

	for mgr.Snapshot().AutoRunning {
		if err := engine.RunUntil(engine.CurrentTime() + 1); err != nil {
			log.Fatal(err)
		}
	}
}

func pace(s *simulation.Simulation, mgr *manager.Comp, speed float64) {
	engine := s.GetEngine()

	var bar *monitoring.ProgressBar
	if s.GetMonitor() != nil && runFlags.duration > 0 {
		bar = s.GetMonitor().CreateProgressBar(
			"Virtual time (ms)", uint64(runFlags.duration*1000))
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		target := engine.CurrentTime() + sim.VTimeInSec(0.1*speed)
		if err := engine.RunUntil(target); err != nil {
			log.Fatal(err)
		}

		if bar != nil {
			bar.IncrementFinished(uint64(100 * speed))
		}

		if driveDone(engine, mgr) {
			if bar != nil {
				s.GetMonitor().CompleteProgressBar(bar)
			}

			return
		}
	}
}

func driveDone(engine sim.Engine, mgr *manager.Comp) bool {
	if runFlags.duration > 0 {
		return engine.CurrentTime() >= sim.VTimeInSec(runFlags.duration)
	}

	if runFlags.monitor {
		// Interactive session: keep the clock alive until interrupted.
		return false
	}

	return !mgr.Snapshot().AutoRunning
}

func report(mgr *manager.Comp, tracers runTracers, wall time.Duration) {
	snapshot := mgr.Snapshot()
	stats := snapshot.Stats

	fmt.Printf("\nRun finished at t=%.2fs (wall %.2fs, %s)\n",
		float64(snapshot.Now), wall.Seconds(), snapshot.Algorithm)
	fmt.Printf("Processes: %d completed, %d failed, %d terminated\n",
		stats.Completed, stats.Failed, stats.Terminated)
	fmt.Printf("Memory:    %d KB allocated, %d KB free "+
		"(largest %d KB, fragmented %d KB)\n",
		stats.AllocatedKB, stats.FreeKB,
		stats.LargestFreeKB, stats.ExternalFragmentationKB)

	if count := tracers.avg.TotalCount(); count > 0 {
		fmt.Printf("Residency: %d stays, %.2fs mean, %.2fs held in total, "+
			"memory busy %.2fs\n",
			count, float64(tracers.avg.AverageTime()),
			float64(tracers.total.TotalTime()),
			float64(tracers.busy.BusyTime()))
	}

	if retries := tracers.steps.StepCount("retry"); retries > 0 {
		fmt.Printf("Retries:   %d across %d processes\n",
			retries, tracers.steps.TaskCount("retry"))
	}

	fmt.Println("Layout:")
	for _, b := range snapshot.Blocks {
		owner := ""
		if b.Owner != 0 {
			owner = fmt.Sprintf(" P%d", b.Owner)
		}

		fmt.Printf("  %6d +%6d  %s%s\n", b.Addr, b.Size, b.State, owner)
	}
}

func envString(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}

	return fallback
}

func envUint(name string, fallback uint64) uint64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}

	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		log.Fatalf("cannot parse %s=%q: %s", name, v, err)
	}

	return n
}

func envInt(name string, fallback int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("cannot parse %s=%q: %s", name, v, err)
	}

	return n
}

func envFloat(name string, fallback float64) float64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("cannot parse %s=%q: %s", name, v, err)
	}

	return n
}

func envBool(name string, fallback bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("cannot parse %s=%q: %s", name, v, err)
	}

	return b
}

// parseSizeList parses a comma-separated KB list. Unparsable entries are
// rejected rather than dropped.
func parseSizeList(flagName, list string) []uint64 {
	parts := strings.Split(list, ",")
	sizes := make([]uint64, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			log.Fatalf("cannot parse --%s entry %q: %s", flagName, part, err)
		}

		sizes = append(sizes, n)
	}

	return sizes
}

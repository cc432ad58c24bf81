package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/memsim/mem/fit"
	"github.com/sarchlab/memsim/mem/manager"
	"github.com/sarchlab/memsim/mem/workload"
	"github.com/sarchlab/memsim/monitoring/web"
	"github.com/sarchlab/memsim/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the allocation run.
type Monitor struct {
	engine     sim.Engine
	manager    *manager.Comp
	components []sim.Component
	portNumber int
	actualPort int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterManager registers the component that the command API drives.
func (m *Monitor) RegisterManager(c *manager.Comp) {
	m.manager = c
	m.RegisterComponent(c)
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c sim.Component) {
	m.components = append(m.components, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:    sim.GetIDGenerator().Generate(),
		Name:  name,
		Total: total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars)-1)
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Port returns the port the server listens on. It is zero before
// StartServer is called.
func (m *Monitor) Port() int {
	return m.actualPort
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/reset", m.reset)
	r.HandleFunc("/api/step", m.step)
	r.HandleFunc("/api/run/start", m.startRun)
	r.HandleFunc("/api/run/stop", m.stopRun)
	r.HandleFunc("/api/run/end", m.endRun)
	r.HandleFunc("/api/pause", m.pauseRun)
	r.HandleFunc("/api/resume", m.resumeRun)
	r.HandleFunc("/api/compact", m.compact)
	r.HandleFunc("/api/deallocate/{index}", m.deallocate)
	r.HandleFunc("/api/config/edited", m.markConfigEdited)
	r.HandleFunc("/api/config/ack", m.acknowledgeConfig)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.actualPort = listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(
		os.Stderr,
		"Monitoring simulation with http://localhost:%d\n",
		m.actualPort)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

type resetReq struct {
	TotalMemory     uint64   `json:"total_memory,omitempty"`
	BlockSizes      []uint64 `json:"block_sizes,omitempty"`
	ProcessSizes    []uint64 `json:"process_sizes,omitempty"`
	Algorithm       string   `json:"algorithm,omitempty"`
	Lifetime        float64  `json:"lifetime,omitempty"`
	ReclaimDelay    float64  `json:"reclaim_delay,omitempty"`
	StepFreq        float64  `json:"step_freq,omitempty"`
	ExpiryCheckFreq float64  `json:"expiry_check_freq,omitempty"`
}

// apply overrides the fields of cfg that the request carries. A zero value
// is never a valid configuration field, so zero means not carried.
func (req resetReq) apply(cfg manager.Config) (manager.Config, error) {
	if req.TotalMemory != 0 {
		cfg.TotalMemory = req.TotalMemory
	}

	if req.BlockSizes != nil {
		cfg.BlockSizes = req.BlockSizes
	}

	if req.ProcessSizes != nil {
		cfg.ProcessSizes = req.ProcessSizes
	}

	if req.Algorithm != "" {
		algorithm, err := fit.ParseAlgorithm(req.Algorithm)
		if err != nil {
			return cfg, err
		}

		cfg.Algorithm = algorithm
	}

	if req.Lifetime != 0 {
		cfg.Lifetime = sim.VTimeInSec(req.Lifetime)
	}

	if req.ReclaimDelay != 0 {
		cfg.ReclaimDelay = sim.VTimeInSec(req.ReclaimDelay)
	}

	if req.StepFreq != 0 {
		cfg.StepFreq = sim.Freq(req.StepFreq)
	}

	if req.ExpiryCheckFreq != 0 {
		cfg.ExpiryCheckFreq = sim.Freq(req.ExpiryCheckFreq)
	}

	return cfg, nil
}

func (m *Monitor) reset(w http.ResponseWriter, r *http.Request) {
	req := resetReq{}

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	cfg, err := req.apply(m.manager.Config())
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	err = m.manager.Configure(cfg)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	m.state(w, r)
}

type stepRsp struct {
	Outcome    string       `json:"outcome"`
	Process    workload.PID `json:"process,omitempty"`
	BlockIndex int          `json:"block_index"`
	MemoryLeft bool         `json:"memory_left"`
	Idle       string       `json:"idle,omitempty"`
	Warn       bool         `json:"warn,omitempty"`
}

func (m *Monitor) step(w http.ResponseWriter, _ *http.Request) {
	result := m.manager.Step()

	rsp := stepRsp{
		Outcome:    result.Outcome.String(),
		Process:    result.Process,
		BlockIndex: result.BlockIndex,
		MemoryLeft: result.MemoryLeft,
		Warn:       result.Warn,
	}
	if result.Outcome == manager.StepIdle {
		rsp.Idle = result.Idle.String()
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) startRun(w http.ResponseWriter, _ *http.Request) {
	err := m.manager.StartAutoRun()
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	_, err = w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) stopRun(w http.ResponseWriter, _ *http.Request) {
	m.manager.StopAutoRun()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) endRun(w http.ResponseWriter, _ *http.Request) {
	m.manager.EndRun()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) pauseRun(w http.ResponseWriter, _ *http.Request) {
	m.manager.Pause()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) resumeRun(w http.ResponseWriter, _ *http.Request) {
	m.manager.Resume()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) compact(w http.ResponseWriter, _ *http.Request) {
	m.manager.Compact()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) deallocate(w http.ResponseWriter, r *http.Request) {
	indexStr := mux.Vars(r)["index"]

	index, err := strconv.Atoi(indexStr)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	err = m.manager.Deallocate(index)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	_, err = w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) markConfigEdited(w http.ResponseWriter, _ *http.Request) {
	m.manager.MarkConfigEdited()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) acknowledgeConfig(w http.ResponseWriter, _ *http.Request) {
	m.manager.AcknowledgeConfig()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	bytes, err := json.Marshal(m.manager.Snapshot())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, c := range m.components {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "\"%s\"", c.Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		dieOnErr(err)
	}

	name := req.CompName
	fields := strings.Split(req.FieldName, ".")

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type fieldFormatError struct {
}

func (e fieldFormatError) Error() string {
	return "fieldFormatError"
}

func (m *Monitor) walkFields(
	comp interface{},
	fields string,
) (reflect.Value, error) {
	elem := reflect.ValueOf(comp)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil {
				return elem, fieldFormatError{}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			panic(fmt.Sprintf("kind %d not supported", elem.Kind()))
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Component {
	var component sim.Component
	for _, c := range m.components {
		if c.Name() == name {
			component = c
		}
	}

	if component == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Component not found"))
		dieOnErr(err)
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	bytes, err := json.Marshal(m.progressBars)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func httpError(w http.ResponseWriter, code int, err error) {
	w.WriteHeader(code)
	fmt.Fprintf(w, "{\"error\":%q}", err.Error())
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

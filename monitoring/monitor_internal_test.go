package monitoring

import (
	"encoding/json"
	"net/http/httptest"
	"reflect"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sarchlab/memsim/mem/manager"
	"github.com/sarchlab/memsim/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type sampleStruct struct {
	field1 int
	field2 string
	field3 *sampleStruct
	field4 []sampleStruct
}

type sampleComponent struct {
	*sim.ComponentBase
}

func (c *sampleComponent) Handle(_ sim.Event) error {
	return nil
}

func newSampleComponent() *sampleComponent {
	return &sampleComponent{
		ComponentBase: sim.NewComponentBase("Comp"),
	}
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
	)

	BeforeEach(func() {
		m = &Monitor{}
	})

	It("should register components", func() {
		c := newSampleComponent()
		m.RegisterComponent(c)

		Expect(m.components).To(HaveLen(1))
	})

	It("should walk int fields", func() {
		s := &sampleStruct{
			field1: 1,
		}

		elem, err := m.walkFields(s, "field1")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Int))
		Expect(elem.Type().Name()).To(Equal("int"))
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should walk string fields", func() {
		s := &sampleStruct{
			field2: "abc",
		}

		elem, err := m.walkFields(s, "field2")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.String))
		Expect(elem.Type().Name()).To(Equal("string"))
		Expect(elem.String()).To(Equal("abc"))
	})

	It("should walk struct", func() {
		s := &sampleStruct{
			field3: &sampleStruct{},
		}

		elem, err := m.walkFields(s, "field3")

		Expect(err).To(BeNil())

		Expect(elem.Kind()).To(Equal(reflect.Struct))
		Expect(elem.Type().Name()).To(Equal("sampleStruct"))
	})

	It("should walk recursively", func() {
		s := &sampleStruct{
			field3: &sampleStruct{
				field1: 1,
			},
		}

		elem, err := m.walkFields(s, "field3.field1")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Int))
		Expect(elem.Type().Name()).To(Equal("int"))
		Expect(elem.Int()).To(Equal(int64(1)))
	})

	It("should walk slice", func() {
		s := &sampleStruct{
			field4: []sampleStruct{{}, {}},
		}

		elem, err := m.walkFields(s, "field4")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Slice))
	})

	It("should walk slice recursively", func() {
		s := &sampleStruct{
			field4: []sampleStruct{{
				field4: []sampleStruct{
					{field1: 1},
				},
			}, {}},
		}

		elem, err := m.walkFields(s, "field4.0.field4.0.field1")

		Expect(err).To(BeNil())
		Expect(elem.Kind()).To(Equal(reflect.Int))
		Expect(elem.Type().Name()).To(Equal("int"))
		Expect(elem.Int()).To(Equal(int64(1)))
	})
})

var _ = Describe("Monitor API", func() {
	var (
		m      *Monitor
		engine *sim.SerialEngine
		mgr    *manager.Comp
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		mgr = manager.MakeBuilder().
			WithEngine(engine).
			Build("Manager")

		m = &Monitor{}
		m.RegisterEngine(engine)
		m.RegisterManager(mgr)
	})

	It("should report the current time", func() {
		rec := httptest.NewRecorder()

		m.now(rec, nil)

		Expect(rec.Body.String()).To(Equal("{\"now\":0.0000000000}"))
	})

	It("should step and report the outcome", func() {
		rec := httptest.NewRecorder()

		m.step(rec, nil)

		rsp := map[string]interface{}{}
		err := json.Unmarshal(rec.Body.Bytes(), &rsp)
		Expect(err).To(BeNil())
		Expect(rsp["outcome"]).To(Equal("allocated"))
		Expect(rsp["process"]).To(Equal(float64(1)))
		Expect(rsp["block_index"]).To(Equal(float64(1)))
	})

	It("should reset with a new scenario", func() {
		body := `{
			"total_memory": 90,
			"block_sizes": [30, 10, 50],
			"process_sizes": [20, 60],
			"algorithm": "best-fit",
			"lifetime": 1,
			"reclaim_delay": 0.3
		}`
		req := httptest.NewRequest(
			"POST", "/api/reset", strings.NewReader(body))
		rec := httptest.NewRecorder()

		m.reset(rec, req)

		Expect(rec.Code).To(Equal(200))
		Expect(mgr.Config().TotalMemory).To(Equal(uint64(90)))

		snapshot := manager.Snapshot{}
		err := json.Unmarshal(rec.Body.Bytes(), &snapshot)
		Expect(err).To(BeNil())
		Expect(snapshot.Algorithm).To(Equal("best-fit"))
		Expect(snapshot.Blocks).To(HaveLen(3))
		Expect(snapshot.Processes).To(HaveLen(2))
	})

	It("should refuse a scenario with an unknown algorithm", func() {
		body := `{"algorithm": "middle-fit"}`
		req := httptest.NewRequest(
			"POST", "/api/reset", strings.NewReader(body))
		rec := httptest.NewRecorder()

		m.reset(rec, req)

		Expect(rec.Code).To(Equal(400))
		Expect(rec.Body.String()).To(ContainSubstring("error"))
	})

	It("should refuse a scenario that oversubscribes the memory", func() {
		body := `{"total_memory": 10, "block_sizes": [30, 10, 50]}`
		req := httptest.NewRequest(
			"POST", "/api/reset", strings.NewReader(body))
		rec := httptest.NewRecorder()

		m.reset(rec, req)

		Expect(rec.Code).To(Equal(400))
		Expect(rec.Body.String()).To(ContainSubstring("error"))
	})

	It("should deallocate an allocated block", func() {
		mgr.Step()

		req := httptest.NewRequest("POST", "/api/deallocate/1", nil)
		req = mux.SetURLVars(req, map[string]string{"index": "1"})
		rec := httptest.NewRecorder()

		m.deallocate(rec, req)

		Expect(rec.Code).To(Equal(200))
		Expect(mgr.Snapshot().Blocks[1].State).To(Equal("reclaiming"))
	})

	It("should refuse to deallocate a free block", func() {
		req := httptest.NewRequest("POST", "/api/deallocate/0", nil)
		req = mux.SetURLVars(req, map[string]string{"index": "0"})
		rec := httptest.NewRecorder()

		m.deallocate(rec, req)

		Expect(rec.Code).To(Equal(400))
		Expect(rec.Body.String()).To(ContainSubstring("error"))
	})

	It("should refuse to start an auto run on a stale configuration", func() {
		mgr.MarkConfigEdited()

		rec := httptest.NewRecorder()

		m.startRun(rec, nil)

		Expect(rec.Code).To(Equal(400))
		Expect(rec.Body.String()).To(ContainSubstring("error"))
	})

	It("should report the state of the run", func() {
		mgr.Step()

		rec := httptest.NewRecorder()

		m.state(rec, nil)

		snapshot := manager.Snapshot{}
		err := json.Unmarshal(rec.Body.Bytes(), &snapshot)
		Expect(err).To(BeNil())
		Expect(snapshot.Stats.Allocated).To(Equal(1))
	})
})

package analysis

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/memsim/mem/manager"
	"github.com/sarchlab/memsim/sim"
)

var _ = Describe("UsageAnalyzer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		logger     *MockPerfLogger
		source     *MockHookableSource
		analyzer   *UsageAnalyzer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		logger = NewMockPerfLogger(mockCtrl)
		source = NewMockHookableSource(mockCtrl)
		source.EXPECT().Name().Return("Manager").AnyTimes()

		analyzer = MakeUsageAnalyzerBuilder().
			WithPerfLogger(logger).
			WithTimeTeller(timeTeller).
			WithPeriod(1).
			WithSource(source).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should calculate the average occupied memory", func() {
		timeTeller.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(0.1))

		analyzer.Func(sim.HookCtx{
			Domain: source,
			Item:   nil,
			Pos:    manager.HookPosAllocation,
			Detail: uint64(100),
		})

		timeTeller.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(1.1)).
			AnyTimes()
		logger.EXPECT().AddDataEntry(PerfAnalyzerEntry{
			Start:     0.0,
			End:       1.0,
			Where:     "Manager",
			What:      "Level",
			EntryType: "Usage",
			Value:     90,
			Unit:      "KB",
		})

		analyzer.Func(sim.HookCtx{
			Domain: source,
			Item:   nil,
			Pos:    manager.HookPosAllocation,
			Detail: uint64(200),
		})
	})

	It("should report multiple periods together", func() {
		timeTeller.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(0.1))

		analyzer.Func(sim.HookCtx{
			Domain: source,
			Item:   nil,
			Pos:    manager.HookPosAllocation,
			Detail: uint64(100),
		})

		timeTeller.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(2.1)).
			AnyTimes()
		logger.EXPECT().AddDataEntry(PerfAnalyzerEntry{
			Start:     0.0,
			End:       1.0,
			Where:     "Manager",
			What:      "Level",
			EntryType: "Usage",
			Value:     90,
			Unit:      "KB",
		})

		logger.EXPECT().AddDataEntry(PerfAnalyzerEntry{
			Start:     1.0,
			End:       2.0,
			Where:     "Manager",
			What:      "Level",
			EntryType: "Usage",
			Value:     100,
			Unit:      "KB",
		})

		analyzer.Func(sim.HookCtx{
			Domain: source,
			Item:   nil,
			Pos:    manager.HookPosBlockFreed,
			Detail: uint64(200),
		})
	})

	It("should ignore hooks that carry no level", func() {
		analyzer.Func(sim.HookCtx{
			Domain: source,
			Item:   nil,
			Pos:    sim.HookPosBeforeEvent,
		})
	})

	It("should not report anything when nothing was recorded", func() {
		bare := MakeUsageAnalyzerBuilder().
			WithPerfLogger(logger).
			WithTimeTeller(timeTeller).
			WithSource(source).
			Build()

		timeTeller.EXPECT().
			CurrentTime().
			Return(sim.VTimeInSec(0)).
			AnyTimes()

		bare.summarize()
	})
})

var _ = Describe("UsageAnalyzer on a live component", func() {
	var (
		mockCtrl *gomock.Controller
		logger   *MockPerfLogger
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		logger = NewMockPerfLogger(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should observe a step without stalling the component", func() {
		engine := sim.NewSerialEngine()
		mgr := manager.MakeBuilder().
			WithEngine(engine).
			Build("Manager")

		analyzer := MakeUsageAnalyzerBuilder().
			WithPerfLogger(logger).
			WithTimeTeller(engine).
			WithPeriod(1).
			WithSource(mgr).
			Build()
		mgr.AcceptHook(analyzer)

		done := make(chan manager.StepResult, 1)
		go func() {
			done <- mgr.Step()
		}()

		var result manager.StepResult
		Eventually(done).WithTimeout(2 * time.Second).Should(Receive(&result))
		Expect(result.Outcome).To(Equal(manager.StepAllocated))
		Expect(analyzer.lastLevel).To(Equal(mgr.UsedKB()))
	})
})

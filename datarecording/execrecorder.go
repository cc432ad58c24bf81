package datarecording

import (
	"os"
	"strings"
	"time"
)

const execTimeFormat = "2006-01-02 15:04:05.000000000"

type execInfo struct {
	Property string
	Value    string
}

// An execRecorder stores the command line and the wall-clock span of the
// recording run next to the recorded data.
type execRecorder struct {
	tableName string
	recorder  DataRecorder
}

// newExecRecorder creates the exec_info table and records the start of the
// run right away. The rows stay buffered until the recorder flushes.
func newExecRecorder(recorder DataRecorder) *execRecorder {
	e := &execRecorder{
		tableName: "exec_info",
		recorder:  recorder,
	}

	e.recorder.CreateTable(e.tableName, execInfo{})
	e.start()

	return e
}

func (e *execRecorder) start() {
	e.record("Start Time", time.Now().Format(execTimeFormat))
	e.record("Command", strings.Join(os.Args, " "))

	wd, err := os.Getwd()
	if err == nil {
		e.record("Working Directory", wd)
	}
}

// End records the end of the run and flushes.
func (e *execRecorder) End() {
	e.record("End Time", time.Now().Format(execTimeFormat))
	e.recorder.Flush()
}

func (e *execRecorder) record(property, value string) {
	e.recorder.InsertData(e.tableName, execInfo{property, value})
}

package analysis

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/memsim/datarecording"
)

// PerfAnalyzerBackend is the service that stores performance data entries.
type PerfAnalyzerBackend interface {
	AddDataEntry(entry PerfAnalyzerEntry)
	Flush()
}

// CSVBackend is a PerfAnalyzerBackend that writes data entries to a CSV
// file.
type CSVBackend struct {
	dbFile    *os.File
	csvWriter *csv.Writer
}

// NewCSVPerfAnalyzerBackend creates a backend that writes to
// dbFilename.csv.
func NewCSVPerfAnalyzerBackend(dbFilename string) *CSVBackend {
	p := &CSVBackend{}

	var err error
	p.dbFile, err = os.Create(dbFilename + ".csv")
	if err != nil {
		panic(err)
	}

	p.csvWriter = csv.NewWriter(p.dbFile)

	header := []string{
		"Start", "End", "Where", "What", "EntryType", "Value", "Unit",
	}
	if err := p.csvWriter.Write(header); err != nil {
		panic(err)
	}

	atexit.Register(p.Flush)

	return p
}

// AddDataEntry adds a data entry to the CSV file.
func (p *CSVBackend) AddDataEntry(entry PerfAnalyzerEntry) {
	err := p.csvWriter.Write([]string{
		fmt.Sprintf("%.10f", entry.Start),
		fmt.Sprintf("%.10f", entry.End),
		entry.Where,
		entry.What,
		entry.EntryType,
		fmt.Sprintf("%.10f", entry.Value),
		entry.Unit,
	})
	if err != nil {
		panic(err)
	}
}

// Flush flushes the CSV writer.
func (p *CSVBackend) Flush() {
	p.csvWriter.Flush()
}

// SQLiteBackend is a PerfAnalyzerBackend that writes data entries to the
// perf table of a SQLite database.
type SQLiteBackend struct {
	recorder datarecording.DataRecorder
}

// NewSQLitePerfAnalyzerBackend creates a backend that writes to
// dbFilename.sqlite3.
func NewSQLitePerfAnalyzerBackend(dbFilename string) *SQLiteBackend {
	recorder := datarecording.New(dbFilename)
	recorder.CreateTable("perf", PerfAnalyzerEntry{})

	return &SQLiteBackend{recorder: recorder}
}

// AddDataEntry buffers a data entry for the next flush.
func (p *SQLiteBackend) AddDataEntry(entry PerfAnalyzerEntry) {
	p.recorder.InsertData("perf", entry)
}

// Flush writes the buffered entries to the database.
func (p *SQLiteBackend) Flush() {
	p.recorder.Flush()
}

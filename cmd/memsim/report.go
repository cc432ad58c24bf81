package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/datarecording"
)

type runInfoRow struct {
	Property string
	Value    string
}

type traceRow struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Where     string
	StartTime float64
	EndTime   float64
}

var reportCmd = &cobra.Command{
	Use:   "report <recording>",
	Short: "Summarize a recorded run",
	Long: `report reads a recording written by "run --record" and prints the
run information and the memory residency of every process.`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		reportRecording(args[0])
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func reportRecording(path string) {
	if !strings.HasSuffix(path, ".sqlite3") {
		path += ".sqlite3"
	}

	if _, err := os.Stat(path); err != nil {
		log.Fatal(err)
	}

	reader := datarecording.NewReader(path)
	defer reader.Close()

	printRunInfo(reader)
	printResidencies(reader)
}

func printRunInfo(reader datarecording.DataReader) {
	reader.MapTable("exec_info", runInfoRow{})

	results, _, err := reader.Query(
		context.Background(), "exec_info", datarecording.QueryParams{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Run information:")
	for _, result := range results {
		row := result.(*runInfoRow)
		fmt.Printf("  %-18s %s\n", row.Property, row.Value)
	}
}

func printResidencies(reader datarecording.DataReader) {
	reader.MapTable("trace", traceRow{})

	results, count, err := reader.Query(
		context.Background(), "trace", datarecording.QueryParams{
			Where:   "Kind = ?",
			Args:    []any{"residency"},
			OrderBy: "StartTime",
		})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Residencies (%d):\n", count)
	for _, result := range results {
		row := result.(*traceRow)
		fmt.Printf("  %-12s %8.2fs to %8.2fs, held %.2fs\n",
			row.What, row.StartTime, row.EndTime,
			row.EndTime-row.StartTime)
	}
}

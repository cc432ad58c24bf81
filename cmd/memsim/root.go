package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "Simulate contiguous memory allocation",
	Long: `memsim simulates an operating system allocating contiguous memory.
A memory region is partitioned into blocks and a queue of processes asks
for space, placed with first-fit, best-fit, or worst-fit. Allocations
expire after a lifetime, blocks return to the free pool after a reclaim
delay, failed processes retry when memory frees up, and the region can be
compacted on demand.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log every event")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

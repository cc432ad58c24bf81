// Package manager provides the component that drives a contiguous-memory
// allocation run: stepping through the process queue, splitting blocks,
// reclaiming expired allocations, retrying failed processes, and compacting
// the region.
package manager

import (
	"errors"
	"fmt"

	"github.com/sarchlab/memsim/mem/fit"
	"github.com/sarchlab/memsim/sim"
)

var (
	// ErrBadFrequency is returned when a configured frequency is not
	// positive.
	ErrBadFrequency = errors.New("frequency must be positive")

	// ErrBadLifetime is returned when the process lifetime is not positive.
	ErrBadLifetime = errors.New("lifetime must be positive")

	// ErrBadReclaimDelay is returned when the reclaim delay is not positive.
	ErrBadReclaimDelay = errors.New("reclaim delay must be positive")

	// ErrBadAlgorithm is returned when the fit algorithm is unknown.
	ErrBadAlgorithm = errors.New("unknown fit algorithm")

	// ErrStaleConfig is returned when a run is started after the
	// configuration was edited but not applied.
	ErrStaleConfig = errors.New("configuration edited, reset required")

	// ErrBlockNotAllocated is returned when deallocating a block that does
	// not hold a process.
	ErrBlockNotAllocated = errors.New("block is not allocated")
)

// Config carries the parameters of one allocation run.
type Config struct {
	// TotalMemory is the size of the memory region in KB.
	TotalMemory uint64

	// BlockSizes are the initial partition sizes in KB. A remainder of
	// TotalMemory is appended as a trailing free block.
	BlockSizes []uint64

	// ProcessSizes are the demand sizes in KB, queued in order.
	ProcessSizes []uint64

	// Algorithm picks the free block for each allocation.
	Algorithm fit.Algorithm

	// Lifetime is how long an allocated process holds its memory before it
	// is automatically released.
	Lifetime sim.VTimeInSec

	// ReclaimDelay is the time between releasing a process and its block
	// becoming free.
	ReclaimDelay sim.VTimeInSec

	// StepFreq is the rate of allocation attempts while auto-running.
	StepFreq sim.Freq

	// ExpiryCheckFreq is the rate of lifetime-expiry scans while
	// auto-running.
	ExpiryCheckFreq sim.Freq
}

// DefaultConfig returns the reference scenario.
func DefaultConfig() Config {
	return Config{
		TotalMemory:     1700,
		BlockSizes:      []uint64{100, 500, 200, 300, 600},
		ProcessSizes:    []uint64{212, 417, 112, 426},
		Algorithm:       fit.FirstFit,
		Lifetime:        5,
		ReclaimDelay:    0.3,
		StepFreq:        1 * sim.Hz,
		ExpiryCheckFreq: 2 * sim.Hz,
	}
}

// Validate rejects parameters that cannot start a run. Block and process
// size lists are validated by the region and the registry when the
// configuration is applied.
func (c Config) Validate() error {
	if c.Algorithm != fit.FirstFit &&
		c.Algorithm != fit.BestFit &&
		c.Algorithm != fit.WorstFit {
		return fmt.Errorf("algorithm %d: %w", int(c.Algorithm), ErrBadAlgorithm)
	}

	if c.Lifetime <= 0 {
		return fmt.Errorf("lifetime %f: %w", c.Lifetime, ErrBadLifetime)
	}

	if c.ReclaimDelay <= 0 {
		return fmt.Errorf("reclaim delay %f: %w",
			c.ReclaimDelay, ErrBadReclaimDelay)
	}

	if c.StepFreq <= 0 {
		return fmt.Errorf("step frequency %f: %w", c.StepFreq, ErrBadFrequency)
	}

	if c.ExpiryCheckFreq <= 0 {
		return fmt.Errorf("expiry check frequency %f: %w",
			c.ExpiryCheckFreq, ErrBadFrequency)
	}

	return nil
}

// Package fit implements the placement policies that pick a free block for
// an allocation request.
package fit

import (
	"fmt"
	"log"

	"github.com/sarchlab/memsim/mem/contig"
)

// Algorithm names a placement policy.
type Algorithm int

// The supported placement policies.
const (
	// FirstFit picks the lowest-address free block that is large enough.
	FirstFit Algorithm = iota

	// BestFit picks the smallest free block that is large enough.
	BestFit

	// WorstFit picks the largest free block that is large enough.
	WorstFit
)

// ParseAlgorithm converts a policy name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "first-fit":
		return FirstFit, nil
	case "best-fit":
		return BestFit, nil
	case "worst-fit":
		return WorstFit, nil
	}

	return FirstFit, fmt.Errorf("unknown fit algorithm %q", name)
}

func (a Algorithm) String() string {
	switch a {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	case WorstFit:
		return "worst-fit"
	}

	return "unknown"
}

// Pick selects the free block that should serve a request of the given size.
// It returns the index of the block and true, or false when no free block is
// large enough. When several blocks qualify equally, the one with the lowest
// address wins.
func (a Algorithm) Pick(blocks []contig.Block, size uint64) (int, bool) {
	switch a {
	case FirstFit:
		return pickFirst(blocks, size)
	case BestFit:
		return pickBest(blocks, size)
	case WorstFit:
		return pickWorst(blocks, size)
	}

	log.Panicf("unknown fit algorithm %d", a)
	return 0, false
}

func pickFirst(blocks []contig.Block, size uint64) (int, bool) {
	for i, b := range blocks {
		if b.State == contig.BlockFree && b.Size >= size {
			return i, true
		}
	}

	return 0, false
}

func pickBest(blocks []contig.Block, size uint64) (int, bool) {
	bestIndex := -1
	bestLeftover := uint64(0)

	for i, b := range blocks {
		if b.State != contig.BlockFree || b.Size < size {
			continue
		}

		leftover := b.Size - size
		// Strictly-less keeps the earliest block on ties.
		if bestIndex == -1 || leftover < bestLeftover {
			bestIndex = i
			bestLeftover = leftover
		}
	}

	if bestIndex == -1 {
		return 0, false
	}

	return bestIndex, true
}

func pickWorst(blocks []contig.Block, size uint64) (int, bool) {
	worstIndex := -1
	worstLeftover := uint64(0)

	for i, b := range blocks {
		if b.State != contig.BlockFree || b.Size < size {
			continue
		}

		leftover := b.Size - size
		// Strictly-greater keeps the earliest block on ties.
		if worstIndex == -1 || leftover > worstLeftover {
			worstIndex = i
			worstLeftover = leftover
		}
	}

	if worstIndex == -1 {
		return 0, false
	}

	return worstIndex, true
}

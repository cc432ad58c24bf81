// Package contig models a contiguous memory region as an ordered sequence of
// blocks. The blocks always partition the region: they cover every address
// exactly once and their sizes sum to the region total.
package contig

import (
	"github.com/sarchlab/memsim/mem/workload"
)

// BlockState describes how a block is being used.
type BlockState int

// Possible block states. A reclaiming block has been released by its owner
// but is still occupied until the reclaim delay passes.
const (
	BlockFree BlockState = iota
	BlockAllocated
	BlockReclaiming
)

func (s BlockState) String() string {
	switch s {
	case BlockFree:
		return "free"
	case BlockAllocated:
		return "allocated"
	case BlockReclaiming:
		return "reclaiming"
	}

	return "unknown"
}

// A Block is one contiguous piece of the region. Addr is derived from the
// position of the block in the region and is refreshed whenever the block
// sequence changes.
type Block struct {
	Addr  uint64
	Size  uint64
	State BlockState
	Owner workload.PID
}

// IsOccupied returns true when the block cannot serve a new allocation.
func (b Block) IsOccupied() bool {
	return b.State != BlockFree
}

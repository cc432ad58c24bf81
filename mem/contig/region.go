package contig

import (
	"errors"
	"log"

	"github.com/sarchlab/memsim/mem/workload"
)

// Region validation errors.
var (
	ErrNoBlocks       = errors.New("no blocks specified")
	ErrZeroSize       = errors.New("block size cannot be zero")
	ErrZeroTotal      = errors.New("total memory cannot be zero")
	ErrOversubscribed = errors.New("block sizes exceed total memory")
)

// A Region is an ordered sequence of blocks that partitions a fixed amount
// of memory. All sizes are in KB.
type Region struct {
	origin uint64
	total  uint64
	blocks []Block
}

// NewRegion creates an empty Region that starts at the given origin address.
func NewRegion(origin uint64) *Region {
	return &Region{origin: origin}
}

// Init replaces the region layout with one free block per size, in order.
// When the sizes do not add up to the total, one more free block covers the
// remainder.
func (r *Region) Init(blockSizes []uint64, total uint64) error {
	if total == 0 {
		return ErrZeroTotal
	}

	if len(blockSizes) == 0 {
		return ErrNoBlocks
	}

	sum := uint64(0)
	for _, size := range blockSizes {
		if size == 0 {
			return ErrZeroSize
		}
		sum += size
	}

	if sum > total {
		return ErrOversubscribed
	}

	blocks := make([]Block, 0, len(blockSizes)+1)
	for _, size := range blockSizes {
		blocks = append(blocks, Block{Size: size, State: BlockFree})
	}

	if sum < total {
		blocks = append(blocks, Block{Size: total - sum, State: BlockFree})
	}

	r.total = total
	r.blocks = blocks
	r.computeAddresses()

	return nil
}

// Total returns the size of the region.
func (r *Region) Total() uint64 {
	return r.total
}

// Len returns the number of blocks in the region.
func (r *Region) Len() int {
	return len(r.blocks)
}

// Block returns a copy of the i-th block.
func (r *Region) Block(i int) Block {
	return r.blocks[i]
}

// Blocks returns a copy of all the blocks in address order.
func (r *Region) Blocks() []Block {
	blocks := make([]Block, len(r.blocks))
	copy(blocks, r.blocks)
	return blocks
}

func (r *Region) computeAddresses() {
	addr := r.origin
	for i := range r.blocks {
		r.blocks[i].Addr = addr
		addr += r.blocks[i].Size
	}
}

// Split carves a piece of the given size for the owner out of the i-th
// block. A larger block shrinks and a new free block covers the remainder
// right after it. An exact-size block is allocated in place.
func (r *Region) Split(i int, size uint64, owner workload.PID) {
	block := &r.blocks[i]

	if block.State != BlockFree {
		log.Panicf("cannot split %s block %d", block.State, i)
	}

	if block.Size < size {
		log.Panicf("block %d is too small to hold %d KB", i, size)
	}

	if block.Size == size {
		block.State = BlockAllocated
		block.Owner = owner
		return
	}

	remainder := Block{Size: block.Size - size, State: BlockFree}

	block.Size = size
	block.State = BlockAllocated
	block.Owner = owner

	r.blocks = append(r.blocks, Block{})
	copy(r.blocks[i+2:], r.blocks[i+1:])
	r.blocks[i+1] = remainder

	r.computeAddresses()
	r.mustPreserveTotal()
}

// BeginReclaim moves the i-th block into the reclaiming state. The block
// stays occupied until Free is called.
func (r *Region) BeginReclaim(i int) {
	block := &r.blocks[i]

	if block.State != BlockAllocated {
		log.Panicf("cannot reclaim %s block %d", block.State, i)
	}

	block.State = BlockReclaiming
}

// Free releases the i-th block.
func (r *Region) Free(i int) {
	block := &r.blocks[i]

	block.State = BlockFree
	block.Owner = 0
}

// MergeAdjacentFree combines every run of neighboring free blocks into one
// block. Calling it again on the result changes nothing.
func (r *Region) MergeAdjacentFree() {
	i := 0
	for i < len(r.blocks)-1 {
		if r.blocks[i].State == BlockFree && r.blocks[i+1].State == BlockFree {
			r.blocks[i].Size += r.blocks[i+1].Size
			r.blocks = append(r.blocks[:i+1], r.blocks[i+2:]...)
			// Stay at i so that a chain of free blocks collapses into the
			// leftmost one in a single pass.
			continue
		}
		i++
	}

	r.computeAddresses()
	r.mustPreserveTotal()
}

// Compact slides every occupied block toward the origin, preserving their
// order, and gathers all the free space into one block at the end.
func (r *Region) Compact() {
	blocks := make([]Block, 0, len(r.blocks))
	freeKB := uint64(0)

	for _, b := range r.blocks {
		if b.State == BlockFree {
			freeKB += b.Size
			continue
		}
		blocks = append(blocks, b)
	}

	if freeKB > 0 {
		blocks = append(blocks, Block{Size: freeKB, State: BlockFree})
	}

	r.blocks = blocks
	r.computeAddresses()
	r.mustPreserveTotal()
}

// ForceReleaseAll frees every block at once and merges the result into a
// single free block.
func (r *Region) ForceReleaseAll() {
	for i := range r.blocks {
		r.blocks[i].State = BlockFree
		r.blocks[i].Owner = 0
	}

	r.MergeAdjacentFree()
}

// OwnerIndex returns the index of the allocated block owned by the given
// process, or -1 when the process owns no block.
func (r *Region) OwnerIndex(pid workload.PID) int {
	for i, b := range r.blocks {
		if b.State == BlockAllocated && b.Owner == pid {
			return i
		}
	}

	return -1
}

// ReclaimingIndex returns the index of the reclaiming block owned by the
// given process, or -1 when there is none.
func (r *Region) ReclaimingIndex(pid workload.PID) int {
	for i, b := range r.blocks {
		if b.State == BlockReclaiming && b.Owner == pid {
			return i
		}
	}

	return -1
}

// FreeKB returns the amount of free memory.
func (r *Region) FreeKB() uint64 {
	return r.sumWithState(BlockFree)
}

// AllocatedKB returns the amount of allocated memory.
func (r *Region) AllocatedKB() uint64 {
	return r.sumWithState(BlockAllocated)
}

// ReclaimingKB returns the amount of memory waiting to be reclaimed.
func (r *Region) ReclaimingKB() uint64 {
	return r.sumWithState(BlockReclaiming)
}

// LargestFreeKB returns the size of the largest free block.
func (r *Region) LargestFreeKB() uint64 {
	largest := uint64(0)
	for _, b := range r.blocks {
		if b.State == BlockFree && b.Size > largest {
			largest = b.Size
		}
	}

	return largest
}

// ExternalFragmentationKB returns the amount of free memory that cannot be
// served as one contiguous piece.
func (r *Region) ExternalFragmentationKB() uint64 {
	return r.FreeKB() - r.LargestFreeKB()
}

func (r *Region) sumWithState(s BlockState) uint64 {
	sum := uint64(0)
	for _, b := range r.blocks {
		if b.State == s {
			sum += b.Size
		}
	}

	return sum
}

func (r *Region) mustPreserveTotal() {
	sum := uint64(0)
	for _, b := range r.blocks {
		sum += b.Size
	}

	if sum != r.total {
		log.Panicf("blocks sum to %d KB, region holds %d KB", sum, r.total)
	}
}

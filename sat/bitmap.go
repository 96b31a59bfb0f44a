package sat

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	satsave "github.com/sgc-tools/satsave"
)

// nibbleCounts maps a nibble to its population count. CountSet sums two
// lookups per byte instead of testing bits one at a time.
var nibbleCounts = [16]uint{
	0, 1, 1, 2, 1, 2, 2, 3,
	1, 2, 2, 3, 2, 3, 3, 4,
}

// BlockBitmap is a dense bit-vector over a partition's blocks: bit i set
// means block i is in use (or, after Invert, free). It is ephemeral scratch
// state, rebuilt by every operation that needs it.
//
// Block index 0 is never a valid argument to Set or a possible result of
// NextSet: the on-medium chain encoding uses 0 as its terminator, so a chain
// can never reference block 0. The reserved directory blocks are marked
// through reserveDirectory instead.
type BlockBitmap struct {
	bits   bitmap.Bitmap
	blocks uint
}

// NewBlockBitmap returns a bitmap covering the given number of blocks with
// every bit clear.
func NewBlockBitmap(blocks uint) (*BlockBitmap, error) {
	if blocks < ReservedBlocks || blocks > MaxBlocks {
		return nil, satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("block count %d not in range [%d, %d]", blocks, ReservedBlocks, MaxBlocks))
	}
	return &BlockBitmap{
		bits:   bitmap.NewSlice(int(blocks)),
		blocks: blocks,
	}, nil
}

// wrapBitmap views an existing byte buffer as a bitmap over the given number
// of blocks, clearing it first. The engine uses this to recycle its scratch
// buffer between calls.
func wrapBitmap(buf []byte, blocks uint) *BlockBitmap {
	size := (blocks + 7) / 8
	bits := bitmap.Bitmap(buf[:size])
	for i := range bits {
		bits[i] = 0
	}
	return &BlockBitmap{bits: bits, blocks: blocks}
}

// Blocks returns the number of blocks the bitmap covers.
func (b *BlockBitmap) Blocks() uint {
	return b.blocks
}

// Set marks block index as in use. Index 0 is rejected because it doubles as
// the chain terminator and can never belong to a save.
func (b *BlockBitmap) Set(index uint) error {
	if index == 0 {
		return satsave.ErrArgumentOutOfRange.WithMessage(
			"block 0 is the chain terminator and can never be marked")
	}
	if index >= b.blocks {
		return satsave.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("block %d not in range [1, %d)", index, b.blocks))
	}
	b.bits.Set(int(index), true)
	return nil
}

// Get reports whether block index is marked.
func (b *BlockBitmap) Get(index uint) bool {
	return index < b.blocks && b.bits.Get(int(index))
}

// NextSet scans forward from after+1 and returns the index of the next
// marked block. It is the mechanism behind both "next block in this save's
// chain" and "next free block". The second return value is false when no
// higher bit is set.
func (b *BlockBitmap) NextSet(after uint) (uint, bool) {
	for i := after + 1; i < b.blocks; i++ {
		if b.bits.Get(int(i)) {
			return i, true
		}
	}
	return 0, false
}

// CountSet returns the number of marked blocks.
func (b *BlockBitmap) CountSet() uint {
	count := uint(0)
	for _, octet := range b.bits {
		count += nibbleCounts[octet&0x0F] + nibbleCounts[octet>>4]
	}
	return count
}

// Invert flips every bit, turning a used-block bitmap into a free-block
// bitmap. Bits past the partition's block count stay clear so CountSet
// remains exact.
func (b *BlockBitmap) Invert() {
	for i := range b.bits {
		b.bits[i] = ^b.bits[i]
	}
	for i := b.blocks; i < uint(len(b.bits))*8; i++ {
		b.bits.Set(int(i), false)
	}
}

// reserveDirectory marks the directory blocks at the start of the partition.
// This is the one place allowed to touch block 0; callers must apply it
// before using the bitmap for allocation.
func (b *BlockBitmap) reserveDirectory() {
	for i := 0; i < ReservedBlocks; i++ {
		b.bits.Set(i, true)
	}
}

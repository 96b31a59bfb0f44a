package sat

import (
	"fmt"

	satsave "github.com/sgc-tools/satsave"
)

const (
	// MinBlockSize is the smallest logical block size any supported medium
	// uses. Block sizes must be a multiple of it.
	MinBlockSize = 64

	// MaxBlocks is the block count of the largest supported partition (the
	// decompressed Action Replay image). The engine's scratch bitmap is
	// sized for it.
	MaxBlocks = 8192

	// ReservedBlocks is the number of directory blocks at the start of every
	// partition that are never allocated to a save.
	ReservedBlocks = 2
)

// Partition describes the byte range holding one medium's saves. The engine
// borrows Data for the duration of a single call and never retains it.
//
// BlockSize and Data are physical sizes. When Stripe is 1 only every other
// physical byte is meaningful (logical byte k lives at physical byte 2k+1)
// and all logical quantities are half their physical counterparts.
type Partition struct {
	Data      []byte
	BlockSize uint
	Stripe    uint8
}

// Validate checks the descriptor's invariants: a stripe factor of 0 or 1, a
// logical block size that is a non-zero multiple of MinBlockSize, and a
// partition size that is an exact number of blocks.
func (p Partition) Validate() error {
	if len(p.Data) == 0 || p.BlockSize == 0 {
		return satsave.ErrInvalidArgument.WithMessage("empty partition descriptor")
	}
	if p.Stripe > 1 {
		return satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("stripe factor must be 0 or 1, got %d", p.Stripe))
	}
	if p.LogicalBlockSize()%MinBlockSize != 0 {
		return satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"logical block size must be a multiple of %d, got %d",
				MinBlockSize,
				p.LogicalBlockSize()))
	}
	if p.BlockSize > uint(len(p.Data)) || uint(len(p.Data))%p.BlockSize != 0 {
		return satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"partition size %d is not a multiple of the block size %d",
				len(p.Data),
				p.BlockSize))
	}
	if p.Blocks() > MaxBlocks {
		return satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("partition has %d blocks, limit is %d", p.Blocks(), MaxBlocks))
	}
	return nil
}

// LogicalBlockSize returns the number of meaningful bytes per block.
func (p Partition) LogicalBlockSize() uint {
	return p.BlockSize >> p.Stripe
}

// LogicalSize returns the number of meaningful bytes in the partition.
func (p Partition) LogicalSize() uint {
	return uint(len(p.Data)) >> p.Stripe
}

// Blocks returns the number of blocks in the partition.
func (p Partition) Blocks() uint {
	return p.LogicalSize() / p.LogicalBlockSize()
}

// blockStart converts a block index to its logical byte offset. Every block
// access in the engine funnels through this bounds check.
func (p Partition) blockStart(index uint) (uint, error) {
	if index >= p.Blocks() {
		return 0, satsave.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf("block %d not in range [0, %d)", index, p.Blocks()))
	}
	return index * p.LogicalBlockSize(), nil
}

func (p Partition) checkAccess(offset, length uint) error {
	if length == 0 {
		return satsave.ErrInvalidArgument.WithMessage("zero-length partition access")
	}
	if offset+length > p.LogicalSize() {
		return satsave.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"access [%d, %d) exceeds partition of %d logical bytes",
				offset,
				offset+length,
				p.LogicalSize()))
	}
	return nil
}

// ReadAt copies len(dst) logical bytes starting at the given logical offset
// into dst. Multi-byte fields must always be assembled from bytes read
// through this translation, never by overlaying a struct onto Data.
func (p Partition) ReadAt(dst []byte, offset uint) error {
	if dst == nil {
		return satsave.ErrInvalidArgument.WithMessage("nil read buffer")
	}
	if err := p.checkAccess(offset, uint(len(dst))); err != nil {
		return err
	}
	if p.Stripe == 0 {
		copy(dst, p.Data[offset:offset+uint(len(dst))])
		return nil
	}
	for i := range dst {
		dst[i] = p.Data[2*(offset+uint(i))+1]
	}
	return nil
}

// WriteAt copies src to the given logical offset. On a striped partition the
// interleaved padding bytes are left untouched.
func (p Partition) WriteAt(offset uint, src []byte) error {
	if src == nil {
		return satsave.ErrInvalidArgument.WithMessage("nil write buffer")
	}
	if err := p.checkAccess(offset, uint(len(src))); err != nil {
		return err
	}
	if p.Stripe == 0 {
		copy(p.Data[offset:offset+uint(len(src))], src)
		return nil
	}
	for i := range src {
		p.Data[2*(offset+uint(i))+1] = src[i]
	}
	return nil
}

// Fill writes length copies of value starting at the given logical offset.
func (p Partition) Fill(offset uint, value byte, length uint) error {
	if err := p.checkAccess(offset, length); err != nil {
		return err
	}
	if p.Stripe == 0 {
		for i := offset; i < offset+length; i++ {
			p.Data[i] = value
		}
		return nil
	}
	for i := uint(0); i < length; i++ {
		p.Data[2*(offset+i)+1] = value
	}
	return nil
}

package sat

import (
	"fmt"

	satsave "github.com/sgc-tools/satsave"
)

// CalcBlocks returns how many blocks a save with dataSize payload bytes
// occupies on a partition with the given logical block size.
//
// A stored save is the header (less its tag), the index array with its
// 0x0000 terminator, and the payload, packed into blocks that each lose
// TagSize bytes to their tag. The index array's length depends on the block
// count, which depends on the index array's length, so the count is resolved
// by fixed-point iteration: recompute the block count with one index entry
// per block plus the terminator until it stops changing. Each round can only
// grow the total by a bounded number of 2-byte entries, so the iteration
// terminates.
func CalcBlocks(dataSize, logicalBlockSize uint) (uint, error) {
	if dataSize == 0 {
		return 0, satsave.ErrInvalidArgument.WithMessage("zero-length save")
	}
	if logicalBlockSize == 0 || logicalBlockSize%MinBlockSize != 0 {
		return 0, satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("block size must be a non-zero multiple of %d, got %d",
				MinBlockSize, logicalBlockSize))
	}

	usable := logicalBlockSize - TagSize
	fixed := (HeaderSize - TagSize) + dataSize

	blocks := uint(0)
	for {
		total := fixed + (blocks+1)*indexEntrySize
		next := (total + usable - 1) / usable
		if next == blocks {
			return blocks, nil
		}
		blocks = next
	}
}

// chainInfo is the result of decoding a save's index chain.
type chainInfo struct {
	// startBlock is the block holding the save's header.
	startBlock uint
	// firstDataBlock is the block holding the chain terminator; payload
	// bytes begin right after it. It can equal startBlock.
	firstDataBlock uint
	// blocks is the save's total block count per CalcBlocks.
	blocks uint
}

// readChain walks the index chain of the save starting at startOffset and
// marks every block the save occupies in bm. The bitmap may already hold
// other saves' blocks (the partition-wide walk accumulates into one bitmap);
// chain reconstruction still works because each save's entries are strictly
// increasing and are always parsed before the forward scan passes them.
func readChain(p Partition, bm *BlockBitmap, startOffset uint) (chainInfo, error) {
	var info chainInfo

	header, err := readHeader(p, startOffset)
	if err != nil {
		return info, err
	}
	if header.Tag != StartBlockTag {
		return info, satsave.ErrInvalidTag.WithMessage(
			fmt.Sprintf("block at offset %#x is not a save start", startOffset))
	}

	blocks, err := CalcBlocks(uint(header.DataSize), p.LogicalBlockSize())
	if err != nil {
		return info, err
	}
	if blocks > bm.Blocks() {
		return info, satsave.ErrSaveTooLarge.WithMessage(
			fmt.Sprintf("save needs %d blocks, partition has %d", blocks, bm.Blocks()))
	}

	info.startBlock = startOffset / p.LogicalBlockSize()
	info.blocks = blocks
	if err := bm.Set(info.startBlock); err != nil {
		return info, err
	}

	// The start block is the first entry; every index parsed below adds one.
	entries := uint(1)
	current := info.startBlock
	for {
		if entries > blocks {
			return info, satsave.ErrChainLengthMismatch.WithMessage(
				fmt.Sprintf("more than the %d computed chain entries", blocks))
		}

		terminated, err := parseChainBlock(p, bm, current, info.startBlock, &entries)
		if err != nil {
			return info, err
		}
		if terminated {
			info.firstDataBlock = current
			break
		}

		// The forward scan assumes block indices are strictly increasing
		// within a chain. When bm is a shared bitmap holding several
		// saves' blocks, a chain whose index array interleaves with a
		// foreign save's blocks steers the scan into that save; the
		// entry-count check below then rejects the partition instead of
		// returning a wrong chain.
		next, ok := bm.NextSet(current)
		if !ok {
			// Ran off the end of the chain without ever seeing a terminator.
			return info, satsave.ErrChainLengthMismatch.WithMessage("chain has no terminator")
		}
		current = next
	}

	if entries != blocks {
		return info, satsave.ErrChainLengthMismatch.WithMessage(
			fmt.Sprintf("chain lists %d blocks, size implies %d", entries, blocks))
	}
	return info, nil
}

// parseChainBlock reads the index entries embedded in one block, marking each
// listed block in bm. It returns true once it hits the 0x0000 terminator; if
// the entries run to the block boundary instead, the chain continues in the
// next marked block.
func parseChainBlock(p Partition, bm *BlockBitmap, current, startBlock uint, entries *uint) (bool, error) {
	blockOffset, err := p.blockStart(current)
	if err != nil {
		return false, err
	}

	tag, err := readTag(p, blockOffset)
	if err != nil {
		return false, err
	}

	// Entries start after the header in the start block, after the bare tag
	// everywhere else.
	var offset uint
	if current == startBlock {
		if tag != StartBlockTag {
			return false, satsave.ErrInvalidTag.WithMessage(
				fmt.Sprintf("start block %d has tag %#08x", current, tag))
		}
		offset = HeaderSize
	} else {
		if tag != 0 {
			return false, satsave.ErrInvalidTag.WithMessage(
				fmt.Sprintf("continuation block %d has tag %#08x", current, tag))
		}
		offset = TagSize
	}

	for ; offset+indexEntrySize <= p.LogicalBlockSize(); offset += indexEntrySize {
		index, err := readIndexEntry(p, blockOffset+offset)
		if err != nil {
			return false, err
		}
		if index == 0 {
			return true, nil
		}
		// Chains list strictly increasing block indices; anything else would
		// make the forward bitmap scan loop or skip blocks.
		if uint(index) <= current {
			return false, satsave.ErrBlocksOutOfOrder.WithMessage(
				fmt.Sprintf("block %d lists chain entry %d", current, index))
		}
		if err := bm.Set(uint(index)); err != nil {
			return false, satsave.ErrCorrupted.Wrap(err)
		}
		*entries++
	}
	return false, nil
}

// writeChain writes a new index chain for a save occupying totalBlocks
// blocks, starting at startBlock. Blocks are taken from freeMap strictly in
// increasing index order. It returns the block and in-block logical offset
// where the payload must be written; the offset is mid-block unless the
// terminator landed exactly on the block boundary.
func writeChain(p Partition, freeMap *BlockBitmap, startBlock, totalBlocks uint) (uint, uint, error) {
	if totalBlocks == 0 {
		return 0, 0, satsave.ErrInvalidArgument.WithMessage("chain needs at least one block")
	}

	current := startBlock
	highestWritten := startBlock
	written := uint(0)
	offset := uint(0)

	for written < totalBlocks {
		blockOffset, err := p.blockStart(current)
		if err != nil {
			return 0, 0, err
		}

		if current == startBlock {
			offset = HeaderSize
		} else {
			offset = TagSize
			if err := p.Fill(blockOffset, 0, TagSize); err != nil {
				return 0, 0, err
			}
		}

		for ; offset+indexEntrySize <= p.LogicalBlockSize(); offset += indexEntrySize {
			written++

			var index uint16
			if written == totalBlocks {
				// Final entry is the 0x0000 terminator, not a block pointer.
				index = 0
			} else {
				next, ok := freeMap.NextSet(highestWritten)
				if !ok {
					return 0, 0, satsave.ErrNoSpaceOnDevice.WithMessage(
						"free bitmap exhausted while writing chain")
				}
				index = uint16(next)
				highestWritten = next
			}

			if err := writeIndexEntry(p, blockOffset+offset, index); err != nil {
				return 0, 0, err
			}
			if written >= totalBlocks {
				offset += indexEntrySize
				break
			}
		}

		if written < totalBlocks {
			next, ok := freeMap.NextSet(current)
			if !ok {
				return 0, 0, satsave.ErrNoSpaceOnDevice.WithMessage(
					"free bitmap exhausted while writing chain")
			}
			current = next
		}
	}

	// The terminator filled the block exactly; payload starts in the next
	// allocated block, right after its tag.
	if offset >= p.LogicalBlockSize() {
		next, ok := freeMap.NextSet(current)
		if !ok {
			return 0, 0, satsave.ErrNoSpaceOnDevice.WithMessage(
				"free bitmap exhausted after chain terminator")
		}
		current = next
		offset = TagSize
	}

	return current, offset, nil
}

// readPayload copies a save's payload into buf, following the bitmap built
// by readChain. Reading starts in the block holding the chain terminator; if
// the terminator ended exactly on the block boundary, the payload resumes in
// the next chained block right after its tag.
func readPayload(p Partition, bm *BlockBitmap, info chainInfo, dataSize uint, buf []byte) (uint, error) {
	blockData := p.LogicalBlockSize() - TagSize
	current := info.firstDataBlock
	written := uint(0)

	for written < dataSize {
		blockOffset, err := p.blockStart(current)
		if err != nil {
			return written, err
		}

		offset := uint(TagSize)
		if current == info.firstDataBlock {
			if current == info.startBlock {
				offset = HeaderSize
			}
			// Skip the remaining index entries and the terminator.
			for ; offset+indexEntrySize <= p.LogicalBlockSize(); offset += indexEntrySize {
				index, err := readIndexEntry(p, blockOffset+offset)
				if err != nil {
					return written, err
				}
				if index == 0 {
					offset += indexEntrySize
					break
				}
			}
			if offset >= p.LogicalBlockSize() {
				next, ok := bm.NextSet(current)
				if !ok {
					break
				}
				current = next
				if blockOffset, err = p.blockStart(current); err != nil {
					return written, err
				}
				offset = TagSize
			}
		}

		chunk := p.LogicalBlockSize() - offset
		if chunk > blockData {
			return written, satsave.ErrCorrupted.WithMessage("payload chunk exceeds block capacity")
		}
		if remaining := dataSize - written; chunk > remaining {
			chunk = remaining
		}
		if err := p.ReadAt(buf[written:written+chunk], blockOffset+offset); err != nil {
			return written, err
		}
		written += chunk

		if written >= dataSize {
			break
		}
		next, ok := bm.NextSet(current)
		if !ok {
			break
		}
		current = next
	}

	if written != dataSize {
		return written, satsave.ErrCorrupted.WithMessage(
			fmt.Sprintf("payload truncated: read %d of %d bytes", written, dataSize))
	}
	return written, nil
}

// writePayload writes the save data starting at the block and offset
// returned by writeChain, continuing through the blocks allocated from
// freeMap in ascending order.
func writePayload(p Partition, freeMap *BlockBitmap, dataBlock, dataOffset uint, data []byte) error {
	current := dataBlock
	written := uint(0)

	for written < uint(len(data)) {
		blockOffset, err := p.blockStart(current)
		if err != nil {
			return err
		}

		offset := uint(TagSize)
		if current == dataBlock {
			offset = dataOffset
		}
		if offset == TagSize {
			// A pure data block still carries the continuation tag so the
			// directory walk never mistakes stale bytes for a save start.
			if err := p.Fill(blockOffset, 0, TagSize); err != nil {
				return err
			}
		}

		chunk := p.LogicalBlockSize() - offset
		if remaining := uint(len(data)) - written; chunk > remaining {
			chunk = remaining
		}
		if err := p.WriteAt(blockOffset+offset, data[written:written+chunk]); err != nil {
			return err
		}
		written += chunk

		if written < uint(len(data)) {
			next, ok := freeMap.NextSet(current)
			if !ok {
				return satsave.ErrNoSpaceOnDevice.WithMessage(
					"free bitmap exhausted while writing payload")
			}
			current = next
		}
	}
	return nil
}

package sat

import (
	"bytes"
	"errors"
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	satsave "github.com/sgc-tools/satsave"
)

// FormatMarker fills block 0 of a formatted partition, repeated end to end.
const FormatMarker = "BackUpRam Format"

// Engine executes save operations against partitions. It owns a single
// scratch bitmap sized for the largest supported partition, cleared and
// rebuilt on every operation that needs one, so an Engine supports exactly
// one in-flight call: callers running concurrently must serialize access
// themselves. The engine holds no reference to any partition between calls.
type Engine struct {
	scratch []byte
}

// NewEngine returns an engine with a fresh scratch bitmap.
func NewEngine() *Engine {
	return &Engine{scratch: bitmap.NewSlice(MaxBlocks)}
}

func (e *Engine) bitmapFor(p Partition) *BlockBitmap {
	return wrapBitmap(e.scratch, p.Blocks())
}

// UsedBlocks returns the number of blocks occupied by saves on the
// partition, not counting the reserved directory blocks.
func (e *Engine) UsedBlocks(p Partition) (uint, error) {
	_, used, err := e.walk(p, nil)
	return used, err
}

// List scans the partition for saves and copies their metadata into saves.
// The number of saves found is always returned, even when it exceeds
// len(saves); in that case the error is ErrBufferTooSmall and only the first
// len(saves) entries were copied, but the scan still ran to completion so
// the count is exact. A nil slice counts without copying.
func (e *Engine) List(p Partition, saves []satsave.SaveMetadata) (uint, error) {
	found, _, err := e.walk(p, saves)
	return found, err
}

// Query returns the metadata of the named save.
func (e *Engine) Query(p Partition, name string) (satsave.SaveMetadata, error) {
	offset, err := e.findSave(p, name)
	if err != nil {
		return satsave.SaveMetadata{}, err
	}
	header, err := readHeader(p, offset)
	if err != nil {
		return satsave.SaveMetadata{}, err
	}
	return header.metadata(), nil
}

// Read copies the named save's payload into buf and returns the number of
// bytes read. If buf is smaller than the save's data size, the error is
// ErrBufferTooSmall and the returned count is the size needed.
func (e *Engine) Read(p Partition, name string, buf []byte) (uint, error) {
	offset, err := e.findSave(p, name)
	if err != nil {
		return 0, err
	}
	header, err := readHeader(p, offset)
	if err != nil {
		return 0, err
	}

	dataSize := uint(header.DataSize)
	if uint(len(buf)) < dataSize {
		return dataSize, satsave.ErrBufferTooSmall.WithMessage(
			fmt.Sprintf("save is %d bytes, buffer holds %d", dataSize, len(buf)))
	}

	bm := e.bitmapFor(p)
	info, err := readChain(p, bm, offset)
	if err != nil {
		return 0, err
	}
	// The chain bitmap was built for this save alone, so its population must
	// equal the computed block count exactly.
	if count := bm.CountSet(); count != info.blocks {
		return 0, satsave.ErrChainLengthMismatch.WithMessage(
			fmt.Sprintf("bitmap holds %d blocks, size implies %d", count, info.blocks))
	}

	return readPayload(p, bm, info, dataSize, buf)
}

// Write stores a save on the partition. The write fails with ErrExists if a
// save with the same name is present and flags does not include
// OverwriteExisting. Free space is located and verified before the first
// byte of header, chain, or payload is written, so a failed write never
// leaves a partial save behind.
func (e *Engine) Write(
	p Partition,
	name string,
	meta satsave.SaveMetadata,
	data []byte,
	flags satsave.WriteFlags,
) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(data) == 0 {
		return satsave.ErrInvalidArgument.WithMessage("empty save payload")
	}
	if !meta.Language.IsValid() {
		return satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid language code %d", meta.Language))
	}
	field, err := nameField(name)
	if err != nil {
		return err
	}

	// An existing save with this name is deleted (tag zeroed) before the
	// rest of the write, so its blocks become free space for the new copy.
	// Until the new header is committed, any failure restores the old tag
	// and with it the old save.
	restoreExisting := func() {}
	existing, err := e.findSave(p, name)
	switch {
	case err == nil:
		if flags&satsave.OverwriteExisting == 0 {
			return satsave.ErrExists.WithMessage(name)
		}
		if err := p.Fill(existing, 0, TagSize); err != nil {
			return err
		}
		restoreExisting = func() { _ = writeTag(p, existing, StartBlockTag) }
	case errors.Is(err, satsave.ErrNotFound):
		// fresh name
	default:
		return err
	}

	blocksNeeded, err := CalcBlocks(uint(len(data)), p.LogicalBlockSize())
	if err != nil {
		restoreExisting()
		return err
	}

	bm := e.bitmapFor(p)
	if err := e.walkBitmap(p, bm); err != nil {
		restoreExisting()
		return err
	}
	bm.Invert()

	if free := bm.CountSet(); free < blocksNeeded {
		restoreExisting()
		return satsave.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf("save needs %d blocks, %d free", blocksNeeded, free))
	}

	startBlock, ok := bm.NextSet(0)
	if !ok {
		restoreExisting()
		return satsave.ErrNoSpaceOnDevice.WithMessage("no free blocks")
	}
	startOffset, err := p.blockStart(startBlock)
	if err != nil {
		restoreExisting()
		return err
	}

	header := headerForSave(meta, field, uint32(len(data)))
	if err := writeHeader(p, startOffset, header); err != nil {
		return err
	}

	dataBlock, dataOffset, err := writeChain(p, bm, startBlock, blocksNeeded)
	if err != nil {
		return err
	}
	return writePayload(p, bm, dataBlock, dataOffset, data)
}

// Delete removes the named save by zeroing its start tag. The blocks it
// occupied are reclaimed lazily: they simply stop being reachable from any
// save start, so the next partition walk counts them as free.
func (e *Engine) Delete(p Partition, name string) error {
	offset, err := e.findSave(p, name)
	if err != nil {
		return err
	}
	return p.Fill(offset, 0, TagSize)
}

// CheckFormatted verifies that block 0 is filled with repeated copies of the
// format marker. It returns nil for a formatted partition and
// ErrNotFormatted otherwise.
func (e *Engine) CheckFormatted(p Partition) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var line [len(FormatMarker)]byte
	repeats := p.LogicalBlockSize() / uint(len(FormatMarker))
	for i := uint(0); i < repeats; i++ {
		if err := p.ReadAt(line[:], i*uint(len(FormatMarker))); err != nil {
			return err
		}
		if !bytes.Equal(line[:], []byte(FormatMarker)) {
			return satsave.ErrNotFormatted
		}
	}
	return nil
}

// Format erases the partition: every addressable byte is zeroed, then the
// format marker pattern is stamped into block 0. All saves are lost.
func (e *Engine) Format(p Partition) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if err := p.Fill(0, 0, p.LogicalSize()); err != nil {
		return err
	}
	repeats := p.LogicalBlockSize() / uint(len(FormatMarker))
	for i := uint(0); i < repeats; i++ {
		err := p.WriteAt(i*uint(len(FormatMarker)), []byte(FormatMarker))
		if err != nil {
			return err
		}
	}
	return nil
}

// findSave scans the partition for a save whose fixed-width name field
// matches name exactly, returning the logical offset of its start block.
func (e *Engine) findSave(p Partition, name string) (uint, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	field, err := nameField(name)
	if err != nil {
		return 0, err
	}

	blockSize := p.LogicalBlockSize()
	for offset := ReservedBlocks * blockSize; offset < p.LogicalSize(); offset += blockSize {
		header, err := readHeader(p, offset)
		if err != nil {
			return 0, err
		}
		if header.Tag != StartBlockTag {
			continue
		}
		if bytes.Equal(header.Name[:], field[:]) {
			return offset, nil
		}
	}
	return 0, satsave.ErrNotFound.WithMessage(name)
}

// walk scans every block-aligned offset from block 2 onward for save starts.
// It returns the number of saves found and the blocks they occupy. When
// saves is non-nil, metadata is copied until capacity runs out; the scan
// still completes so the returned totals are exact, with ErrBufferTooSmall
// reporting the truncation.
func (e *Engine) walk(p Partition, saves []satsave.SaveMetadata) (uint, uint, error) {
	if err := p.Validate(); err != nil {
		return 0, 0, err
	}

	blockSize := p.LogicalBlockSize()
	found := uint(0)
	usedBlocks := uint(0)
	truncated := false

	for offset := ReservedBlocks * blockSize; offset < p.LogicalSize(); offset += blockSize {
		header, err := readHeader(p, offset)
		if err != nil {
			return 0, 0, err
		}
		if header.Tag != StartBlockTag {
			continue
		}

		blocks, err := CalcBlocks(uint(header.DataSize), blockSize)
		if err != nil {
			return 0, 0, satsave.ErrCorrupted.Wrap(err)
		}
		usedBlocks += blocks

		if saves != nil {
			if found < uint(len(saves)) {
				saves[found] = header.metadata()
			} else {
				truncated = true
			}
		}
		found++
	}

	if truncated {
		return found, usedBlocks, satsave.ErrBufferTooSmall.WithMessage(
			fmt.Sprintf("%d saves found, capacity for %d", found, len(saves)))
	}
	return found, usedBlocks, nil
}

// walkBitmap marks every live save's full chain, plus the reserved directory
// blocks, in bm. Write paths invert the result to find free space.
func (e *Engine) walkBitmap(p Partition, bm *BlockBitmap) error {
	bm.reserveDirectory()

	blockSize := p.LogicalBlockSize()
	for offset := ReservedBlocks * blockSize; offset < p.LogicalSize(); offset += blockSize {
		tag, err := readTag(p, offset)
		if err != nil {
			return err
		}
		if tag != StartBlockTag {
			continue
		}
		if _, err := readChain(p, bm, offset); err != nil {
			return err
		}
	}
	return nil
}

// Package sat implements the Sequential Allocation Table save format used by
// Saturn backup media: internal backup RAM, backup cartridges, and the
// decompressed partition of an Action Replay cartridge.
//
// A partition is divided into fixed-size blocks. The first two blocks are a
// reserved directory area; block 0 carries the format marker. Every save
// starts in a block tagged 0x80000000 holding a 34-byte header, followed by a
// variable array of big-endian 16-bit block indices terminated by 0x0000, and
// then the payload. The index array itself occupies blocks, so the number of
// blocks a save needs depends on the length of the index array describing
// those blocks; CalcBlocks resolves that with a fixed-point iteration.
//
// Chains list block indices in strictly increasing order. The engine relies
// on that invariant to reconstruct a save's block set with a single forward
// scan of a bitmap, and rejects any chain entry that does not exceed the
// block it was read from.
//
// On some media only every other physical byte is meaningful. The Partition
// type hides that striping: all offsets and sizes above it are logical
// (dense) bytes.
package sat

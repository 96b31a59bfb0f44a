// Package rle01 decodes the RLE01 run-length encoding used by Action Replay
// cartridges to compress their save partition.
//
// A compressed partition starts with a 10-byte header: the ASCII magic
// "RLE01", one key byte, and the big-endian total compressed size including
// the header. The body is a byte stream with three token forms:
//
//	b            (b != key)  emit b
//	key 0x00                 emit key itself
//	key N V      (N != 0)    emit V repeated N times
//
// The format has no compressed form of its own end marker, so the key byte
// can only appear escaped. Only decompression is implemented; Action Replay
// carts are treated as read-only media.
package rle01

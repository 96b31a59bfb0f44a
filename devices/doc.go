// Package devices maps raw backup-medium images onto save partitions.
//
// Each medium hides the partition behind its own quirks: internal memory and
// cartridges stripe payload bytes across 16-bit words, while Action Replay
// carts store the whole partition RLE01-compressed at a fixed offset. Open
// recognizes the medium, peels those layers off, and returns a Device whose
// operations all speak plain saves.
package devices

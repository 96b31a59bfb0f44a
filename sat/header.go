package sat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"
	satsave "github.com/sgc-tools/satsave"
)

const (
	// TagSize is the size of the block tag that opens every block of a save.
	TagSize = 4

	// HeaderSize is the size of the start-block header: tag, name, language,
	// comment, timestamp, and data size.
	HeaderSize = TagSize + satsave.MaxSaveName + 1 + satsave.MaxComment + 4 + 4

	// StartBlockTag marks the first block of a save. Continuation blocks
	// carry an all-zero tag; any other value is corruption.
	StartBlockTag uint32 = 0x80000000

	// indexEntrySize is the width of one chain entry.
	indexEntrySize = 2
)

// startBlockHeader is the fixed header stored at the beginning of a save's
// first block. All multi-byte fields are big-endian on the medium.
type startBlockHeader struct {
	Tag       uint32
	Name      [satsave.MaxSaveName]byte
	Language  uint8
	Comment   [satsave.MaxComment]byte
	Timestamp uint32
	DataSize  uint32
}

// readHeader decodes the header at the given logical offset. The raw bytes
// are copied out first so striping never splits a field.
func readHeader(p Partition, offset uint) (startBlockHeader, error) {
	var raw [HeaderSize]byte
	var header startBlockHeader

	if err := p.ReadAt(raw[:], offset); err != nil {
		return header, err
	}
	err := binary.Read(bytes.NewReader(raw[:]), binary.BigEndian, &header)
	if err != nil {
		return header, satsave.ErrCorrupted.Wrap(err)
	}
	return header, nil
}

// writeHeader encodes the header into a scratch buffer and writes it at the
// given logical offset.
func writeHeader(p Partition, offset uint, header startBlockHeader) error {
	var raw [HeaderSize]byte

	writer := bytewriter.New(raw[:])
	if err := binary.Write(writer, binary.BigEndian, header); err != nil {
		return satsave.ErrInvalidArgument.Wrap(err)
	}
	return p.WriteAt(offset, raw[:])
}

func readIndexEntry(p Partition, offset uint) (uint16, error) {
	var raw [indexEntrySize]byte
	if err := p.ReadAt(raw[:], offset); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(raw[:]), nil
}

func writeIndexEntry(p Partition, offset uint, index uint16) error {
	var raw [indexEntrySize]byte
	binary.BigEndian.PutUint16(raw[:], index)
	return p.WriteAt(offset, raw[:])
}

func writeTag(p Partition, offset uint, tag uint32) error {
	var raw [TagSize]byte
	binary.BigEndian.PutUint32(raw[:], tag)
	return p.WriteAt(offset, raw[:])
}

func readTag(p Partition, offset uint) (uint32, error) {
	var raw [TagSize]byte
	if err := p.ReadAt(raw[:], offset); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(raw[:]), nil
}

// metadata projects the header into the caller-facing form, trimming the
// fixed-width fields at their first NUL and synthesizing the filename.
func (h *startBlockHeader) metadata() satsave.SaveMetadata {
	name := trimField(h.Name[:])
	return satsave.SaveMetadata{
		Filename:  name + satsave.FileExtension,
		Name:      name,
		Comment:   trimField(h.Comment[:]),
		Language:  satsave.Language(h.Language),
		Timestamp: satsave.Timestamp(h.Timestamp),
		DataSize:  h.DataSize,
	}
}

func headerForSave(meta satsave.SaveMetadata, name [satsave.MaxSaveName]byte, dataSize uint32) startBlockHeader {
	header := startBlockHeader{
		Tag:       StartBlockTag,
		Name:      name,
		Language:  uint8(meta.Language),
		Timestamp: uint32(meta.Timestamp),
		DataSize:  dataSize,
	}
	copy(header.Comment[:], meta.Comment)
	return header
}

// nameField converts a save name to its fixed-width on-medium form, padded
// with NULs. Lookups compare the full fixed-width field, so a name shorter
// than the field only matches saves padded the same way.
func nameField(name string) ([satsave.MaxSaveName]byte, error) {
	var field [satsave.MaxSaveName]byte
	if name == "" {
		return field, satsave.ErrInvalidArgument.WithMessage("empty save name")
	}
	if len(name) > satsave.MaxSaveName {
		return field, satsave.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("save name %q longer than %d bytes", name, satsave.MaxSaveName))
	}
	copy(field[:], name)
	return field, nil
}

func trimField(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

package devices

import (
	"fmt"

	satsave "github.com/sgc-tools/satsave"
)

// Type identifies a kind of backup medium.
type Type int

const (
	// Internal is the Saturn's built-in battery-backed memory.
	Internal Type = iota
	// Cartridge is a backup RAM cartridge in the cart slot.
	Cartridge
	// ActionReplay is an Action Replay cart holding an RLE01-compressed
	// save partition. Read-only.
	ActionReplay
)

func (t Type) String() string {
	switch t {
	case Internal:
		return "internal"
	case Cartridge:
		return "cartridge"
	case ActionReplay:
		return "action-replay"
	}
	return fmt.Sprintf("unknown device type %d", int(t))
}

// Device is a backup medium holding Saturn saves. Implementations are not
// safe for concurrent use; callers must serialize access to a device.
type Device interface {
	// Name returns the human-readable device name.
	Name() string

	// IsWriteable reports whether write, delete, and format are supported.
	IsWriteable() bool

	// Stat reports the medium's capacity and free space, excluding the two
	// reserved directory blocks.
	Stat() (satsave.Stat, error)

	// List scans for saves and fills saves with their metadata. The count
	// of saves found is returned even when the slice is too small, in which
	// case the error is ErrBufferTooSmall. A nil slice counts only.
	List(saves []satsave.SaveMetadata) (uint, error)

	// Query returns the metadata of the named save.
	Query(name string) (satsave.SaveMetadata, error)

	// Read copies the named save's payload into buf, returning the bytes
	// read. A too-small buf yields ErrBufferTooSmall and the needed size.
	Read(name string, buf []byte) (uint, error)

	// Write stores a save. Pass OverwriteExisting to replace a save with
	// the same name.
	Write(name string, meta satsave.SaveMetadata, data []byte, flags satsave.WriteFlags) error

	// Delete removes the named save.
	Delete(name string) error

	// CheckFormatted returns nil if the medium carries a valid format
	// marker, ErrNotFormatted otherwise.
	CheckFormatted() error

	// Format erases the medium and writes a fresh format marker.
	Format() error
}

// Open validates image as a medium of the given type and returns a device
// for it. The device operates on image in place: writes through the device
// mutate the caller's slice. Media whose image does not look like the
// claimed type fail with ErrDeviceNotPresent or ErrInvalidDevice.
func Open(deviceType Type, image []byte) (Device, error) {
	switch deviceType {
	case Internal:
		return openInternal(image)
	case Cartridge:
		return openCartridge(image)
	case ActionReplay:
		return openActionReplay(image)
	}
	return nil, satsave.ErrInvalidDevice.WithMessage(deviceType.String())
}

package devices

import (
	"fmt"

	"github.com/sgc-tools/satsave/sat"

	satsave "github.com/sgc-tools/satsave"
)

const internalSlug = "internal"

// satDevice is the shared implementation behind every medium: a partition
// plus an engine, with device identity and writability layered on top.
type satDevice struct {
	name      string
	partition sat.Partition
	engine    *sat.Engine
	writeable bool
}

func newSATDevice(name string, p sat.Partition, writeable bool) (*satDevice, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &satDevice{
		name:      name,
		partition: p,
		engine:    sat.NewEngine(),
		writeable: writeable,
	}, nil
}

func (d *satDevice) Name() string      { return d.name }
func (d *satDevice) IsWriteable() bool { return d.writeable }

func (d *satDevice) Stat() (satsave.Stat, error) {
	used, err := d.engine.UsedBlocks(d.partition)
	if err != nil {
		return satsave.Stat{}, err
	}

	blockSize := d.partition.LogicalBlockSize()
	totalBytes := d.partition.LogicalSize() - sat.ReservedBlocks*blockSize
	totalBlocks := totalBytes / blockSize

	// A corrupt medium can claim more used blocks than it has; clamp so the
	// free counts never underflow.
	if used > totalBlocks {
		used = totalBlocks
	}
	freeBlocks := totalBlocks - used

	return satsave.Stat{
		TotalBytes:  totalBytes,
		TotalBlocks: totalBlocks,
		BlockSize:   blockSize,
		FreeBytes:   freeBlocks * blockSize,
		FreeBlocks:  freeBlocks,
		// Every save needs at least one block, so this is the ceiling.
		MaxSaves: freeBlocks,
	}, nil
}

func (d *satDevice) List(saves []satsave.SaveMetadata) (uint, error) {
	return d.engine.List(d.partition, saves)
}

func (d *satDevice) Query(name string) (satsave.SaveMetadata, error) {
	return d.engine.Query(d.partition, name)
}

func (d *satDevice) Read(name string, buf []byte) (uint, error) {
	if err := d.engine.CheckFormatted(d.partition); err != nil {
		return 0, err
	}
	return d.engine.Read(d.partition, name, buf)
}

func (d *satDevice) Write(
	name string,
	meta satsave.SaveMetadata,
	data []byte,
	flags satsave.WriteFlags,
) error {
	if !d.writeable {
		return satsave.ErrNotSupported.WithMessage(d.name + " is read-only")
	}
	if err := d.engine.CheckFormatted(d.partition); err != nil {
		return err
	}
	return d.engine.Write(d.partition, name, meta, data, flags)
}

func (d *satDevice) Delete(name string) error {
	if !d.writeable {
		return satsave.ErrNotSupported.WithMessage(d.name + " is read-only")
	}
	return d.engine.Delete(d.partition, name)
}

func (d *satDevice) CheckFormatted() error {
	return d.engine.CheckFormatted(d.partition)
}

func (d *satDevice) Format() error {
	if !d.writeable {
		return satsave.ErrNotSupported.WithMessage(d.name + " is read-only")
	}
	return d.engine.Format(d.partition)
}

// openInternal interprets image as a dump of the console's internal backup
// memory. Only every other byte of the dump carries data.
func openInternal(image []byte) (Device, error) {
	geometry, err := GeometryBySlug(internalSlug)
	if err != nil {
		return nil, err
	}
	if uint(len(image)) != geometry.ImageSize {
		return nil, satsave.ErrInvalidDevice.WithMessage(
			fmt.Sprintf("internal memory dumps are %d bytes, got %d",
				geometry.ImageSize, len(image)))
	}
	return newSATDevice(geometry.Name, sat.Partition{
		Data:      image,
		BlockSize: geometry.BlockSize,
		Stripe:    geometry.Stripe,
	}, true)
}

// openCartridge interprets image as a raw backup cartridge dump, recognized
// by its size. Like internal memory, cartridges stripe payload bytes across
// 16-bit words.
func openCartridge(image []byte) (Device, error) {
	geometry, ok := GeometryForImageSize(uint(len(image)))
	if !ok {
		return nil, satsave.ErrDeviceNotPresent.WithMessage(
			fmt.Sprintf("no known cartridge has a %d-byte image", len(image)))
	}
	return newSATDevice(geometry.Name, sat.Partition{
		Data:      image,
		BlockSize: geometry.BlockSize,
		Stripe:    geometry.Stripe,
	}, true)
}

// Command satsave manages Sega Saturn save data inside backup-medium image
// files: internal memory dumps, backup cartridge dumps, and Action Replay
// cart dumps.
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/sgc-tools/satsave/devices"

	satsave "github.com/sgc-tools/satsave"
)

func main() {
	app := cli.App{
		Usage: "Manage Sega Saturn save data in backup memory images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "device type: internal, cartridge, or action-replay (default: guess from the image)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the saves on an image",
				Action:    listSaves,
				ArgsUsage: "IMAGE",
			},
			{
				Name:      "stat",
				Usage:     "Show an image's capacity and free space",
				Action:    statDevice,
				ArgsUsage: "IMAGE",
			},
			{
				Name:      "export",
				Usage:     "Copy a save's payload out of an image into a file",
				Action:    exportSave,
				ArgsUsage: "IMAGE SAVE_NAME [OUTPUT_FILE]",
			},
			{
				Name:      "import",
				Usage:     "Store a file as a save on an image",
				Action:    importSave,
				ArgsUsage: "IMAGE SAVE_NAME INPUT_FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "replace an existing save with the same name",
					},
					&cli.StringFlag{
						Name:  "comment",
						Usage: "save comment shown in the BIOS (up to 10 bytes)",
					},
					&cli.StringFlag{
						Name:  "language",
						Value: "english",
						Usage: "BIOS language of the save",
					},
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a save from an image",
				Action:    deleteSave,
				ArgsUsage: "IMAGE SAVE_NAME",
			},
			{
				Name:      "format",
				Usage:     "Erase an image, destroying all saves on it",
				Action:    formatDevice,
				ArgsUsage: "IMAGE",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

// openImage loads the image file named by the first positional argument and
// opens it as a device. The second return value writes the (possibly
// modified) image back to disk.
func openImage(context *cli.Context) (devices.Device, func() error, error) {
	if context.NArg() < 1 {
		return nil, nil, fmt.Errorf("missing image file argument")
	}
	path := context.Args().Get(0)

	image, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	deviceType, err := resolveType(context.String("type"), image)
	if err != nil {
		return nil, nil, err
	}
	device, err := devices.Open(deviceType, image)
	if err != nil {
		return nil, nil, err
	}

	flush := func() error {
		return os.WriteFile(path, image, 0o644)
	}
	return device, flush, nil
}

// resolveType picks the device type from the --type flag, or guesses it from
// the image when the flag is empty: Action Replay carts carry magic bytes,
// internal dumps have a fixed size, and anything else is tried as a
// cartridge.
func resolveType(flag string, image []byte) (devices.Type, error) {
	switch strings.ToLower(flag) {
	case "internal":
		return devices.Internal, nil
	case "cartridge":
		return devices.Cartridge, nil
	case "action-replay", "ar":
		return devices.ActionReplay, nil
	case "":
	default:
		return 0, fmt.Errorf("unknown device type %q", flag)
	}

	if bytes.Contains(image[:min(len(image), 0x100)], []byte("ACTION REPLAY")) {
		return devices.ActionReplay, nil
	}
	if internal, err := devices.GeometryBySlug("internal"); err == nil {
		if uint(len(image)) == internal.ImageSize {
			return devices.Internal, nil
		}
	}
	return devices.Cartridge, nil
}

func listSaves(context *cli.Context) error {
	device, _, err := openImage(context)
	if err != nil {
		return err
	}

	count, err := device.List(nil)
	if err != nil {
		return err
	}
	saves := make([]satsave.SaveMetadata, count)
	if _, err = device.List(saves); err != nil {
		return err
	}

	fmt.Printf("%-15s %-10s %-8s %-19s %s\n",
		"FILENAME", "COMMENT", "LANGUAGE", "MODIFIED", "SIZE")
	for _, save := range saves {
		fmt.Printf("%-15s %-10s %-8s %-19s %d\n",
			save.Filename,
			save.Comment,
			save.Language,
			save.Timestamp.Time().Format("2006-01-02 15:04:05"),
			save.DataSize)
	}
	return nil
}

func statDevice(context *cli.Context) error {
	device, _, err := openImage(context)
	if err != nil {
		return err
	}

	stat, err := device.Stat()
	if err != nil {
		return err
	}
	fmt.Printf("Device:       %s\n", device.Name())
	fmt.Printf("Block size:   %d bytes\n", stat.BlockSize)
	fmt.Printf("Capacity:     %d bytes (%d blocks)\n", stat.TotalBytes, stat.TotalBlocks)
	fmt.Printf("Free:         %d bytes (%d blocks)\n", stat.FreeBytes, stat.FreeBlocks)
	fmt.Printf("Saves (max):  %d\n", stat.MaxSaves)
	return nil
}

func exportSave(context *cli.Context) error {
	device, _, err := openImage(context)
	if err != nil {
		return err
	}
	if context.NArg() < 2 {
		return fmt.Errorf("missing save name argument")
	}
	name := context.Args().Get(1)

	meta, err := device.Query(name)
	if err != nil {
		return err
	}
	buf := make([]byte, meta.DataSize)
	if _, err = device.Read(name, buf); err != nil {
		return err
	}

	outputPath := meta.Filename
	if context.NArg() >= 3 {
		outputPath = context.Args().Get(2)
	}
	if err = os.WriteFile(outputPath, buf, 0o644); err != nil {
		return err
	}
	fmt.Printf("Exported %d bytes to %s\n", len(buf), outputPath)
	return nil
}

func importSave(context *cli.Context) error {
	device, flush, err := openImage(context)
	if err != nil {
		return err
	}
	if context.NArg() < 3 {
		return fmt.Errorf("usage: import IMAGE SAVE_NAME INPUT_FILE")
	}
	name := context.Args().Get(1)

	data, err := os.ReadFile(context.Args().Get(2))
	if err != nil {
		return err
	}
	language, err := parseLanguage(context.String("language"))
	if err != nil {
		return err
	}

	meta := satsave.SaveMetadata{
		Name:      name,
		Comment:   context.String("comment"),
		Language:  language,
		Timestamp: satsave.TimestampNow(),
	}
	var flags satsave.WriteFlags
	if context.Bool("overwrite") {
		flags |= satsave.OverwriteExisting
	}

	if err = device.Write(name, meta, data, flags); err != nil {
		return err
	}
	if err = flush(); err != nil {
		return err
	}
	fmt.Printf("Imported %d bytes as %s\n", len(data), name+satsave.FileExtension)
	return nil
}

func deleteSave(context *cli.Context) error {
	device, flush, err := openImage(context)
	if err != nil {
		return err
	}
	if context.NArg() < 2 {
		return fmt.Errorf("missing save name argument")
	}
	name := context.Args().Get(1)

	if err = device.Delete(name); err != nil {
		return err
	}
	if err = flush(); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", name)
	return nil
}

func formatDevice(context *cli.Context) error {
	device, flush, err := openImage(context)
	if err != nil {
		return err
	}
	if err = device.Format(); err != nil {
		return err
	}
	if err = flush(); err != nil {
		return err
	}
	fmt.Printf("Formatted %s\n", device.Name())
	return nil
}

func parseLanguage(name string) (satsave.Language, error) {
	for l := satsave.LanguageJapanese; l <= satsave.LanguageItalian; l++ {
		if strings.EqualFold(l.String(), name) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown language %q", name)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

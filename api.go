// Package satsave defines the types shared between the SAT save engine and
// the per-medium device drivers: save metadata, medium statistics, write
// flags, and the error taxonomy every operation reports through.
package satsave

// Field widths of the on-medium save header. Names and comments are stored as
// fixed-width byte arrays that are not necessarily NUL terminated.
const (
	MaxSaveName = 11
	MaxComment  = 10
	MaxFilename = 32
)

// FileExtension is appended to a save's name to synthesize its filename as
// seen on CD file systems and ODEs.
const FileExtension = ".BUP"

// Language identifies the BIOS language a save was created under.
type Language uint8

const (
	LanguageJapanese Language = iota
	LanguageEnglish
	LanguageFrench
	LanguageGerman
	LanguageSpanish
	LanguageItalian
)

func (l Language) String() string {
	switch l {
	case LanguageJapanese:
		return "Japanese"
	case LanguageEnglish:
		return "English"
	case LanguageFrench:
		return "French"
	case LanguageGerman:
		return "German"
	case LanguageSpanish:
		return "Spanish"
	case LanguageItalian:
		return "Italian"
	}
	return "Unknown"
}

// IsValid reports whether l is one of the six languages the BIOS understands.
func (l Language) IsValid() bool {
	return l <= LanguageItalian
}

// SaveMetadata is a read-only projection of a save's start-block header. It
// has no lifecycle beyond the call that produced it.
type SaveMetadata struct {
	// Filename is the save name with the .BUP extension appended.
	Filename string
	// Name is the save name as seen in the BIOS, at most MaxSaveName bytes.
	Name string
	// Comment is the save comment as seen in the BIOS, at most MaxComment
	// bytes.
	Comment string
	// Language of the save.
	Language Language
	// Timestamp is the save's modification time.
	Timestamp Timestamp
	// DataSize counts only the save's payload bytes, never metadata or
	// index-chain bytes.
	DataSize uint32
}

// Stat reports the total and available size of a backup medium. The two
// reserved directory blocks at the start of every partition are excluded
// from the totals.
type Stat struct {
	TotalBytes  uint
	TotalBlocks uint
	BlockSize   uint
	FreeBytes   uint
	FreeBlocks  uint
	// MaxSaves is the largest number of additional saves the medium could
	// possibly hold (one block minimum per save).
	MaxSaves uint
}

// WriteFlags adjust the behavior of write operations.
type WriteFlags uint

const (
	// OverwriteExisting allows a write to replace a save with the same name
	// instead of failing with ErrExists.
	OverwriteExisting WriteFlags = 1 << iota
)

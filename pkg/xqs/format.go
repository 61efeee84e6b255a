// Package xqs implements the XQS symbol container: a compact binary table of
// symbol names (and optionally their source modules) grouped per segment.
//
// Little endian order is used throughout and every offset is absolute.
//
// Layout of the file (single-pass write):
//
// [Header]   File header. Points at the module table and the first segment.
//
// [Modules]  Optional NUL-terminated module names, padded to 16 bytes.
//
// [Segment]  Repeated for every segment carrying symbols:
//            segment header, entry array padded to 16 bytes, NUL-terminated
//            names padded to 16 bytes unless this is the last segment.
//            Each segment header points at the next one; the last has 0.
package xqs

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	FileHeaderSize    = 32
	SegmentHeaderSize = 32

	// ShortEntrySize entries carry the address and the name.
	ShortEntrySize = 10
	// LongEntrySize entries add the module name reference.
	LongEntrySize = 16

	FormatV1 = 1

	// Compression bits are reserved; files setting them are rejected.
	FlagZip        = 0x1
	FlagZipModules = 0x2

	// MaxNameLength is the longest name whose stored length (with the
	// terminating NUL) fits an entry's 16-bit length field.
	MaxNameLength = 65534

	alignment = 16
)

var (
	fileMagic    = [4]byte{'x', 'q', 's', 'f'}
	segmentMagic = [4]byte{'x', 'q', 's', 's'}
)

var (
	ErrInvalidMagic   = &IntegrityError{fmt.Errorf("invalid magic number")}
	ErrInvalidOffset  = &IntegrityError{fmt.Errorf("invalid offset")}
	ErrInvalidSize    = &IntegrityError{fmt.Errorf("invalid size")}
	ErrLayoutMismatch = &IntegrityError{fmt.Errorf("layout mismatch")}
	ErrUnsupported    = &IntegrityError{fmt.Errorf("unsupported format")}
	ErrNameTooLong    = &IntegrityError{fmt.Errorf("name too long")}
)

type IntegrityError struct{ err error }

func (e *IntegrityError) Error() string {
	return e.err.Error()
}

// padding returns the number of bytes needed to align n to 16.
func padding(n uint32) uint32 {
	return (alignment - n%alignment) % alignment
}

var zeros [alignment]byte

type FileHeader struct {
	Magic        [4]byte
	Size         uint16
	Flags        uint16
	Version      uint16
	FirstSegment uint32
	ModuleTable  uint32
}

func (h *FileHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, FileHeaderSize)
	copy(b[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(b[4:6], h.Size)
	binary.LittleEndian.PutUint16(b[6:8], h.Flags)
	binary.LittleEndian.PutUint16(b[8:10], h.Version)
	// b[10:12] unused
	binary.LittleEndian.PutUint32(b[12:16], h.FirstSegment)
	binary.LittleEndian.PutUint32(b[16:20], h.ModuleTable)
	// b[20:32] reserved
	return b, nil
}

func (h *FileHeader) UnmarshalBinary(b []byte) error {
	if len(b) < FileHeaderSize {
		return ErrInvalidSize
	}
	if copy(h.Magic[:], b[0:4]); !bytes.Equal(h.Magic[:], fileMagic[:]) {
		return ErrInvalidMagic
	}
	if h.Size = binary.LittleEndian.Uint16(b[4:6]); h.Size != FileHeaderSize {
		return ErrInvalidSize
	}
	if h.Flags = binary.LittleEndian.Uint16(b[6:8]); h.Flags&(FlagZip|FlagZipModules) != 0 {
		return ErrUnsupported
	}
	if h.Version = binary.LittleEndian.Uint16(b[8:10]); h.Version != FormatV1 {
		return ErrUnsupported
	}
	h.FirstSegment = binary.LittleEndian.Uint32(b[12:16])
	h.ModuleTable = binary.LittleEndian.Uint32(b[16:20])
	return nil
}

type SegmentHeader struct {
	Magic       [4]byte
	Size        uint16
	Flags       uint16
	EntrySize   uint16
	Segment     uint16
	SymbolCount uint32
	SymbolArray uint32
	Next        uint32
}

func (h *SegmentHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, SegmentHeaderSize)
	copy(b[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(b[4:6], h.Size)
	binary.LittleEndian.PutUint16(b[6:8], h.Flags)
	binary.LittleEndian.PutUint16(b[8:10], h.EntrySize)
	binary.LittleEndian.PutUint16(b[10:12], h.Segment)
	binary.LittleEndian.PutUint32(b[12:16], h.SymbolCount)
	binary.LittleEndian.PutUint32(b[16:20], h.SymbolArray)
	binary.LittleEndian.PutUint32(b[20:24], h.Next)
	// b[24:32] reserved
	return b, nil
}

func (h *SegmentHeader) UnmarshalBinary(b []byte) error {
	if len(b) < SegmentHeaderSize {
		return ErrInvalidSize
	}
	if copy(h.Magic[:], b[0:4]); !bytes.Equal(h.Magic[:], segmentMagic[:]) {
		return ErrInvalidMagic
	}
	h.Size = binary.LittleEndian.Uint16(b[4:6])
	if h.Flags = binary.LittleEndian.Uint16(b[6:8]); h.Flags&(FlagZip|FlagZipModules) != 0 {
		return ErrUnsupported
	}
	if h.EntrySize = binary.LittleEndian.Uint16(b[8:10]); h.EntrySize < ShortEntrySize {
		return ErrInvalidSize
	}
	h.Segment = binary.LittleEndian.Uint16(b[10:12])
	h.SymbolCount = binary.LittleEndian.Uint32(b[12:16])
	h.SymbolArray = binary.LittleEndian.Uint32(b[16:20])
	h.Next = binary.LittleEndian.Uint32(b[20:24])
	return nil
}

// Entry is one symbol of a segment. Lengths include the terminating NUL;
// zero module fields mean no module.
type Entry struct {
	Address      uint32
	NameOffset   uint32
	NameLength   uint16
	ModuleLength uint16
	ModuleOffset uint32
}

func (e *Entry) marshal(b []byte, size int) {
	binary.LittleEndian.PutUint32(b[0:4], e.Address)
	binary.LittleEndian.PutUint32(b[4:8], e.NameOffset)
	binary.LittleEndian.PutUint16(b[8:10], e.NameLength)
	if size >= LongEntrySize {
		binary.LittleEndian.PutUint16(b[10:12], e.ModuleLength)
		binary.LittleEndian.PutUint32(b[12:16], e.ModuleOffset)
	}
}

func (e *Entry) unmarshal(b []byte, size int) {
	e.Address = binary.LittleEndian.Uint32(b[0:4])
	e.NameOffset = binary.LittleEndian.Uint32(b[4:8])
	e.NameLength = binary.LittleEndian.Uint16(b[8:10])
	if size >= LongEntrySize {
		e.ModuleLength = binary.LittleEndian.Uint16(b[10:12])
		e.ModuleOffset = binary.LittleEndian.Uint32(b[12:16])
	}
}

const (
	// NoModule marks a symbol without module association.
	NoModule = -1
	// UnknownModule marks a symbol whose stored module reference is invalid.
	UnknownModule = -2
)

// Symbol is a symbol in address order.
type Symbol struct {
	Segment uint16
	Offset  uint32
	Name    string
	// Module indexes Table.Modules, or is NoModule or UnknownModule.
	Module int
}

// Table is the content of a container: symbols in address order grouped by
// segment, and the module names they refer to. With ModuleInfo unset the
// module names are kept for listings but not written.
type Table struct {
	Modules    []string
	Symbols    []Symbol
	ModuleInfo bool
}

func (t *Table) entrySize() int {
	if t.ModuleInfo {
		return LongEntrySize
	}
	return ShortEntrySize
}

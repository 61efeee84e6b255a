package xqs

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const (
	invalidName   = "[error]"
	unknownModule = "[unknown]"
)

// Segment is a decoded segment header with its position in the file.
type Segment struct {
	SegmentHeader
	Offset uint32
	// Bytes is the size of the block up to the next one or the end of file.
	Bytes uint32
}

// File is a decoded container.
type File struct {
	Header   FileHeader
	Segments []Segment
	Table    Table
	Size     int64
}

// ModuleCount is the number of module names stored in the module table up
// to the last one referenced by a symbol.
func (f *File) ModuleCount() int { return len(f.Table.Modules) }

// Read reads and decodes the container of the given size from r.
func Read(r io.ReaderAt, size int64) (*File, error) {
	buf := make([]byte, size)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == size) {
		return nil, errors.Wrap(err, "reading container")
	}
	return Decode(buf)
}

type rawSymbol struct {
	Symbol
	moduleOffset uint32
	moduleLength uint16
}

// Decode validates and decodes a container held in memory.
func Decode(b []byte) (*File, error) {
	f := &File{Size: int64(len(b))}
	if err := f.Header.UnmarshalBinary(b); err != nil {
		return nil, errors.Wrap(err, "file header")
	}
	size := uint64(len(b))
	if uint64(f.Header.ModuleTable) >= size && f.Header.ModuleTable != 0 {
		return nil, errors.Wrapf(ErrInvalidOffset, "module table at %d", f.Header.ModuleTable)
	}
	f.Table.ModuleInfo = f.Header.ModuleTable != 0

	var (
		symbols []rawSymbol
		maxMod  uint32
		prev    uint32
	)
	for off := f.Header.FirstSegment; off != 0; {
		// Blocks only move forward, which also rules out cycles.
		if off <= prev || uint64(off)+SegmentHeaderSize > size {
			return nil, errors.Wrapf(ErrInvalidOffset, "segment at %d", off)
		}
		var s Segment
		if err := s.UnmarshalBinary(b[off:]); err != nil {
			return nil, errors.Wrapf(err, "segment at %d", off)
		}
		s.Offset = off
		entrySize := uint64(s.EntrySize)
		arrayEnd := uint64(s.SymbolArray) + uint64(s.SymbolCount)*entrySize
		if s.SymbolArray < off+SegmentHeaderSize || arrayEnd > size {
			return nil, errors.Wrapf(ErrInvalidOffset, "symbol array of segment at %d", off)
		}

		var e Entry
		for i := uint64(0); i < uint64(s.SymbolCount); i++ {
			p := uint64(s.SymbolArray) + i*entrySize
			e.unmarshal(b[p:p+entrySize], int(entrySize))
			sym := rawSymbol{Symbol: Symbol{
				Segment: s.Segment,
				Offset:  e.Address,
				Name:    cstring(b, e.NameOffset, e.NameLength, invalidName),
				Module:  NoModule,
			}}
			if entrySize >= LongEntrySize {
				sym.moduleOffset, sym.moduleLength = e.ModuleOffset, e.ModuleLength
				maxMod = max(maxMod, e.ModuleOffset)
			}
			symbols = append(symbols, sym)
		}

		if s.Next != 0 {
			s.Bytes = s.Next - off
		} else {
			s.Bytes = uint32(size) - off
		}
		f.Segments = append(f.Segments, s)
		prev, off = off, s.Next
	}

	index := f.readModules(b, maxMod)
	f.Table.Symbols = make([]Symbol, len(symbols))
	for i, s := range symbols {
		if s.moduleOffset != 0 {
			s.Module = UnknownModule
			if m, ok := index[s.moduleOffset]; ok && s.moduleLength != 0 {
				s.Module = m
			}
		}
		f.Table.Symbols[i] = s.Symbol
	}
	return f, nil
}

// readModules collects the module names stored from the module table up to
// maxMod and returns their indices by offset.
func (f *File) readModules(b []byte, maxMod uint32) map[uint32]int {
	index := make(map[uint32]int)
	if f.Header.ModuleTable == 0 || maxMod == 0 {
		return index
	}
	for off := f.Header.ModuleTable; off <= maxMod && int(off) < len(b) && b[off] != 0; {
		end := bytes.IndexByte(b[off:], 0)
		if end < 0 {
			break
		}
		index[off] = len(f.Table.Modules)
		f.Table.Modules = append(f.Table.Modules, string(b[off:off+uint32(end)]))
		off += uint32(end) + 1
	}
	return index
}

// cstring returns the NUL-terminated string at off, or fallback when the
// reference is empty or out of bounds.
func cstring(b []byte, off uint32, length uint16, fallback string) string {
	if off == 0 || length == 0 || uint64(off)+uint64(length) > uint64(len(b)) {
		return fallback
	}
	s := b[off : off+uint32(length)]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

package xqs

import (
	"io"

	"github.com/pkg/errors"
)

type writerOffset struct {
	io.Writer
	offset int64
	err    error
}

func withWriterOffset(w io.Writer, base int64) *writerOffset {
	return &writerOffset{Writer: w, offset: base}
}

func (w *writerOffset) write(p []byte) {
	if w.err == nil {
		n, err := w.Writer.Write(p)
		w.offset += int64(n)
		w.err = err
	}
}

// expect fails if the stream is not at the precomputed section boundary.
func (w *writerOffset) expect(offset uint32, section string) error {
	if w.err != nil {
		return errors.Wrapf(w.err, "writing %s", section)
	}
	if w.offset != int64(offset) {
		return errors.Wrapf(ErrLayoutMismatch, "%s: expected offset %d, actual %d", section, offset, w.offset)
	}
	return nil
}

// block is a run of symbols sharing a segment.
type block struct {
	header  SegmentHeader
	symbols []Symbol
	offset  uint32 // of the segment header
	names   uint32 // of the first name
	end     uint32 // after the names and their padding
}

// layout holds every offset of the file, computed before anything is written.
type layout struct {
	header  FileHeader
	modules []uint32 // module name offsets
	blocks  []block
	size    uint32
}

func newLayout(t *Table) (*layout, error) {
	l := &layout{
		header: FileHeader{
			Magic:   fileMagic,
			Size:    FileHeaderSize,
			Version: FormatV1,
		},
	}
	pos := uint32(FileHeaderSize)
	if t.ModuleInfo {
		l.header.ModuleTable = pos
		l.modules = make([]uint32, len(t.Modules))
		for i, m := range t.Modules {
			if len(m) > MaxNameLength {
				return nil, errors.Wrapf(ErrNameTooLong, "module %q", m[:32])
			}
			l.modules[i] = pos
			pos += uint32(len(m)) + 1
		}
		pos += padding(pos)
	}

	entrySize := t.entrySize()
	for i := 0; i < len(t.Symbols); {
		j := i + 1
		for j < len(t.Symbols) && t.Symbols[j].Segment == t.Symbols[i].Segment {
			j++
		}
		b := block{symbols: t.Symbols[i:j], offset: pos}
		var names uint32
		for _, s := range b.symbols {
			if len(s.Name) > MaxNameLength {
				return nil, errors.Wrapf(ErrNameTooLong, "symbol %q", s.Name[:32])
			}
			if s.Module >= len(t.Modules) {
				return nil, errors.Errorf("symbol %q refers to module %d of %d", s.Name, s.Module, len(t.Modules))
			}
			names += uint32(len(s.Name)) + 1
		}
		entries := uint32(len(b.symbols) * entrySize)
		b.header = SegmentHeader{
			Magic:       segmentMagic,
			Size:        SegmentHeaderSize,
			EntrySize:   uint16(entrySize),
			Segment:     t.Symbols[i].Segment,
			SymbolCount: uint32(len(b.symbols)),
			SymbolArray: pos + SegmentHeaderSize,
		}
		b.names = b.header.SymbolArray + entries + padding(entries)
		b.end = b.names + names
		if j < len(t.Symbols) {
			b.end += padding(names)
			b.header.Next = b.end
		}
		pos = b.end
		l.blocks = append(l.blocks, b)
		i = j
	}
	if len(l.blocks) > 0 {
		l.header.FirstSegment = l.blocks[0].offset
	}
	l.size = pos
	return l, nil
}

// Write emits the container for t and returns the number of bytes written.
// Every section boundary is checked against the precomputed layout.
func Write(w io.Writer, t *Table) (int64, error) {
	l, err := newLayout(t)
	if err != nil {
		return 0, err
	}
	ww := withWriterOffset(w, 0)

	b, _ := l.header.MarshalBinary()
	ww.write(b)
	if err = ww.expect(FileHeaderSize, "file header"); err != nil {
		return ww.offset, err
	}

	if t.ModuleInfo {
		var end uint32 = FileHeaderSize
		for _, m := range t.Modules {
			ww.write([]byte(m))
			ww.write(zeros[:1])
			end += uint32(len(m)) + 1
		}
		ww.write(zeros[:padding(end)])
		if len(l.blocks) > 0 {
			end = l.header.FirstSegment
		} else {
			end = l.size
		}
		if err = ww.expect(end, "module table"); err != nil {
			return ww.offset, err
		}
	}

	entrySize := t.entrySize()
	entry := make([]byte, entrySize)
	for _, blk := range l.blocks {
		if err = ww.expect(blk.offset, "segment header"); err != nil {
			return ww.offset, err
		}
		b, _ = blk.header.MarshalBinary()
		ww.write(b)

		pos := blk.names
		for _, s := range blk.symbols {
			e := Entry{
				Address:    s.Offset,
				NameOffset: pos,
				NameLength: uint16(len(s.Name) + 1),
			}
			if t.ModuleInfo && s.Module >= 0 {
				e.ModuleLength = uint16(len(t.Modules[s.Module]) + 1)
				e.ModuleOffset = l.modules[s.Module]
			}
			e.marshal(entry, entrySize)
			ww.write(entry)
			pos += uint32(e.NameLength)
		}
		entries := uint32(len(blk.symbols) * entrySize)
		ww.write(zeros[:padding(entries)])
		if err = ww.expect(blk.names, "symbol entries"); err != nil {
			return ww.offset, err
		}

		for _, s := range blk.symbols {
			ww.write([]byte(s.Name))
			ww.write(zeros[:1])
		}
		if blk.header.Next != 0 {
			ww.write(zeros[:padding(pos-blk.names)])
		}
		if err = ww.expect(blk.end, "symbol names"); err != nil {
			return ww.offset, err
		}
	}
	return ww.offset, ww.err
}

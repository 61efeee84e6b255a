package mapfile

import (
	"strings"
)

const watcomModule = "Module:"

// parseWatcom reads the memory map. Symbols are attached to the module line
// preceding them, so no owner assignment happens during linearization.
func (s *Session) parseWatcom() error {
	if s.lines.seek(watcomMemoryMapHeader) == nil {
		return s.lineError(ErrMalformedHeader, "memory map section not found")
	}
	first := s.store.Len()
	if err := s.parseWatcomMemoryMap(); err != nil {
		return err
	}
	if s.store.Len() == first {
		return s.lineError(ErrMalformedHeader, "memory map has no entries")
	}
	return nil
}

func (s *Session) parseWatcomMemoryMap() error {
	var (
		blankOK = true
		module  = NoRecord
	)
	for {
		raw, ok := s.lines.next()
		if !ok {
			return nil
		}
		fields := strings.Fields(raw)
		// "=======" underlines the column header.
		if len(fields) == 0 || strings.HasPrefix(fields[0], "=") {
			if !blankOK {
				return nil
			}
			continue
		}
		blankOK = false

		if fields[0] == watcomModule {
			line := strings.TrimLeft(raw, whitespace)
			id, err := s.add(Record{
				Flags: FlagModule | FlagUsed,
				Text:  modulePath(line[len(watcomModule):]),
				Owner: NoRecord,
			})
			if err != nil {
				return err
			}
			module = id
			s.moduleCount++
			continue
		}

		seg, rest := parseHex(fields[0])
		if seg > 255 || !strings.HasPrefix(rest, ":") {
			s.malformed("invalid segment address %q", fields[0])
			continue
		}
		// The offset column may carry a trailing reference marker such as '*' or '+'.
		offText := rest[1:]
		if len(offText) > 8 {
			offText = offText[:8]
		}
		off, _ := parseHex(offText)
		if seg == 0 && off == 0 {
			continue
		}
		if module != NoRecord {
			// A module starts at its first symbol.
			if m := s.store.Get(module); m.Segment == 0 && m.Offset == 0 {
				m.Segment, m.Offset = uint8(seg), uint32(off)
			}
		}
		if len(fields) < 2 {
			s.malformed("symbol name missing at %s", fields[0])
			continue
		}
		if err := s.addSymbol(uint8(seg), uint32(off), fields[1], module, true); err != nil {
			return err
		}
	}
}

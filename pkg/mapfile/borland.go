package mapfile

import (
	"strings"

	"github.com/grafana/mapxqs/pkg/demangle"
)

// borlandFlagsWidth is the width of the column between a public's address
// and its name.
const borlandFlagsWidth = 6

func (s *Session) parseBorland() error {
	if s.dialect == DialectBorlandDetailed {
		if err := s.parseBorlandSegments(); err != nil {
			return err
		}
		s.moduleCount = s.store.Len()
		if s.lines.seek(publicsByNameHeader) == nil {
			return s.lineError(ErrMalformedHeader, "publics by name section not found")
		}
	}
	if err := s.parseBorlandPublics(); err != nil {
		return err
	}
	if s.moduleCount > 0 {
		s.stats.DuplicateModules += DedupModules(s.store)
	}
	return nil
}

// parseBorlandSegments reads "SSSS:OOOOOOOO LEN C=.. S=.. G=.. M=path ..."
// entries of the detailed segment map as modules.
func (s *Session) parseBorlandSegments() error {
	blankOK := true
	for {
		raw, ok := s.lines.next()
		if !ok {
			return nil
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			if !blankOK {
				return nil
			}
			blankOK = false
			continue
		}
		blankOK = false

		seg, off, rest, ok := s.parseAddress(line)
		if !ok || seg == 0 && off == 0 {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			s.malformed("segment length missing %q", line)
			continue
		}
		if length, _ := parseHex(fields[0]); length == 0 {
			continue
		}
		if len(fields) < 5 || !strings.HasPrefix(fields[4], "M=") {
			s.malformed("module field missing %q", line)
			continue
		}
		name := strings.TrimSpace(baseName(fields[4][len("M="):]))
		if name == "" {
			name = unknownModule
		}
		if _, err := s.add(Record{
			Flags:   FlagModule,
			Segment: seg,
			Offset:  off,
			Text:    name,
			Owner:   NoRecord,
		}); err != nil {
			return err
		}
	}
}

// parseBorlandPublics reads publics whose names are already demangled and
// carry their argument lists.
func (s *Session) parseBorlandPublics() error {
	blankOK := true
	for {
		raw, ok := s.lines.next()
		if !ok {
			return nil
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			if !blankOK {
				return nil
			}
			blankOK = false
			continue
		}
		blankOK = false

		seg, off, rest, ok := s.parseAddress(line)
		if !ok || seg == 0 && off == 0 {
			continue
		}
		if len(rest) > borlandFlagsWidth {
			rest = rest[borlandFlagsWidth:]
		}
		name := demangle.TrimSignature(strings.TrimLeft(rest, whitespace))
		if err := s.addSymbol(seg, off, name, NoRecord, false); err != nil {
			return err
		}
	}
}

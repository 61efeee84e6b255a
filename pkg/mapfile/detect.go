package mapfile

import (
	"strings"

	"github.com/grafana/mapxqs/pkg/demangle"
)

// detect races the module table against the Watcom segment table, then lets
// the first line after the IBM module entries pick the dialect.
func (s *Session) detect() error {
	switch s.lines.seek(modulesHeader, watcomSegmentsHeader) {
	case watcomSegmentsHeader:
		s.dialect = DialectWatcom
		return s.parseWatcom()
	case modulesHeader:
	default:
		return s.lineError(ErrUnidentifiedFormat, "no module or segment table found")
	}

	line, err := s.parseModules()
	if err != nil {
		return err
	}
	s.moduleCount = s.store.Len()

	switch {
	case groupsHeader.match(line):
		s.dialect = DialectIBM
		return s.parseIBM()
	case s.moduleCount > 0:
	case publicsByNameHeader.match(line):
		s.dialect = DialectBorland
		return s.parseBorland()
	case borlandSegmentsHeader.match(line):
		s.dialect = DialectBorlandDetailed
		return s.parseBorland()
	case publicsByValueHeader.match(line):
		if err := s.parsePublics(); err != nil {
			return err
		}
		s.dialect = DialectSynthetic
		return nil
	}
	return s.lineError(ErrUnidentifiedFormat, "unexpected section %q", line)
}

const atOffset = "at offset "

// parseModules reads the IBM module table: segment lines set the base
// address and "at offset" lines add modules relative to it. It returns the
// first line that is neither.
func (s *Session) parseModules() (string, error) {
	var (
		seg  uint8
		base uint32
	)
	for {
		raw, ok := s.lines.next()
		if !ok {
			return "", s.lineError(ErrUnidentifiedFormat, "end of input in module table")
		}
		line := strings.TrimLeft(raw, whitespace)
		if line == "" {
			continue
		}
		if isSegmentLine(line) {
			var err error
			if seg, base, err = s.parseSegmentLine(line); err != nil {
				return "", err
			}
			continue
		}
		if strings.HasPrefix(line, atOffset) {
			if err := s.addIBMModule(line[len(atOffset):], seg, base); err != nil {
				return "", err
			}
			continue
		}
		return line, nil
	}
}

// isSegmentLine checks the column shape "SSSS:OOOOOOOO LLLLLLLLLH".
func isSegmentLine(line string) bool {
	return len(line) > 23 && line[4] == ':' && line[13] == ' ' && line[23] == 'H'
}

func (s *Session) parseSegmentLine(line string) (uint8, uint32, error) {
	seg, rest := parseHex(line)
	if seg == 0 || seg > 255 || !strings.HasPrefix(rest, ":") {
		return 0, 0, s.lineError(ErrMalformedHeader, "invalid segment line %q", line)
	}
	off, _ := parseHex(rest[1:])
	return uint8(seg), uint32(off), nil
}

func (s *Session) addIBMModule(data string, seg uint8, base uint32) error {
	off, rest := parseHex(data)
	if !strings.HasPrefix(rest, " ") {
		s.malformed("invalid module offset %q", data)
		return nil
	}
	_, err := s.add(Record{
		Flags:   FlagModule,
		Segment: seg,
		Offset:  base + uint32(off),
		Text:    modulePath(rest),
		Owner:   NoRecord,
	})
	return err
}

// parseIBM reads Publics by Name and, for large listings, Publics by Value
// as well, dropping the symbols both sections list.
func (s *Session) parseIBM() error {
	if s.lines.seek(publicsByNameHeader) == nil {
		return s.lineError(ErrMalformedHeader, "publics by name section not found")
	}
	first := s.store.Len()
	if err := s.parsePublics(); err != nil {
		return err
	}
	if s.store.Len()-first > s.twoPassThreshold {
		if !s.seekAnywhere(publicsByValueHeader) {
			return s.lineError(ErrMalformedHeader, "publics by value section not found")
		}
		if err := s.parsePublics(); err != nil {
			return err
		}
		s.stats.TwoPass = true
		s.stats.DuplicateSymbols += DedupSymbols(s.store, first)
	}
	if s.moduleCount > 0 {
		s.stats.DuplicateModules += DedupModules(s.store)
	}
	return nil
}

// seekAnywhere looks for h after the current line, then from the start.
func (s *Session) seekAnywhere(h *header) bool {
	if s.lines.seek(h) != nil {
		return true
	}
	s.lines.reset(linePosition{})
	return s.lines.seek(h) != nil
}

// parsePublics reads "seg:off name [flags]" lines until the section ends.
func (s *Session) parsePublics() error {
	blankOK := true
	for {
		raw, ok := s.lines.next()
		if !ok {
			return nil
		}
		line := strings.TrimLeft(raw, whitespace)
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
		if len(fields) == 2 && len(fields[0]) == 3 {
			fields = fields[1:]
		}
		if len(fields) != 1 {
			s.malformed("unexpected public entry %q", line)
			continue
		}
		if err := s.addSymbol(seg, off, fields[0], NoRecord, true); err != nil {
			return err
		}
	}
}

// parseAddress splits "SSSS:OOOOOOOO rest".
func (s *Session) parseAddress(line string) (uint8, uint32, string, bool) {
	seg, rest := parseHex(line)
	if seg > 255 || !strings.HasPrefix(rest, ":") {
		s.malformed("invalid segment address %q", line)
		return 0, 0, "", false
	}
	off, rest := parseHex(rest[1:])
	return uint8(seg), uint32(off), rest, true
}

func (s *Session) addSymbol(seg uint8, off uint32, raw string, owner RecordID, decode bool) error {
	name, c := raw, demangle.Category(0)
	if decode {
		name, c = s.demangler.Demangle(raw)
	}
	text := strings.TrimSpace(name + c.Suffix())
	if text == "" {
		s.malformed("empty symbol name")
		return nil
	}
	_, err := s.add(Record{
		Flags:   FlagSymbol | Flags(c),
		Segment: seg,
		Offset:  off,
		Text:    text,
		Owner:   owner,
	})
	return err
}

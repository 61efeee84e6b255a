// Package mapfile reads linker map listings into a unified record model.
//
// Four listing shapes are recognised: IBM (module table, groups, publics by
// name and by value), Watcom (memory map with inline "Module:" lines),
// Borland (publics by name, optionally preceded by a detailed segment map)
// and a synthetic shape that carries only a Publics by Value section.
//
// A Session parses one listing, deduplicates its records and produces the
// address-ordered linearization consumed by the container emitter.
package mapfile

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"

	"github.com/grafana/mapxqs/pkg/demangle"
)

// Dialect is the detected listing shape.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectIBM
	DialectWatcom
	DialectBorland
	DialectBorlandDetailed
	DialectSynthetic
)

func (d Dialect) String() string {
	switch d {
	case DialectIBM:
		return "ibm"
	case DialectWatcom:
		return "watcom"
	case DialectBorland:
		return "borland"
	case DialectBorlandDetailed:
		return "borland-detailed"
	case DialectSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// Stats counts what a Session saw.
type Stats struct {
	Lines            int
	Modules          int
	Symbols          int
	MalformedLines   int
	DuplicateModules int
	DuplicateSymbols int
	TwoPass          bool
}

// Session holds the state of one build: the record store, the detected
// dialect and the module count. It is not safe for concurrent use.
type Session struct {
	logger           log.Logger
	demangler        demangle.Demangler
	twoPassThreshold int

	store       *Store
	lines       *lineReader
	dialect     Dialect
	moduleCount int
	stats       Stats
	warnings    *multierror.Error
}

func NewSession(opts ...Option) *Session {
	o := options{
		logger:           log.NewNopLogger(),
		demangler:        demangle.None(),
		twoPassThreshold: DefaultTwoPassThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{
		logger:           o.logger,
		demangler:        o.demangler,
		twoPassThreshold: o.twoPassThreshold,
		store:            NewStore(o.maxRecords),
	}
}

func (s *Session) Store() *Store    { return s.store }
func (s *Session) Dialect() Dialect { return s.dialect }
func (s *Session) ModuleCount() int { return s.moduleCount }
func (s *Session) Stats() Stats     { return s.stats }

// Warnings returns the skipped malformed lines as a multierror, or nil.
func (s *Session) Warnings() error {
	return s.warnings.ErrorOrNil()
}

// Parse detects the dialect of the listing and fills the record store.
// Module and symbol deduplication run as part of parsing.
func (s *Session) Parse(data []byte) error {
	if s.lines != nil {
		return fmt.Errorf("mapfile: session already parsed a listing")
	}
	s.lines = newLineReader(data)
	defer func() {
		s.stats.Lines = s.lines.n
	}()
	return s.detect()
}

// Linearize returns the non-duplicate records in address order and, unless
// the dialect attaches owners while parsing, assigns every symbol to the
// module preceding it.
func (s *Session) Linearize() []RecordID {
	attach := s.dialect != DialectWatcom && s.moduleCount > 0
	return Linearize(s.store, attach)
}

func (s *Session) add(r Record) (RecordID, error) {
	id, err := s.store.Add(r)
	if err != nil {
		return id, s.lineError(ErrAllocation, "%d records stored", s.store.Len())
	}
	switch {
	case r.IsModule():
		s.stats.Modules++
	case r.IsSymbol():
		s.stats.Symbols++
	}
	return id, nil
}

func (s *Session) lineError(sentinel error, format string, args ...interface{}) error {
	return &LineError{Line: s.lines.n, Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}

// malformed records a skipped line.
func (s *Session) malformed(format string, args ...interface{}) {
	err := s.lineError(ErrMalformedLine, format, args...)
	level.Warn(s.logger).Log("msg", "skipping line", "line", s.lines.n, "err", err)
	s.stats.MalformedLines++
	s.warnings = multierror.Append(s.warnings, err)
}

package mapfile

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/grafana/mapxqs/pkg/demangle"
)

const ibmListing = `
 Start         Length     Name                   Class
 0001:00000000 000001000H CODE32                 CODE
   at offset 00000000 00000100H bytes from (c:\src\FOO.OBJ)
   at offset 00000100 00000100H bytes from (c:\src\BAR.OBJ)
 0002:00000000 000000200H DATA32                 DATA
   at offset 00000000 00000010H bytes from (c:\src\FOO.OBJ)

 Origin   Group

  Address         Publics by Name

 0001:00000010       main
 0001:00000110  Imp  _ZN3Foo3barEi
 0002:00000004       _ZTV4Base
 0000:00000000       nothing

  Address         Publics by Value

 0001:00000010       main
`

const watcomListing = `
Segment                Class          Group          Address         Size
=======                =====          =====          =======         ====

BEGTEXT                CODE           AUTO           0001:00000000   00000010

                        +----------------------+
                        |   Memory Map         |
                        +----------------------+

* = unreferenced symbol
+ = symbol only referenced locally

Address        Symbol
=======        ======

Module: foo.obj(C:\src\foo.c)
0001:00000010  main_
0001:00000020+ helper_
Module: C:\lib\clib3r.lib(strlen)
0001:00000040* strlen_
0002:00000000  _ZTV4Base

Module: ignored.obj(ignored.c)
0001:00000080  ignored_
`

const borlandListing = `
 Start         Length     Name                   Class
 0001:00401000 000001000H _TEXT                  CODE
 0002:00402000 000000200H _DATA                  DATA

Detailed map of segments

 0001:00000000 00000100 C=CODE     S=_TEXT    G=(none)   M=C:\BC5\LIB\C0W32.OBJ ACBP=A9
 0001:00000100 00000000 C=CODE     S=_TEXT    G=(none)   M=EMPTY.OBJ ACBP=A9
 0001:00000100 00000200 C=CODE     S=_TEXT    G=(none)   M=app.obj ACBP=A9
 0002:00000000 00000010 C=DATA     S=_DATA    G=DGROUP   M=app.obj ACBP=A9

  Address         Publics by Name

 0001:00000010       __acrtused
 0001:00000120       Foo::bar(int, char*) const
 0002:00000004       Base::table
`

const syntheticListing = `
 Start         Length     Name                   Class
 0001:00000000 000001000H CODE32                 CODE

  Address         Publics by Value

 0001:00000020       helper
 0001:00000010       main
`

func parse(t *testing.T, listing string, opts ...Option) *Session {
	t.Helper()
	s := NewSession(opts...)
	require.NoError(t, s.Parse([]byte(listing)))
	return s
}

type view struct {
	Module  bool
	Segment uint8
	Offset  uint32
	Text    string
	Owner   string
}

// linear renders the linearized records with owner names for comparison.
func linear(s *Session) []view {
	ids := s.Linearize()
	out := make([]view, 0, len(ids))
	for _, id := range ids {
		r := s.Store().Get(id)
		v := view{Module: r.IsModule(), Segment: r.Segment, Offset: r.Offset, Text: r.Text}
		if r.IsSymbol() && r.Owner != NoRecord {
			v.Owner = s.Store().Get(r.Owner).Text
		}
		out = append(out, v)
	}
	return out
}

func TestDetectDialect(t *testing.T) {
	for _, tc := range []struct {
		name     string
		listing  string
		expected Dialect
		modules  int
	}{
		{"ibm", ibmListing, DialectIBM, 3},
		{"watcom", watcomListing, DialectWatcom, 2},
		{"borland detailed", borlandListing, DialectBorlandDetailed, 3},
		{"synthetic", syntheticListing, DialectSynthetic, 0},
		{"borland", borlandListing[:strings.Index(borlandListing, "Detailed")] + borlandListing[strings.Index(borlandListing, "  Address"):], DialectBorland, 0},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := parse(t, tc.listing)
			require.Equal(t, tc.expected, s.Dialect())
			require.Equal(t, tc.expected.String(), s.Dialect().String())
			require.Equal(t, tc.modules, s.ModuleCount())
		})
	}
}

func TestParseIBM(t *testing.T) {
	s := parse(t, ibmListing, WithDemangler(demangle.NewGCC("simplified")))
	require.Equal(t, []view{
		{Module: true, Segment: 1, Offset: 0x0, Text: "FOO.OBJ"},
		{Segment: 1, Offset: 0x10, Text: "main", Owner: "FOO.OBJ"},
		{Module: true, Segment: 1, Offset: 0x100, Text: "BAR.OBJ"},
		{Segment: 1, Offset: 0x110, Text: "Foo::bar", Owner: "BAR.OBJ"},
		{Module: true, Segment: 2, Offset: 0x0, Text: "FOO.OBJ"},
		{Segment: 2, Offset: 0x4, Text: "Base::{vtable}", Owner: "FOO.OBJ"},
	}, linear(s))

	stats := s.Stats()
	require.Equal(t, 3, stats.Modules)
	require.Equal(t, 3, stats.Symbols)
	require.Equal(t, 1, stats.DuplicateModules)
	require.False(t, stats.TwoPass)
	require.NoError(t, s.Warnings())
}

func TestDuplicateModuleCollapse(t *testing.T) {
	s := parse(t, ibmListing)
	s.Linearize()
	store := s.Store()

	// FOO.OBJ appears in two segments; the second points at the first.
	first, second := store.Get(0), store.Get(2)
	require.Equal(t, "FOO.OBJ", first.Text)
	require.Equal(t, "FOO.OBJ", second.Text)
	require.Equal(t, NoRecord, first.Owner)
	require.Equal(t, RecordID(0), second.Owner)
	require.True(t, first.Used())
	require.False(t, second.Used())

	for id := RecordID(0); int(id) < store.Len(); id++ {
		r := store.Get(id)
		if r.IsSymbol() && r.Owner != NoRecord {
			require.Equal(t, NoRecord, store.Get(r.Owner).Owner, "symbol %s owned by a duplicate", r.Text)
		}
	}
}

func TestVTableSymbol(t *testing.T) {
	s := parse(t, ibmListing, WithDemangler(demangle.NewGCC("simplified")))
	var found bool
	for id := RecordID(0); int(id) < s.Store().Len(); id++ {
		r := s.Store().Get(id)
		if r.Text == "Base::{vtable}" {
			found = true
			require.Equal(t, demangle.VTable, r.Category())
			require.Equal(t, FlagSymbol|Flags(demangle.VTable), r.Flags&SortMask)
		}
	}
	require.True(t, found)
}

func TestParseWatcom(t *testing.T) {
	s := parse(t, watcomListing, WithDemangler(demangle.NewGCC("simplified")))
	require.Equal(t, []view{
		{Module: true, Segment: 1, Offset: 0x10, Text: "foo.c"},
		{Segment: 1, Offset: 0x10, Text: "main_", Owner: "foo.c"},
		{Segment: 1, Offset: 0x20, Text: "helper_", Owner: "foo.c"},
		{Module: true, Segment: 1, Offset: 0x40, Text: "strlen"},
		{Segment: 1, Offset: 0x40, Text: "strlen_", Owner: "strlen"},
		{Segment: 2, Offset: 0x0, Text: "Base::{vtable}", Owner: "strlen"},
	}, linear(s))
	for id := RecordID(0); int(id) < s.Store().Len(); id++ {
		if r := s.Store().Get(id); r.IsModule() {
			require.True(t, r.Used())
		}
	}
}

func TestParseWatcomWithoutEntries(t *testing.T) {
	listing := "Segment Class Group Address Size\n\nAddress  Symbol\n=======  ======\n"
	err := NewSession().Parse([]byte(listing))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestParseBorland(t *testing.T) {
	s := parse(t, borlandListing, WithDemangler(demangle.NewGCC("simplified")))
	require.Equal(t, []view{
		{Module: true, Segment: 1, Offset: 0x0, Text: "C0W32.OBJ"},
		{Segment: 1, Offset: 0x10, Text: "__acrtused", Owner: "C0W32.OBJ"},
		{Module: true, Segment: 1, Offset: 0x100, Text: "app.obj"},
		{Segment: 1, Offset: 0x120, Text: "Foo::bar", Owner: "app.obj"},
		{Module: true, Segment: 2, Offset: 0x0, Text: "app.obj"},
		{Segment: 2, Offset: 0x4, Text: "Base::table", Owner: "app.obj"},
	}, linear(s))
	require.Equal(t, 1, s.Stats().DuplicateModules)
}

func TestParseSynthetic(t *testing.T) {
	s := parse(t, syntheticListing)
	require.Equal(t, []view{
		{Segment: 1, Offset: 0x10, Text: "main"},
		{Segment: 1, Offset: 0x20, Text: "helper"},
	}, linear(s))
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		listing  string
		expected error
		line     int
	}{
		{
			name:     "empty",
			listing:  "",
			expected: ErrUnidentifiedFormat,
		},
		{
			name:     "plain text",
			listing:  "hello\nworld\n",
			expected: ErrUnidentifiedFormat,
			line:     2,
		},
		{
			name:     "modules without groups",
			listing:  strings.Replace(ibmListing, "Origin   Group", "Something else", 1),
			expected: ErrUnidentifiedFormat,
			line:     9,
		},
		{
			name:     "truncated module table",
			listing:  " Start Length Name Class\n 0001:00000000 000001000H CODE32 CODE\n",
			expected: ErrUnidentifiedFormat,
			line:     2,
		},
		{
			name:     "invalid segment line",
			listing:  strings.Replace(ibmListing, " 0002:00000000 000000200H", " 0000:00000000 000000200H", 1),
			expected: ErrMalformedHeader,
			line:     6,
		},
		{
			name:     "missing publics by name",
			listing:  ibmListing[:strings.Index(ibmListing, "  Address")],
			expected: ErrMalformedHeader,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := NewSession().Parse([]byte(tc.listing))
			require.ErrorIs(t, err, tc.expected)
			var lerr *LineError
			require.True(t, errors.As(err, &lerr))
			if tc.line > 0 {
				require.Equal(t, tc.line, lerr.Line)
			}
		})
	}
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	listing := strings.NewReplacer(
		"   at offset 00000100 00000100H", "   at offset zz",
		" 0001:00000110  Imp  _ZN3Foo3barEi", " 0100:00000110       toobig\n 0001:00000120       a b c",
	).Replace(ibmListing)

	s := parse(t, listing)
	require.Equal(t, 2, s.ModuleCount())
	require.Equal(t, 3, s.Stats().MalformedLines)

	warnings := s.Warnings()
	require.Error(t, warnings)
	require.ErrorIs(t, warnings, ErrMalformedLine)
	var merr *multierror.Error
	require.True(t, errors.As(warnings, &merr))
	require.Len(t, merr.Errors, 3)
}

func TestMaxRecords(t *testing.T) {
	err := NewSession(WithMaxRecords(4)).Parse([]byte(ibmListing))
	require.ErrorIs(t, err, ErrAllocation)
}

func TestParseTwice(t *testing.T) {
	s := parse(t, syntheticListing)
	require.Error(t, s.Parse([]byte(syntheticListing)))
}

func largeIBMListing(n int) string {
	var b strings.Builder
	b.WriteString(" Start         Length     Name                   Class\n")
	b.WriteString(" 0001:00000000 000100000H CODE32                 CODE\n")
	b.WriteString("   at offset 00000000 00100000H bytes from (c:\\src\\BIG.OBJ)\n\n")
	b.WriteString(" Origin   Group\n\n")
	for _, section := range []string{"Publics by Name", "Publics by Value"} {
		fmt.Fprintf(&b, "  Address         %s\n\n", section)
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, " 0001:%08X       sym%05d\n", (i+1)*16, i)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func TestTwoPassDeduplication(t *testing.T) {
	s := parse(t, largeIBMListing(40001))
	stats := s.Stats()
	require.True(t, stats.TwoPass)
	require.Equal(t, 80002, stats.Symbols)
	require.Equal(t, 40001, stats.DuplicateSymbols)

	ids := s.Linearize()
	require.Len(t, ids, 40002)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		r := s.Store().Get(id)
		_, dup := seen[r.Text]
		require.False(t, dup, r.Text)
		seen[r.Text] = struct{}{}
	}
}

func TestTwoPassThreshold(t *testing.T) {
	s := parse(t, largeIBMListing(10), WithTwoPassThreshold(20))
	require.False(t, s.Stats().TwoPass)
	require.Equal(t, 10, s.Stats().Symbols)

	s = parse(t, largeIBMListing(10), WithTwoPassThreshold(5))
	require.True(t, s.Stats().TwoPass)
	require.Len(t, s.Linearize(), 11)
}

func TestDedupIsIdempotent(t *testing.T) {
	s := parse(t, largeIBMListing(10), WithTwoPassThreshold(5))
	store := s.Store()
	snapshot := func() []Record {
		out := make([]Record, store.Len())
		for i := range out {
			out[i] = *store.Get(RecordID(i))
		}
		return out
	}
	before := snapshot()
	require.Zero(t, DedupSymbols(store, 1))
	require.Zero(t, DedupModules(store))
	require.Equal(t, before, snapshot())

	s = parse(t, ibmListing)
	store = s.Store()
	before = snapshot()
	require.Zero(t, DedupModules(store))
	require.Equal(t, before, snapshot())
}

func TestLinearizeIsMonotonic(t *testing.T) {
	for _, listing := range []string{ibmListing, watcomListing, borlandListing, syntheticListing, largeIBMListing(100)} {
		s := parse(t, listing)
		ids := s.Linearize()
		for i := 1; i < len(ids); i++ {
			a, b := s.Store().Get(ids[i-1]), s.Store().Get(ids[i])
			require.LessOrEqual(t, compareLinear(a, b), 0, "%s before %s", a, b)
			require.False(t, b.Duplicate())
		}
	}
}

func TestLinearizeCaseInsensitive(t *testing.T) {
	store := NewStore(0)
	for _, text := range []string{"beta", "Alpha", "ALPHA", "alpha2"} {
		_, err := store.Add(Record{Flags: FlagSymbol, Segment: 1, Offset: 0x10, Text: text, Owner: NoRecord})
		require.NoError(t, err)
	}
	var got []string
	for _, id := range Linearize(store, true) {
		got = append(got, store.Get(id).Text)
	}
	require.Equal(t, []string{"Alpha", "ALPHA", "alpha2", "beta"}, got)
}

func TestParseHex(t *testing.T) {
	for _, tc := range []struct {
		in   string
		v    uint64
		rest string
	}{
		{"0001:00000010", 1, ":00000010"},
		{"  ff rest", 0xff, " rest"},
		{"xyz", 0, "xyz"},
		{"FFFFFFFFFF", 0xFFFFFFFF, ""},
	} {
		v, rest := parseHex(tc.in)
		require.Equal(t, tc.v, v, tc.in)
		require.Equal(t, tc.rest, rest, tc.in)
	}
}

func TestModulePath(t *testing.T) {
	require.Equal(t, "FOO.OBJ", modulePath(` 100H bytes from (c:\src\FOO.OBJ)`))
	require.Equal(t, "foo.o", modulePath("(/usr/src/foo.o) trailing"))
	require.Equal(t, "bar.obj", modulePath("(bar.obj"))
	require.Equal(t, unknownModule, modulePath("no path"))
	require.Equal(t, unknownModule, modulePath(`(c:\src\)`))
}

func TestHeaderMatch(t *testing.T) {
	require.True(t, modulesHeader.match(" Start         Length     Name                   Class"))
	require.False(t, modulesHeader.match(" Class Start Length Name"))
	require.True(t, publicsByValueHeader.match("  Address         Publics by Value"))
	require.False(t, publicsByNameHeader.match("  Address         Publics by Value"))
}

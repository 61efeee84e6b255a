package mapfile

import (
	"bytes"
	"math"
	"strings"
)

const (
	whitespace    = " \t\r\n"
	unknownModule = "[unknown]"
)

// header is a section header recognised by an ordered list of markers: a
// line matches when every marker appears, in order, anywhere in it. This
// tolerates the column width differences between linker versions.
type header struct {
	name    string
	markers []string
}

func (h *header) match(line string) bool {
	for _, m := range h.markers {
		i := strings.Index(line, m)
		if i < 0 {
			return false
		}
		line = line[i+len(m):]
	}
	return true
}

var (
	modulesHeader         = &header{"modules", []string{"Start", "Length", "Name", "Class"}}
	groupsHeader          = &header{"groups", []string{"Origin", "Group"}}
	publicsByNameHeader   = &header{"publics by name", []string{"Address", "Publics by Name"}}
	publicsByValueHeader  = &header{"publics by value", []string{"Address", "Publics by Value"}}
	watcomSegmentsHeader  = &header{"watcom segments", []string{"Segment", "Class", "Group", "Address", "Size"}}
	watcomMemoryMapHeader = &header{"watcom memory map", []string{"Address", "Symbol"}}
	borlandSegmentsHeader = &header{"detailed map of segments", []string{"Detailed map of segments"}}
)

// lineReader walks the listing line by line, keeping the 1-based number of
// the last line returned.
type lineReader struct {
	data []byte
	pos  int
	n    int
}

type linePosition struct {
	pos, n int
}

func newLineReader(data []byte) *lineReader {
	return &lineReader{data: data}
}

func (r *lineReader) next() (string, bool) {
	if r.pos >= len(r.data) {
		return "", false
	}
	rest := r.data[r.pos:]
	var line []byte
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		line = rest[:i]
		r.pos += i + 1
	} else {
		line = rest
		r.pos = len(r.data)
	}
	r.n++
	return string(line), true
}

func (r *lineReader) mark() linePosition { return linePosition{r.pos, r.n} }

func (r *lineReader) reset(p linePosition) { r.pos, r.n = p.pos, p.n }

// seek reads lines until one of the headers matches and returns it, or nil
// at the end of input. Earlier headers win when a line matches several.
func (r *lineReader) seek(headers ...*header) *header {
	for {
		line, ok := r.next()
		if !ok {
			return nil
		}
		for _, h := range headers {
			if h.match(line) {
				return h
			}
		}
	}
}

// parseHex reads a hexadecimal number after optional leading whitespace and
// returns it with the unparsed remainder. Without any digit it returns 0 and
// s unchanged. Values saturate at math.MaxUint32.
func parseHex(s string) (uint64, string) {
	t := strings.TrimLeft(s, whitespace)
	var v uint64
	i := 0
	for ; i < len(t); i++ {
		var d byte
		switch c := t[i]; {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			goto done
		}
		if v <= math.MaxUint32 {
			v = v<<4 | uint64(d)
		}
	}
done:
	if i == 0 {
		return 0, s
	}
	if v > math.MaxUint32 {
		v = math.MaxUint32
	}
	return v, t[i:]
}

// baseName strips directory components in either separator style.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// modulePath extracts the base file name from a parenthesized path such as
// "bar.obj(c:\src\bar.c)".
func modulePath(s string) string {
	i := strings.IndexByte(s, '(')
	if i < 0 {
		return unknownModule
	}
	s = s[i+1:]
	if j := strings.IndexByte(s, ')'); j >= 0 {
		s = s[:j]
	}
	name := strings.TrimSpace(baseName(s))
	if name == "" {
		return unknownModule
	}
	return name
}

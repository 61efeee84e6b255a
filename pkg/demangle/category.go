package demangle

import "strings"

// Category classifies compiler-generated symbols that the demangler reports
// with a descriptive prefix ("vtable for ", "typeinfo for ", ...).
// The bit values are shared with mapfile.Flags so they can be or-ed in directly.
type Category uint32

const (
	VTable Category = 1 << (iota + 12)
	Thunk
	TypeInfo
	TypeName
	GuardVariable
	VTT
	ConstructionVTable
	VirtualThunk
)

// Mask covers every category bit.
const Mask Category = 0xFF000

// suffixes are listed in priority order: the first one set wins.
var suffixes = []struct {
	c      Category
	suffix string
}{
	{VTable, "::{vtable}"},
	{Thunk, "::{thunk}"},
	{TypeInfo, "::{typeinfo}"},
	{TypeName, "::{typename}"},
	{GuardVariable, "::{guard_variable}"},
	{VTT, "::{vtt}"},
	{VirtualThunk, "::{virtual thunk}"},
	{ConstructionVTable, "::{construction vtable}"},
}

// Suffix returns the canonical suffix appended to the display name of a
// symbol of this category, or an empty string.
func (c Category) Suffix() string {
	for _, s := range suffixes {
		if c&s.c != 0 {
			return s.suffix
		}
	}
	return ""
}

func (c Category) String() string {
	if s := c.Suffix(); s != "" {
		return strings.Trim(s, ":{}")
	}
	return "none"
}

// prefixes produced by Itanium ABI demanglers for special symbols.
var prefixes = []struct {
	prefix string
	c      Category
}{
	{"vtable for ", VTable},
	{"non-virtual thunk to ", Thunk},
	{"typeinfo for ", TypeInfo},
	{"typeinfo name for ", TypeName},
	{"guard variable for ", GuardVariable},
	{"VTT for ", VTT},
	{"construction vtable for ", ConstructionVTable},
	{"virtual thunk to ", VirtualThunk},
}

// Classify strips a special-symbol prefix from demangled text and reports
// the matching category. Thunks also lose their argument list.
func Classify(s string) (string, Category) {
	if !strings.Contains(s, " ") {
		return s, 0
	}
	for _, p := range prefixes {
		if !strings.HasPrefix(s, p.prefix) {
			continue
		}
		s = s[len(p.prefix):]
		if p.c == Thunk {
			if i := strings.IndexByte(s, '('); i >= 0 {
				s = s[:i]
			}
		}
		return s, p.c
	}
	return s, 0
}

// TrimSignature removes a trailing " const" or " volatile" qualifier and a
// balanced trailing argument list from a demangled function name.
func TrimSignature(s string) string {
	if strings.HasSuffix(s, " const") && len(s) > len(" const") {
		s = s[:len(s)-len(" const")]
	} else if strings.HasSuffix(s, " volatile") && len(s) > len(" volatile") {
		s = s[:len(s)-len(" volatile")]
	}
	if !strings.HasSuffix(s, ")") {
		return s
	}
	depth := 1
	for i := len(s) - 2; i > 0; i-- {
		switch s[i] {
		case '(':
			depth--
			if depth == 0 {
				return s[:i]
			}
		case ')':
			depth++
		}
	}
	return s
}

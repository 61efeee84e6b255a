// Package demangle turns compiler-mangled linker symbols into display names.
//
// Every Demangler is infallible by contract: when a name cannot be decoded
// it is returned unchanged with no category.
package demangle

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Demangler decodes a raw linker symbol.
type Demangler interface {
	Demangle(raw string) (string, Category)
}

// Func adapts an ordinary function to a Demangler.
type Func func(raw string) (string, Category)

func (f Func) Demangle(raw string) (string, Category) { return f(raw) }

// None returns a Demangler that echoes its input.
func None() Demangler {
	return Func(func(raw string) (string, Category) { return raw, 0 })
}

var DemangleUnspecified []demangle.Option = nil
var DemangleNoneSpecified []demangle.Option = make([]demangle.Option, 0)
var DemangleSimplified = []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams, demangle.NoTemplateParams}
var DemangleTemplates = []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams}
var DemangleFull = []demangle.Option{demangle.NoClones}

// Styles lists the names accepted by ConvertDemangleOptions.
var Styles = []string{"none", "simplified", "templates", "full"}

func ConvertDemangleOptions(o string) []demangle.Option {
	switch o {
	case "none":
		return DemangleNoneSpecified
	case "simplified":
		return DemangleSimplified
	case "templates":
		return DemangleTemplates
	case "full":
		return DemangleFull
	default:
		return DemangleUnspecified
	}
}

const whitespace = " \t\r\n"

// troubleMarker starts a unique suffix some toolchains append to mangled
// names; the decoder cannot parse it.
const troubleMarker = "$w$"

// GCC is the builtin decoder for the Itanium C++ ABI used by GCC.
type GCC struct {
	options []demangle.Option
}

// NewGCC returns the builtin decoder using one of Styles.
func NewGCC(style string) *GCC {
	return &GCC{options: ConvertDemangleOptions(style)}
}

func (g *GCC) Demangle(raw string) (string, Category) {
	name, ok := itaniumName(raw)
	if !ok {
		return raw, 0
	}
	if i := strings.Index(name, troubleMarker); i >= 0 {
		name = name[:i]
	}
	out, err := demangle.ToString(name, g.options...)
	if err != nil {
		return raw, 0
	}
	out = strings.TrimRight(out, whitespace)
	out, c := Classify(out)
	if out == "" {
		return raw, 0
	}
	return out, c
}

// itaniumName reports whether raw is an Itanium mangled name, dropping the
// extra leading character some object formats add ("__Z", "@_Z").
func itaniumName(raw string) (string, bool) {
	switch {
	case strings.HasPrefix(raw, "__Z"), strings.HasPrefix(raw, "@_Z"):
		return raw[1:], true
	case strings.HasPrefix(raw, "_Z"):
		return raw, true
	}
	return "", false
}

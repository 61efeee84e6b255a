package mapxqs

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/grafana/mapxqs/pkg/demangle"
	"github.com/grafana/mapxqs/pkg/mapfile"
)

const (
	MapExt     = ".map"
	SymbolExt  = ".xqs"
	ListingExt = ".xql"
)

const (
	DemanglerGCC      = "gcc"
	DemanglerExternal = "external"
	DemanglerNone     = "none"
)

var Demanglers = []string{DemanglerGCC, DemanglerExternal, DemanglerNone}

const DefaultDemangleCacheSize = 16384

// Config controls a build.
type Config struct {
	Input   string
	Output  string
	Listing bool
	// Modules stores module names in the symbol file.
	Modules bool

	Demangler         string
	DemangleStyle     string
	ExternalDemangler string
	// DemangleCacheSize bounds the decoded-name cache, 0 disables it.
	DemangleCacheSize int

	TwoPassThreshold int
	MaxRecords       int
	// Strict fails the build when any line was skipped.
	Strict bool
}

func DefaultConfig() Config {
	return Config{
		Modules:           true,
		Demangler:         DemanglerGCC,
		DemangleStyle:     "simplified",
		DemangleCacheSize: DefaultDemangleCacheSize,
		TwoPassThreshold:  mapfile.DefaultTwoPassThreshold,
	}
}

func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input map file is required")
	}
	if !lo.Contains(Demanglers, c.Demangler) {
		return errors.Errorf("unknown demangler %q, expected one of %s", c.Demangler, strings.Join(Demanglers, ", "))
	}
	if c.Demangler == DemanglerGCC && !lo.Contains(demangle.Styles, c.DemangleStyle) {
		return errors.Errorf("unknown demangle style %q, expected one of %s", c.DemangleStyle, strings.Join(demangle.Styles, ", "))
	}
	if c.Demangler == DemanglerExternal && strings.TrimSpace(c.ExternalDemangler) == "" {
		return errors.New("external demangler requires a command")
	}
	if c.DemangleCacheSize < 0 {
		return errors.Errorf("demangle cache size must not be negative, got %d", c.DemangleCacheSize)
	}
	if c.TwoPassThreshold < 0 {
		return errors.Errorf("two-pass threshold must not be negative, got %d", c.TwoPassThreshold)
	}
	if c.MaxRecords < 0 {
		return errors.Errorf("max records must not be negative, got %d", c.MaxRecords)
	}
	return nil
}

// InputPath appends the map extension to an input without one.
func (c *Config) InputPath() string {
	return withDefaultExt(c.Input, MapExt)
}

// OutputPath is the symbol file path, next to the input by default.
func (c *Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return replaceExt(c.InputPath(), SymbolExt)
}

// ListingPath is the listing written next to the symbol file.
func (c *Config) ListingPath() string {
	return replaceExt(c.OutputPath(), ListingExt)
}

func withDefaultExt(path, ext string) string {
	if filepath.Ext(path) == "" {
		return path + ext
	}
	return path
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

package mapfile

import (
	"github.com/go-kit/log"

	"github.com/grafana/mapxqs/pkg/demangle"
)

// DefaultTwoPassThreshold is the symbol count above which Publics by Value
// is parsed in addition to Publics by Name.
const DefaultTwoPassThreshold = 40000

// Option configures a Session.
type Option func(*options)

type options struct {
	logger           log.Logger
	demangler        demangle.Demangler
	twoPassThreshold int
	maxRecords       int
}

// WithLogger sets the logger receiving per-line warnings.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDemangler sets the decoder applied to IBM, Watcom and synthetic
// public names.
func WithDemangler(d demangle.Demangler) Option {
	return func(o *options) {
		o.demangler = d
	}
}

func WithTwoPassThreshold(n int) Option {
	return func(o *options) {
		o.twoPassThreshold = n
	}
}

// WithMaxRecords caps the record store. Zero means unlimited.
func WithMaxRecords(n int) Option {
	return func(o *options) {
		o.maxRecords = n
	}
}

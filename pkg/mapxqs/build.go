// Package mapxqs converts linker map files into XQS symbol files and
// renders symbol files back as listings.
package mapxqs

import (
	"context"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/grafana/mapxqs/pkg/demangle"
	"github.com/grafana/mapxqs/pkg/mapfile"
	mapxqscontext "github.com/grafana/mapxqs/pkg/mapxqs/context"
	"github.com/grafana/mapxqs/pkg/xqs"
)

// Result describes a completed build.
type Result struct {
	Input   string
	Output  string
	Listing string
	Dialect mapfile.Dialect
	Stats   mapfile.Stats
	Modules int
	Symbols int
	Bytes   int64
	// Warnings holds the skipped lines, nil if there were none.
	Warnings error
}

// Build parses the map file named by cfg and writes the symbol file and,
// if requested, the listing. Outputs are replaced atomically.
func Build(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Input: cfg.InputPath(), Output: cfg.OutputPath()}
	ctx = mapxqscontext.WrapInput(ctx, res.Input)
	var (
		logger  = mapxqscontext.Logger(ctx)
		fs      = mapxqscontext.Fs(ctx)
		metrics = NewMetrics(mapxqscontext.Registry(ctx))
	)

	data, err := afero.ReadFile(fs, res.Input)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", res.Input)
	}

	d, closeDemangler, err := newDemangler(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	defer closeDemangler()

	s := mapfile.NewSession(
		mapfile.WithLogger(logger),
		mapfile.WithDemangler(d),
		mapfile.WithTwoPassThreshold(cfg.TwoPassThreshold),
		mapfile.WithMaxRecords(cfg.MaxRecords),
	)
	if err = s.Parse(data); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", res.Input)
	}
	res.Dialect, res.Stats, res.Warnings = s.Dialect(), s.Stats(), s.Warnings()
	metrics.observe(res.Dialect, res.Stats)
	level.Debug(logger).Log(
		"msg", "map file parsed",
		"dialect", res.Dialect,
		"lines", res.Stats.Lines,
		"modules", res.Stats.Modules,
		"symbols", res.Stats.Symbols,
		"two_pass", res.Stats.TwoPass,
	)
	if cfg.Strict && res.Warnings != nil {
		return nil, errors.Wrapf(res.Warnings, "%s has malformed lines", res.Input)
	}

	table := Project(s, cfg.Modules)
	res.Modules, res.Symbols = len(table.Modules), len(table.Symbols)

	if cfg.Listing {
		res.Listing = cfg.ListingPath()
		err = writeFile(fs, res.Listing, func(w io.Writer) error {
			return xqs.WriteListing(w, table, res.Output)
		})
		if err != nil {
			return nil, err
		}
	}

	err = writeFile(fs, res.Output, func(w io.Writer) error {
		n, err := xqs.Write(w, table)
		res.Bytes = n
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.BytesWritten.Add(float64(res.Bytes))

	level.Info(logger).Log(
		"msg", "symbol file written",
		"output", res.Output,
		"dialect", res.Dialect,
		"modules", res.Modules,
		"symbols", res.Symbols,
		"size", humanize.Bytes(uint64(res.Bytes)),
	)
	return res, nil
}

// Project turns the linearized records of a parsed session into a container
// table: modules referenced by symbols, in address order, then every symbol
// with the index of its module.
func Project(s *mapfile.Session, modules bool) *xqs.Table {
	var (
		store = s.Store()
		ids   = s.Linearize()
		index = make(map[mapfile.RecordID]int)
	)
	used := lo.Filter(ids, func(id mapfile.RecordID, _ int) bool {
		r := store.Get(id)
		return r.IsModule() && r.Used()
	})
	for i, id := range used {
		index[id] = i
	}

	t := &xqs.Table{
		Modules: lo.Map(used, func(id mapfile.RecordID, _ int) string {
			return store.Get(id).Text
		}),
	}
	for _, id := range ids {
		r := store.Get(id)
		if !r.IsSymbol() {
			continue
		}
		module := xqs.NoModule
		if i, ok := index[r.Owner]; ok && r.Owner != mapfile.NoRecord {
			module = i
		}
		t.Symbols = append(t.Symbols, xqs.Symbol{
			Segment: uint16(r.Segment),
			Offset:  r.Offset,
			Name:    r.Text,
			Module:  module,
		})
	}
	t.ModuleInfo = modules && len(t.Modules) > 0
	return t
}

func newDemangler(ctx context.Context, logger log.Logger, cfg Config) (demangle.Demangler, func(), error) {
	d, closeFn, err := openDemangler(ctx, logger, cfg)
	if err != nil || cfg.Demangler == DemanglerNone || cfg.DemangleCacheSize == 0 {
		return d, closeFn, err
	}
	c, err := demangle.NewCache(d, cfg.DemangleCacheSize)
	if err != nil {
		closeFn()
		return nil, nil, errors.Wrap(err, "creating demangle cache")
	}
	return c, closeFn, nil
}

func openDemangler(ctx context.Context, logger log.Logger, cfg Config) (demangle.Demangler, func(), error) {
	switch cfg.Demangler {
	case DemanglerNone:
		return demangle.None(), func() {}, nil
	case DemanglerExternal:
		args := strings.Fields(cfg.ExternalDemangler)
		e, err := demangle.NewExternal(ctx, logger, args[0], args[1:]...)
		if err != nil {
			return nil, nil, err
		}
		return e, func() {
			if err := e.Close(); err != nil {
				level.Warn(logger).Log("msg", "closing external demangler", "err", err)
			}
		}, nil
	default:
		return demangle.NewGCC(cfg.DemangleStyle), func() {}, nil
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/mapxqs/pkg/demangle"
	"github.com/grafana/mapxqs/pkg/mapxqs"
)

type buildParams struct {
	mapxqs.Config
	noModules bool
}

func addBuildParams(cmd *kingpin.CmdClause) *buildParams {
	p := &buildParams{Config: mapxqs.DefaultConfig()}
	cmd.Arg("mapfile", "Map file to convert. The .map extension may be omitted.").Required().StringVar(&p.Input)
	cmd.Flag("output", "Symbol file to write (default: the map file with the .xqs extension).").Short('o').StringVar(&p.Output)
	cmd.Flag("listing", "Also write a listing of modules and symbols next to the symbol file (.xql).").Short('l').BoolVar(&p.Listing)
	cmd.Flag("no-modules", "Omit module file names from the symbol file.").Short('m').BoolVar(&p.noModules)
	cmd.Flag("demangler", "Symbol demangler: "+strings.Join(mapxqs.Demanglers, ", ")+".").Default(p.Demangler).EnumVar(&p.Demangler, mapxqs.Demanglers...)
	cmd.Flag("demangle-style", "Builtin demangler output: "+strings.Join(demangle.Styles, ", ")+".").Default(p.DemangleStyle).EnumVar(&p.DemangleStyle, demangle.Styles...)
	cmd.Flag("external-demangler", "Command line of the external demangler, reading one name per line.").Default("c++filt").StringVar(&p.ExternalDemangler)
	cmd.Flag("demangle-cache-size", "Number of decoded names to cache, 0 to disable.").Default(fmt.Sprint(p.DemangleCacheSize)).IntVar(&p.DemangleCacheSize)
	cmd.Flag("two-pass-threshold", "Symbol count above which Publics by Value is parsed as well.").Default(fmt.Sprint(p.TwoPassThreshold)).IntVar(&p.TwoPassThreshold)
	cmd.Flag("max-records", "Maximum number of records to read, 0 for unlimited.").Default("0").IntVar(&p.MaxRecords)
	cmd.Flag("strict", "Fail when any map file line is malformed.").BoolVar(&p.Strict)
	return p
}

func runBuild(ctx context.Context, p *buildParams) error {
	cfg := p.Config
	cfg.Modules = !p.noModules
	res, err := mapxqs.Build(ctx, cfg)
	if err != nil {
		return err
	}
	out := output(ctx)
	fmt.Fprintf(out, "%s: %s map, %d modules, %d symbols, %s written to %s\n",
		res.Input, res.Dialect, res.Modules, res.Symbols, humanize.Bytes(uint64(res.Bytes)), res.Output)
	if res.Listing != "" {
		fmt.Fprintf(out, "listing written to %s\n", res.Listing)
	}
	if res.Stats.MalformedLines > 0 {
		fmt.Fprintf(out, "%d malformed lines skipped\n", res.Stats.MalformedLines)
	}
	return nil
}

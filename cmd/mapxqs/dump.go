package main

import (
	"context"
	"fmt"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/mapxqs/pkg/mapxqs"
)

type dumpParams struct {
	input  string
	output string
}

func addDumpParams(cmd *kingpin.CmdClause) *dumpParams {
	p := &dumpParams{}
	cmd.Arg("xqsfile", "Symbol file to list.").Required().StringVar(&p.input)
	cmd.Flag("output", "Listing to write (default: the symbol file with the .xql extension).").Short('o').StringVar(&p.output)
	return p
}

func runDump(ctx context.Context, p *dumpParams) error {
	f, err := mapxqs.Dump(ctx, p.input, p.output)
	if err != nil {
		return err
	}
	fmt.Fprintf(output(ctx), "%s: %d modules, %d symbols\n", p.input, f.ModuleCount(), len(f.Table.Symbols))
	return nil
}

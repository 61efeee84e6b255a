package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"

	"github.com/grafana/mapxqs/pkg/mapxqs"
	"github.com/grafana/mapxqs/pkg/xqs"
)

type inspectParams struct {
	files  []string
	format string
}

func addInspectParams(cmd *kingpin.CmdClause) *inspectParams {
	p := &inspectParams{}
	cmd.Arg("xqsfile", "Symbol files to inspect.").Required().StringsVar(&p.files)
	cmd.Flag("format", "Output format: table, yaml or json.").Default("table").EnumVar(&p.format, "table", "yaml", "json")
	return p
}

func runInspect(ctx context.Context, p *inspectParams) error {
	for _, path := range p.files {
		s, err := mapxqs.Inspect(ctx, path)
		if err != nil {
			return err
		}
		if err = outputSummary(output(ctx), p.format, path, s); err != nil {
			return err
		}
	}
	return nil
}

func outputSummary(out io.Writer, format, path string, s *xqs.Summary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]*xqs.Summary{path: s})
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]*xqs.Summary{path: s}); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintln(out, "file:", path)
	fmt.Fprintln(out, "\t size:", humanize.Bytes(uint64(s.Size)))
	fmt.Fprintln(out, "\t digest:", s.Digest)
	fmt.Fprintln(out, "\t version:", s.Version)
	fmt.Fprintln(out, "\t module info:", s.ModuleInfo)
	fmt.Fprintln(out, "\t modules:", s.Modules)
	fmt.Fprintln(out, "\t symbols:", s.Symbols)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Segment", "Offset", "Entry Size", "Symbols", "Size"})
	for _, seg := range s.Segments {
		table.Append([]string{
			fmt.Sprintf("%04X", seg.Segment),
			fmt.Sprintf("%08X", seg.Offset),
			fmt.Sprint(seg.EntrySize),
			fmt.Sprint(seg.Symbols),
			humanize.Bytes(uint64(seg.Bytes)),
		})
	}
	table.Render()
	return nil
}

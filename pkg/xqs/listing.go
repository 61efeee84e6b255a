package xqs

import (
	"bufio"
	"fmt"
	"io"

	"github.com/grafana/mapxqs/pkg/build"
)

const columnHeader = "\n    Seg:Offset    Name\n" +
	"   -------------  ------------------------\n"

// WriteListing prints t in address order, one line per symbol, with a module
// line whenever the module changes. source names the container in the
// report header.
func WriteListing(w io.Writer, t *Table, source string) error {
	bw := bufio.NewWriter(w)
	included := ""
	if t.ModuleInfo {
		included = " and source files"
	}
	fmt.Fprintf(bw, " mapxqs %s\n\n Symbols%s included in %s\n", build.Version, included, source)
	bw.WriteString(columnHeader)

	module := NoModule
	for _, s := range t.Symbols {
		if s.Module != module {
			module = s.Module
			fmt.Fprintf(bw, "\n %s\n", t.moduleName(module))
		}
		fmt.Fprintf(bw, "   %04X:%08X  %s\n", s.Segment, s.Offset, s.Name)
	}
	fmt.Fprintf(bw, "\n Modules= %d  Symbols= %d\n\n", len(t.Modules), len(t.Symbols))
	return bw.Flush()
}

func (t *Table) moduleName(i int) string {
	if i < 0 || i >= len(t.Modules) {
		return unknownModule
	}
	return t.Modules[i]
}

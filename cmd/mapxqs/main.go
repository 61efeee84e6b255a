package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/grafana/mapxqs/pkg/build"
	mapxqscontext "github.com/grafana/mapxqs/pkg/mapxqs/context"
)

var cfg struct {
	verbose     bool
	metricsFile string
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Creates .xqs symbol files from IBM, Watcom and Borland linker map files.").UsageWriter(os.Stdout)
	app.Version(version.Print("mapxqs"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)
	app.Flag("metrics-file", "Write build metrics in the Prometheus text format to this file.").StringVar(&cfg.metricsFile)

	buildCmd := app.Command("build", "Convert a map file into a symbol file.").Default()
	buildParams := addBuildParams(buildCmd)

	dumpCmd := app.Command("dump", "Write the listing of a symbol file.")
	dumpParams := addDumpParams(dumpCmd)

	inspectCmd := app.Command("inspect", "Summarize the structure of symbol files.")
	inspectParams := addInspectParams(inspectCmd)

	versionCmd := app.Command("version", "Print build information.")
	versionJSON := versionCmd.Flag("json", "Print build information as JSON.").Bool()

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	reg := prometheus.NewRegistry()
	ctx := mapxqscontext.WithLogger(context.Background(), logger)
	ctx = mapxqscontext.WithRegistry(ctx, reg)
	ctx = withOutput(ctx, os.Stdout)

	var err error
	switch parsedCmd {
	case buildCmd.FullCommand():
		err = runBuild(ctx, buildParams)
	case dumpCmd.FullCommand():
		err = runDump(ctx, dumpParams)
	case inspectCmd.FullCommand():
		err = runInspect(ctx, inspectParams)
	case versionCmd.FullCommand():
		if *versionJSON {
			fmt.Fprintln(output(ctx), build.PrettyJSON())
		} else {
			fmt.Fprintln(output(ctx), build.Summary())
		}
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
	if err == nil && cfg.metricsFile != "" {
		err = prometheus.WriteToTextfile(cfg.metricsFile, reg)
	}
	os.Exit(checkError(err))
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

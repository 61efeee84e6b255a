package mapxqs

import (
	"context"
	"io"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	mapxqscontext "github.com/grafana/mapxqs/pkg/mapxqs/context"
	"github.com/grafana/mapxqs/pkg/xqs"
)

// ReadSymbolFile decodes the symbol file at path.
func ReadSymbolFile(ctx context.Context, path string) (*xqs.File, error) {
	f, err := mapxqscontext.Fs(ctx).Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	file, err := xqs.Read(f, st.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return file, nil
}

// Dump writes the listing of the symbol file at input to output, which
// defaults to the input path with the listing extension.
func Dump(ctx context.Context, input, output string) (*xqs.File, error) {
	if output == "" {
		output = replaceExt(input, ListingExt)
	}
	file, err := ReadSymbolFile(ctx, input)
	if err != nil {
		return nil, err
	}
	err = writeFile(mapxqscontext.Fs(ctx), output, func(w io.Writer) error {
		return xqs.WriteListing(w, &file.Table, input)
	})
	if err != nil {
		return nil, err
	}
	level.Info(mapxqscontext.Logger(ctx)).Log(
		"msg", "listing written",
		"input", input,
		"output", output,
		"modules", file.ModuleCount(),
		"symbols", len(file.Table.Symbols),
	)
	return file, nil
}

// Inspect summarizes the symbol file at path.
func Inspect(ctx context.Context, path string) (*xqs.Summary, error) {
	b, err := afero.ReadFile(mapxqscontext.Fs(ctx), path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	s, err := xqs.Inspect(b)
	if err != nil {
		return nil, errors.Wrapf(err, "inspecting %s", path)
	}
	return s, nil
}

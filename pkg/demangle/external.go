package demangle

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// vtablePtrMarker is how VisualAge-style decoders spell a virtual function table.
const vtablePtrMarker = "::virtual-fn-table-ptr"

// External delegates decoding to a helper process speaking a line protocol:
// one raw name per input line, one decoded name per output line (c++filt and
// friends). It is meant for mangling grammars the builtin decoder does not
// understand, such as IBM VisualAge C++.
//
// Once the helper fails, External keeps echoing its input.
type External struct {
	logger log.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	broken bool
}

// NewExternal starts the helper process.
func NewExternal(ctx context.Context, logger log.Logger, path string, args ...string) (*External, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "external demangler stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "external demangler stdout")
	}
	if err = cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting external demangler %s", path)
	}
	return &External{
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

func (e *External) Demangle(raw string) (string, Category) {
	if e.broken || strings.ContainsAny(raw, "\r\n") {
		return raw, 0
	}
	out, err := e.roundTrip(raw)
	if err != nil {
		e.broken = true
		level.Warn(e.logger).Log("msg", "external demangler failed, names will not be demangled", "err", err)
		return raw, 0
	}
	out = strings.TrimRight(out, whitespace)
	if out == "" {
		return raw, 0
	}
	var c Category
	if i := strings.Index(out, vtablePtrMarker); i >= 0 {
		c = VTable
		out = out[:i]
		// "{Sub}Base" names the table of Sub within Base.
		if strings.HasPrefix(out, "{") {
			if j := strings.IndexByte(out, '}'); j > 0 {
				out = out[j+1:] + "::" + out[1:j]
			}
		}
	} else {
		out, c = Classify(out)
		out = TrimSignature(out)
	}
	if out == "" {
		return raw, 0
	}
	return out, c
}

func (e *External) roundTrip(raw string) (string, error) {
	if _, err := io.WriteString(e.stdin, raw+"\n"); err != nil {
		return "", err
	}
	return e.stdout.ReadString('\n')
}

// Close stops the helper process.
func (e *External) Close() error {
	if err := e.stdin.Close(); err != nil {
		return err
	}
	if err := e.cmd.Wait(); err != nil && !e.broken {
		return errors.Wrap(err, "external demangler")
	}
	return nil
}

// Package optimizer runs the external minimal enclosing capsule fitter and parses what it prints.
package optimizer

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/urdfcapsule/logging"
)

const (
	// DefaultExecutable is looked up on PATH when no optimizer is configured.
	DefaultExecutable = "robot_capsule_generator"
	// DefaultTimeout bounds a single optimizer run.
	DefaultTimeout = 5 * time.Minute

	scalingFlag  = "--scaling"
	outputFields = 7
	waitDelay    = time.Second
)

// ErrOptimizerFailed is returned when the optimizer exits non-zero, times out or prints something
// other than a capsule.
var ErrOptimizerFailed = errors.New("capsule optimizer failed")

// Result is a fitted capsule in mesh coordinates, given by the two centers of its caps and its radius.
type Result struct {
	Endpoint1 r3.Vector
	Endpoint2 r3.Vector
	Radius    float64
}

// An Optimizer fits a capsule around a mesh scaled by scale.
type Optimizer interface {
	Fit(ctx context.Context, meshPath string, scale r3.Vector) (*Result, error)
}

// External runs the optimizer as a subprocess:
//
//	<executable> <mesh_path> [--scaling sx sy sz]
//
// and expects one header line followed by ep1.x ep1.y ep1.z ep2.x ep2.y ep2.z radius on stdout.
type External struct {
	executable string
	timeout    time.Duration
	retries    int
	logger     logging.Logger
}

// NewExternal returns an optimizer that runs executable. A zero timeout means DefaultTimeout; each run
// that fails is retried up to retries more times.
func NewExternal(executable string, timeout time.Duration, retries int, logger logging.Logger) *External {
	if executable == "" {
		executable = DefaultExecutable
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = 0
	}
	return &External{executable: executable, timeout: timeout, retries: retries, logger: logger}
}

// Args returns the command line arguments for fitting meshPath at scale. The scaling flag is left
// out for an unscaled mesh.
func Args(meshPath string, scale r3.Vector) []string {
	args := []string{meshPath}
	if scale == (r3.Vector{X: 1, Y: 1, Z: 1}) {
		return args
	}
	return append(args, scalingFlag, formatFloat(scale.X), formatFloat(scale.Y), formatFloat(scale.Z))
}

// Fit runs the optimizer, retrying failed runs according to the retry policy.
func (e *External) Fit(ctx context.Context, meshPath string, scale r3.Vector) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			e.logger.Warnw("retrying capsule optimizer", "mesh", meshPath, "attempt", attempt+1, "error", lastErr)
		}
		result, err := e.run(ctx, meshPath, scale)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (e *External) run(ctx context.Context, meshPath string, scale r3.Vector) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := Args(meshPath, scale)
	e.logger.Debugw("running capsule optimizer", "executable", e.executable, "args", args)

	//nolint:gosec
	cmd := exec.CommandContext(ctx, e.executable, args...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(ErrOptimizerFailed, "%s on %s: %v after %s", e.executable, meshPath, ctx.Err(), e.timeout)
		}
		return nil, errors.Wrapf(ErrOptimizerFailed, "%s on %s: %v\nStderr: %s", e.executable, meshPath, err, stderr.String())
	}
	e.logger.Debugw("capsule optimizer finished", "mesh", meshPath, "duration", time.Since(start))

	result, err := ParseOutput(stdout.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "%s on %s", e.executable, meshPath)
	}
	return result, nil
}

// ParseOutput reads optimizer output: the first line is ignored and exactly seven numbers must follow,
// separated by any whitespace.
func ParseOutput(out []byte) (*Result, error) {
	text := string(out)
	newline := strings.IndexByte(text, '\n')
	if newline < 0 {
		return nil, errors.Wrap(ErrOptimizerFailed, "output has no values after the header line")
	}
	fields := strings.Fields(text[newline+1:])
	if len(fields) != outputFields {
		return nil, errors.Wrapf(ErrOptimizerFailed, "expected %d values but got %d", outputFields, len(fields))
	}
	values := make([]float64, outputFields)
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrOptimizerFailed, "value %d: %q is not a number", i+1, field)
		}
		values[i] = v
	}
	return &Result{
		Endpoint1: r3.Vector{X: values[0], Y: values[1], Z: values[2]},
		Endpoint2: r3.Vector{X: values[3], Y: values[4], Z: values[5]},
		Radius:    values[6],
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

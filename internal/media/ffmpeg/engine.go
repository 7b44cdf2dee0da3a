// Package ffmpeg abstracts the external transcoding tool behind a
// filter-graph request type, so composition logic can be tested without
// spawning processes.
package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"loom/internal/logging"
	"loom/internal/services"
)

// Input is one source file with its input-side arguments (arguments that
// must precede the -i flag, such as -stream_loop).
type Input struct {
	Path string
	Args []string
}

// Request describes one transcoding invocation: inputs, an optional filter
// graph, stream mappings, trailing output arguments, and the output path.
type Request struct {
	Inputs        []Input
	FilterComplex string
	VideoFilter   string
	Maps          []string
	Args          []string
	Output        string
}

// Engine runs transcoding requests.
type Engine interface {
	Run(ctx context.Context, req Request) error
}

type commandRunner func(ctx context.Context, name string, args ...string) error

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(output), 2048))
	}
	return nil
}

// tail keeps the last n bytes of diagnostic output; ffmpeg prints its
// actual error at the end of a long banner.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// CommandEngine executes requests with the ffmpeg binary.
type CommandEngine struct {
	binary string
	logger *slog.Logger
	run    commandRunner
}

// NewCommandEngine constructs an engine around the given binary; empty
// means ffmpeg on PATH.
func NewCommandEngine(binary string, logger *slog.Logger) *CommandEngine {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &CommandEngine{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "ffmpeg"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (e *CommandEngine) WithCommandRunner(r commandRunner) {
	if e != nil && r != nil {
		e.run = r
	}
}

// Run validates and executes one request.
func (e *CommandEngine) Run(ctx context.Context, req Request) error {
	args, err := BuildArgs(req)
	if err != nil {
		return services.Wrap(services.ErrValidation, "transcode", "build args", "", err)
	}

	e.logger.Debug("running ffmpeg",
		logging.String("output", req.Output),
		logging.Int("inputs", len(req.Inputs)))

	if err := e.run(ctx, e.binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "run", req.Output, err)
	}
	return nil
}

// BuildArgs flattens a request into the ffmpeg argument list. The order is
// fixed: global flags, inputs (each preceded by its own input args), the
// filter graph, stream maps, trailing args, output path.
func BuildArgs(req Request) ([]string, error) {
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("request needs at least one input")
	}
	if strings.TrimSpace(req.Output) == "" {
		return nil, fmt.Errorf("request needs an output path")
	}
	if req.FilterComplex != "" && req.VideoFilter != "" {
		return nil, fmt.Errorf("filter_complex and video filter are mutually exclusive")
	}

	args := []string{"-y", "-nostdin"}
	for _, input := range req.Inputs {
		if strings.TrimSpace(input.Path) == "" {
			return nil, fmt.Errorf("input path must not be empty")
		}
		args = append(args, input.Args...)
		args = append(args, "-i", input.Path)
	}
	if req.FilterComplex != "" {
		args = append(args, "-filter_complex", req.FilterComplex)
	}
	if req.VideoFilter != "" {
		args = append(args, "-vf", req.VideoFilter)
	}
	for _, m := range req.Maps {
		args = append(args, "-map", m)
	}
	args = append(args, req.Args...)
	args = append(args, req.Output)
	return args, nil
}

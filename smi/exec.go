// Package smi runs nvidia-smi and interprets what it prints.
package smi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultCaptureLimit bounds how much combined output Capture keeps.
	DefaultCaptureLimit = 64 << 10
	// DefaultTimeout bounds how long one child may run before it is killed.
	DefaultTimeout = 30 * time.Second
)

// childEnv is the whole environment handed to the child.
var childEnv = []string{
	"PATH=/usr/sbin:/usr/bin:/sbin:/bin",
	"LC_ALL=C",
}

var (
	ErrEmptyArgv    = errors.New("empty argument vector")
	ErrRelativePath = errors.New("binary path is not absolute")
	ErrTimeout      = errors.New("timed out")
	ErrSignaled     = errors.New("terminated by signal")
)

// ExecError means the child could not be started or did not exit on its
// own. A child that ran and exited non-zero is not an ExecError.
type ExecError struct {
	Path string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("exec %s: %v", e.Path, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Output is what Capture collected from a child.
type Output struct {
	Data      []byte
	Truncated bool
	ExitCode  int
}

func (o Output) String() string {
	return string(o.Data)
}

// Executor starts a binary by absolute path with a fixed argument vector.
// No shell is involved, so arguments are never globbed or expanded.
type Executor struct {
	Timeout      time.Duration
	CaptureLimit int
	Logger       *zap.Logger
}

func NewExecutor(logger *zap.Logger, timeout time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		Timeout:      timeout,
		CaptureLimit: DefaultCaptureLimit,
		Logger:       logger,
	}
}

// Run executes argv with output discarded and returns the exit code.
func (e *Executor) Run(ctx context.Context, argv []string) (int, error) {
	return e.exec(ctx, argv, nil)
}

// Capture executes argv and collects stdout and stderr into one bounded
// buffer. Output past the limit is drained and dropped; that sets
// Truncated but is not an error.
func (e *Executor) Capture(ctx context.Context, argv []string) (Output, error) {
	limit := e.CaptureLimit
	if limit <= 0 {
		limit = DefaultCaptureLimit
	}

	buf := &limitedBuffer{limit: limit}
	code, err := e.exec(ctx, argv, buf)

	out := Output{
		Data:      buf.Bytes(),
		Truncated: buf.truncated,
		ExitCode:  code,
	}

	e.Logger.Debug("captured output",
		zap.String("path", argv0(argv)),
		zap.Int("bytes", len(out.Data)),
		zap.Bool("truncated", out.Truncated))

	return out, err
}

func (e *Executor) exec(ctx context.Context, argv []string, w io.Writer) (int, error) {
	if len(argv) == 0 {
		return -1, &ExecError{Err: ErrEmptyArgv}
	}

	path := argv[0]
	if !filepath.IsAbs(path) {
		return -1, &ExecError{Path: path, Err: ErrRelativePath}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Env = childEnv
	cmd.WaitDelay = time.Second
	if w != nil {
		// The same writer on both streams makes exec share a single pipe.
		cmd.Stdout = w
		cmd.Stderr = w
	}

	e.Logger.Debug("exec", zap.Strings("argv", argv))

	err := cmd.Run()
	code, err := exitStatus(ctx, cmd, err)
	if err != nil {
		err = &ExecError{Path: path, Err: err}
		e.Logger.Debug("exec failed", zap.String("path", path), zap.Error(err))
		return code, err
	}

	e.Logger.Debug("exited", zap.String("path", path), zap.Int("code", code))

	return code, nil
}

func exitStatus(ctx context.Context, cmd *exec.Cmd, err error) (int, error) {
	var exitErr *exec.ExitError

	switch {
	case err == nil:
		return 0, nil
	case ctx.Err() != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return -1, ErrTimeout
		}
		return -1, ctx.Err()
	case errors.Is(err, exec.ErrWaitDelay):
		// The child exited but something it spawned kept the pipe open.
		return cmd.ProcessState.ExitCode(), nil
	case errors.As(err, &exitErr):
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		return -1, ErrSignaled
	default:
		return -1, err
	}
}

func argv0(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

// limitedBuffer keeps the first limit bytes written to it and accepts the
// rest without storing it, so a chatty child never blocks on a full pipe.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}

	b.buf.Write(p)

	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

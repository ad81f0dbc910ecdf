package smi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ghts/nvflux/clocks"
	"go.uber.org/zap"
)

const csvNoUnits = "--format=csv,noheader,nounits"

var (
	ErrNoDevices         = errors.New("no NVIDIA GPUs detected")
	ErrDriverUnavailable = errors.New("NVIDIA driver not loaded")
	ErrNoClocks          = errors.New("no supported memory clocks reported")
	ErrNoClockValue      = errors.New("no memory clock value reported")
)

// Alternate spellings of the same operation across nvidia-smi releases.
// Each list is tried in order until one variant succeeds.
var (
	currentClockQueries = [][]string{
		{"--query-gpu=clocks.mem", csvNoUnits},
		{"--query-gpu=memory.clock", csvNoUnits},
	}
	clockResets = [][]string{
		{"--reset-memory-clocks"},
		{"--reset-locks"},
	}
)

// Runner is the part of Executor the client needs.
type Runner interface {
	Run(ctx context.Context, argv []string) (int, error)
	Capture(ctx context.Context, argv []string) (Output, error)
}

// StatusError is a child that ran and exited non-zero.
type StatusError struct {
	Args []string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nvidia-smi %s exited with status %d", strings.Join(e.Args, " "), e.Code)
}

// Client issues the fixed set of nvidia-smi operations this tool uses.
type Client struct {
	path   string
	runner Runner
	logger *zap.Logger
}

func NewClient(path string, runner Runner, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{path: path, runner: runner, logger: logger}
}

func (c *Client) Path() string {
	return c.path
}

// CheckRuntime runs a read-only device query. A failure to run the tool is
// returned as *ExecError; a tool that runs but finds no working device is
// ErrNoDevices or ErrDriverUnavailable.
func (c *Client) CheckRuntime(ctx context.Context) error {
	out, err := c.runner.Capture(ctx, c.argv("--query-gpu=name", "--format=csv,noheader"))
	if err != nil {
		return err
	}

	switch r := Classify(out.Data); r {
	case ResponseOK:
		return nil
	case ResponseDriverUnavailable:
		return fmt.Errorf("%w: %s", ErrDriverUnavailable, firstLine(out.Data))
	default:
		return fmt.Errorf("%w: query output %s", ErrNoDevices, r)
	}
}

// SupportedMemoryClocks returns the supported memory clocks in MHz, highest
// first.
func (c *Client) SupportedMemoryClocks(ctx context.Context) ([]int, error) {
	args := []string{"--query-supported-clocks=memory", csvNoUnits}

	out, err := c.runner.Capture(ctx, c.argv(args...))
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, &StatusError{Args: args, Code: out.ExitCode}
	}
	if out.Truncated {
		c.logger.Warn("supported clock list truncated", zap.Int("bytes", len(out.Data)))
	}

	supported := clocks.Parse(out.String(), clocks.MaxClocks)
	if len(supported) == 0 {
		return nil, ErrNoClocks
	}

	return supported, nil
}

// CurrentMemoryClock returns the first memory clock value reported.
func (c *Client) CurrentMemoryClock(ctx context.Context) (int, error) {
	var mhz int

	err := c.firstOf(currentClockQueries, func(args []string) error {
		out, err := c.runner.Capture(ctx, c.argv(args...))
		if err != nil {
			return err
		}
		if out.ExitCode != 0 {
			return &StatusError{Args: args, Code: out.ExitCode}
		}

		v, ok := clocks.First(out.String())
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoClockValue, strings.Join(args, " "))
		}

		mhz = v
		return nil
	})

	return mhz, err
}

// EnablePersistence turns on persistence mode for every device.
func (c *Client) EnablePersistence(ctx context.Context) error {
	return c.run(ctx, "-pm", "1")
}

// LockMemoryClocks pins the memory clock to mhz as both minimum and maximum.
func (c *Client) LockMemoryClocks(ctx context.Context, mhz int) error {
	return c.run(ctx, "--lock-memory-clocks="+strconv.Itoa(mhz)+","+strconv.Itoa(mhz))
}

// ResetMemoryClocks clears any memory clock lock.
func (c *Client) ResetMemoryClocks(ctx context.Context) error {
	return c.firstOf(clockResets, func(args []string) error {
		return c.run(ctx, args...)
	})
}

func (c *Client) run(ctx context.Context, args ...string) error {
	code, err := c.runner.Run(ctx, c.argv(args...))
	if err != nil {
		return err
	}
	if code != 0 {
		return &StatusError{Args: args, Code: code}
	}

	return nil
}

// firstOf tries each variant in order and stops at the first success.
// When every variant fails the joined errors are returned.
func (c *Client) firstOf(variants [][]string, try func(args []string) error) error {
	var errs []error

	for _, args := range variants {
		err := try(args)
		if err == nil {
			return nil
		}

		c.logger.Debug("variant failed", zap.Strings("args", args), zap.Error(err))
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Client) argv(args ...string) []string {
	return append([]string{c.path}, args...)
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	return line
}

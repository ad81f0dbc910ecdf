// Package flux maps an nvflux command line onto nvidia-smi calls and the
// saved profile, and decides the process exit code.
package flux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/ghts/nvflux/clocks"
	"github.com/ghts/nvflux/privilege"
	"github.com/ghts/nvflux/smi"
	"go.uber.org/zap"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitToolNotFound  = 2
	ExitRuntime       = 3
	ExitNotPrivileged = 4
	ExitDisallowed    = 5
)

const defaultLabel = "Default"

// Device is the set of nvidia-smi operations nvflux performs.
type Device interface {
	CheckRuntime(ctx context.Context) error
	SupportedMemoryClocks(ctx context.Context) ([]int, error)
	CurrentMemoryClock(ctx context.Context) (int, error)
	EnablePersistence(ctx context.Context) error
	LockMemoryClocks(ctx context.Context, mhz int) error
	ResetMemoryClocks(ctx context.Context) error
}

// Store keeps the last applied profile of the real user.
type Store interface {
	Load() (clocks.Profile, error)
	Save(p clocks.Profile) error
}

// App runs one nvflux invocation.
type App struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Identity privilege.Identity
	// Locate finds the nvidia-smi binary.
	Locate func() (string, error)
	// Connect wraps the located binary.
	Connect func(path string, timeout time.Duration, logger *zap.Logger) Device
	Store   Store

	logger *zap.Logger
}

// Run parses args (without the program name) and executes the command.
// The verb is validated before nvidia-smi is searched for or run.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		printUsage(a.Stderr)
		return ExitFailure
	}

	opts, warnings, err := parseOptions(args)
	switch {
	case errors.Is(err, arg.ErrHelp):
		printHelp(a.Stdout)
		return ExitOK
	case errors.Is(err, arg.ErrVersion):
		printVersion(a.Stdout)
		return ExitOK
	case err != nil:
		fmt.Fprintf(a.Stderr, "Unknown or disallowed command: %v\n", err)
		return ExitDisallowed
	}

	if opts.Version {
		printVersion(a.Stdout)
		return ExitOK
	}

	a.logger = NewLogger(a.Stderr, opts.Verbose)
	defer func() { _ = a.logger.Sync() }()

	for _, w := range warnings {
		a.logger.Warn("bad environment value", zap.Error(w))
	}

	cmd, err := opts.Command()
	switch {
	case errors.Is(err, ErrUnknownCommand):
		fmt.Fprintf(a.Stderr, "Unknown or disallowed command: %s\n", opts.Verb)
		return ExitDisallowed
	case err != nil:
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		printUsage(a.Stderr)
		return ExitFailure
	}

	dev, code := a.prepare(ctx, opts.Timeout)
	if dev == nil {
		return code
	}

	return a.dispatch(ctx, dev, cmd)
}

// prepare finds nvidia-smi, checks that it sees a working device and that
// this process may change device state. Every command, status included,
// passes through here.
func (a *App) prepare(ctx context.Context, timeout time.Duration) (Device, int) {
	path, err := a.Locate()
	if err != nil {
		a.logger.Debug("locate failed", zap.Error(err))
		fmt.Fprintln(a.Stderr, "Error: nvidia-smi not found in common locations or PATH.")
		fmt.Fprintln(a.Stderr, "Hint: install NVIDIA drivers / nvidia-utils for your distro. See README.")
		return nil, ExitToolNotFound
	}
	a.logger.Debug("located nvidia-smi", zap.String("path", path))

	dev := a.Connect(path, timeout, a.logger)

	if err := dev.CheckRuntime(ctx); err != nil {
		a.logger.Debug("runtime check failed", zap.Error(err))

		var execErr *smi.ExecError
		if errors.As(err, &execErr) {
			fmt.Fprintf(a.Stderr, "Error: failed to execute %s. Is nvidia-smi available and executable?\n", path)
		} else {
			fmt.Fprintln(a.Stderr, "Error: no NVIDIA GPUs detected or driver not loaded.")
			fmt.Fprintln(a.Stderr, "Hint: install or enable the NVIDIA driver for your distro (see README).")
		}
		return nil, ExitRuntime
	}

	if err := a.Identity.RequirePrivilege(); err != nil {
		a.logger.Debug("privilege check failed",
			zap.Int("uid", a.Identity.RealUID),
			zap.Int("euid", a.Identity.EffectiveUID))
		fmt.Fprintln(a.Stderr, "Error: this program needs to be installed setuid root (installer will do this).")
		fmt.Fprintln(a.Stderr, privilege.ElevationHint())
		return nil, ExitNotPrivileged
	}

	return dev, ExitOK
}

func (a *App) dispatch(ctx context.Context, dev Device, cmd Command) int {
	switch cmd {
	case CmdStatus:
		return a.status()
	case CmdClock:
		return a.clock(ctx, dev)
	case CmdRestore:
		p, err := a.Store.Load()
		if err != nil {
			a.logger.Debug("load failed", zap.Error(err))
			fmt.Fprintln(a.Stderr, "No saved mode to restore")
			return ExitFailure
		}
		a.logger.Debug("restoring", zap.String("profile", string(p)))
		return a.apply(ctx, dev, p)
	}

	p, ok := cmd.Profile()
	if !ok {
		fmt.Fprintf(a.Stderr, "Unknown or disallowed command: %s\n", cmd)
		return ExitDisallowed
	}

	return a.apply(ctx, dev, p)
}

func (a *App) status() int {
	p, err := a.Store.Load()
	if err != nil {
		a.logger.Debug("no saved profile", zap.Error(err))
		fmt.Fprintln(a.Stdout, defaultLabel)
		return ExitOK
	}

	fmt.Fprintln(a.Stdout, p.Label())
	return ExitOK
}

func (a *App) clock(ctx context.Context, dev Device) int {
	mhz, err := dev.CurrentMemoryClock(ctx)
	if err != nil {
		return a.fail("Failed to query current memory clock", err)
	}

	fmt.Fprintln(a.Stdout, mhz)
	return ExitOK
}

// apply puts p into effect and records it. A failed step stops the
// sequence; whatever already reached the device stays as it is.
func (a *App) apply(ctx context.Context, dev Device, p clocks.Profile) int {
	if p.Locks() {
		supported, err := dev.SupportedMemoryClocks(ctx)
		if err != nil {
			return a.fail("Failed to query supported memory clocks", err)
		}

		target, err := clocks.Target(supported, p)
		if err != nil {
			return a.fail("Failed to query supported memory clocks", err)
		}
		a.logger.Debug("selected clock",
			zap.String("profile", string(p)),
			zap.Int("mhz", target),
			zap.Ints("supported", supported))

		if err := dev.EnablePersistence(ctx); err != nil {
			return a.fail("Failed to enable persistence", err)
		}
		if err := dev.LockMemoryClocks(ctx, target); err != nil {
			return a.fail("Failed to lock memory clocks", err)
		}
	} else {
		if err := dev.ResetMemoryClocks(ctx); err != nil {
			return a.fail("Failed to reset memory clocks", err)
		}
	}

	// The device change already happened; a lost record only affects
	// status and --restore.
	if err := a.Store.Save(p); err != nil {
		a.logger.Warn("could not save profile", zap.String("profile", string(p)), zap.Error(err))
	}

	return ExitOK
}

func (a *App) fail(msg string, err error) int {
	fmt.Fprintf(a.Stderr, "%s: %v\n", msg, err)
	return ExitFailure
}

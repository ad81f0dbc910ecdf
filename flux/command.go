package flux

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/alexflint/go-scalar"
	"github.com/ghts/nvflux/clocks"
	"github.com/ghts/nvflux/smi"
)

// Command is one verb of the closed set nvflux accepts.
type Command string

const (
	CmdPerformance Command = "performance"
	CmdBalanced    Command = "balanced"
	CmdPowersaver  Command = "powersaver"
	CmdAuto        Command = "auto"
	CmdReset       Command = "reset"
	CmdStatus      Command = "status"
	CmdClock       Command = "clock"
	// CmdRestore is selected with --restore, never by name.
	CmdRestore Command = "restore"
)

var (
	ErrUnknownCommand = errors.New("unknown or disallowed command")
	ErrNoCommand      = errors.New("no command given")
	ErrRestoreCommand = errors.New("--restore takes no command")
)

var verbs = []Command{
	CmdPerformance, CmdBalanced, CmdPowersaver, CmdAuto, CmdReset, CmdStatus, CmdClock,
}

// ParseCommand maps a positional verb onto the closed command set.
func ParseCommand(verb string) (Command, error) {
	for _, c := range verbs {
		if string(c) == verb {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, verb)
}

// Profile is the profile a mutating command applies. ok is false for
// status, clock and restore.
func (c Command) Profile() (clocks.Profile, bool) {
	switch c {
	case CmdPerformance:
		return clocks.Performance, true
	case CmdBalanced:
		return clocks.Balanced, true
	case CmdPowersaver:
		return clocks.Powersaver, true
	case CmdAuto, CmdReset:
		return clocks.Auto, true
	default:
		return "", false
	}
}

// Options is the parsed command line.
type Options struct {
	Verb    string        `arg:"positional" placeholder:"COMMAND" help:"performance, balanced, powersaver, auto, reset, status or clock"`
	Restore bool          `arg:"--restore" help:"reapply the last saved profile"`
	Version bool          `arg:"-v,--version" help:"print version and exit"`
	Verbose bool          `arg:"--verbose" help:"log every nvidia-smi call to stderr [env: NVFLUX_DEBUG]"`
	Timeout time.Duration `arg:"--timeout" help:"kill nvidia-smi if it runs longer than this [env: NVFLUX_TIMEOUT]"`
}

// envVars seed options before the command line is read, so flags win.
func (o *Options) envVars() map[string]any {
	return map[string]any{
		"NVFLUX_DEBUG":   &o.Verbose,
		"NVFLUX_TIMEOUT": &o.Timeout,
	}
}

// parseOptions reads the environment, then args. An environment value
// that does not parse is skipped and reported in warnings; it never
// makes the command line invalid.
func parseOptions(args []string) (opts Options, warnings []error, err error) {
	opts = Options{Timeout: smi.DefaultTimeout}

	for name, dest := range opts.envVars() {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		if err := scalar.Parse(dest, value); err != nil {
			warnings = append(warnings, fmt.Errorf("ignoring %s=%q: %w", name, value, err))
		}
	}

	p, err := arg.NewParser(arg.Config{Program: "nvflux", IgnoreEnv: true}, &opts)
	if err != nil {
		return opts, warnings, err
	}

	return opts, warnings, p.Parse(args)
}

// Command resolves the verb, honoring --restore.
func (o Options) Command() (Command, error) {
	switch {
	case o.Restore && o.Verb != "":
		return "", ErrRestoreCommand
	case o.Restore:
		return CmdRestore, nil
	case o.Verb == "":
		return "", ErrNoCommand
	default:
		return ParseCommand(o.Verb)
	}
}

package main

import (
	"context"
	"os"
	"time"

	"github.com/ghts/nvflux/flux"
	"github.com/ghts/nvflux/privilege"
	"github.com/ghts/nvflux/smi"
	"github.com/ghts/nvflux/state"
	"go.uber.org/zap"
)

func main() {
	id := privilege.CurrentIdentity()

	app := &flux.App{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Identity: id,
		Locate: func() (string, error) {
			// A setuid caller controls PATH, so only root-owned matches count.
			return privilege.NewLocator(os.Getenv("PATH"), id.Setuid()).Find()
		},
		Connect: func(path string, timeout time.Duration, logger *zap.Logger) flux.Device {
			return smi.NewClient(path, smi.NewExecutor(logger, timeout), logger)
		},
		Store: state.New(id.HomeDir(), id.RealUID, id.RealGID),
	}

	os.Exit(app.Run(context.Background(), os.Args[1:]))
}

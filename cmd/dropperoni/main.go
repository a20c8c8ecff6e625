// Command dropperoni is the entrypoint binary.
package main

import (
	"log/slog"
	"os"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	dropcmd "github.com/krystianbajno/dropperoni/cmd"
	"github.com/krystianbajno/dropperoni/dlog"
)

func main() {
	logger := dlog.Log()

	// Match GOMAXPROCS to the container CPU quota, the way Caddy tunes
	// its own runtime before serving any connections.
	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	defer undo()
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	_, _ = memlimit.SetGoMemLimitWithOpts(
		memlimit.WithLogger(slog.New(zapslog.NewHandler(logger.Core()))),
		memlimit.WithProvider(memlimit.ApplyFallback(memlimit.FromCgroup, memlimit.FromSystem)),
	)

	if err := dropcmd.NewRootCommand().Execute(); err != nil {
		logger.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

// peerdid maintains peer DID documents as replays of append-only delta logs
// and simulates agents keeping them in sync.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-peerdid/cmd"
	"github.com/spacemeshos/go-peerdid/config"
	"github.com/spacemeshos/go-peerdid/log"
	"github.com/spacemeshos/go-peerdid/metrics"
	"github.com/spacemeshos/go-peerdid/repo"
)

var (
	version string
	commit  string
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	conf   config.Config
	logger *zap.Logger
	levels *log.Levels
}

func (a *app) setup(c *cobra.Command) error {
	if err := cmd.Configure(c, &a.conf); err != nil {
		return err
	}
	logger, levels, err := cmd.Logger(&a.conf)
	if err != nil {
		return err
	}
	a.logger, a.levels = logger, levels
	if a.conf.CollectMetrics {
		metrics.StartCollectingMetrics(c.Context(), a.logger, a.conf.MetricsAddr)
	}
	return nil
}

func (a *app) openRepo() (*repo.Repository, error) {
	return repo.New(a.conf.DataDir,
		repo.WithBackend(a.conf.Repo.Backend),
		repo.WithCacheSize(a.conf.Repo.CacheSize),
		repo.WithLatencyMetering(a.conf.Repo.LatencyMetering),
		repo.WithLogger(a.levels.Named(config.RepoLogger)),
		repo.WithDatabaseLogger(a.levels.Named(config.SQLLogger)),
	)
}

func newRootCommand() *cobra.Command {
	a := &app{conf: config.DefaultConfig()}
	root := &cobra.Command{
		Use:           "peerdid",
		Short:         "peer DID repository and sync simulator",
		Version:       version + "+" + commit,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			return a.setup(c)
		},
	}
	cmd.AddCommands(root, &a.conf)
	root.AddCommand(
		newCreateCommand(a),
		newAppendCommand(a),
		newResolveCommand(a),
		newStateCommand(a),
		newListCommand(a),
		newDiffCommand(),
		newValidateCommand(),
		newSimCommand(a),
	)
	return root
}

func main() { // run the app
	cmd.Version = version
	cmd.Commit = commit
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		// the error was already printed by cobra
		os.Exit(1)
	}
}

// Package cmd holds the flag and config plumbing shared by the peerdid commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-peerdid/config"
	"github.com/spacemeshos/go-peerdid/log"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// AddCommands binds the persistent flags of the root command to conf.
func AddCommands(cmd *cobra.Command, conf *config.Config) {
	/** ======================== BaseConfig Flags ========================== **/
	cmd.PersistentFlags().StringVarP(&conf.ConfigFile,
		"config", "c", conf.ConfigFile, "Load configuration from file")
	cmd.PersistentFlags().StringVarP(&conf.DataDir, "data-folder", "d",
		conf.DataDir, "Repository container directory")
	cmd.PersistentFlags().BoolVar(&conf.CollectMetrics, "metrics",
		conf.CollectMetrics, "serve prometheus metrics")
	cmd.PersistentFlags().StringVar(&conf.MetricsAddr, "metrics-addr",
		conf.MetricsAddr, "metrics server address")
	cmd.PersistentFlags().StringVar(&conf.MetricsPush, "metrics-push",
		conf.MetricsPush, "Push metrics to url")
	cmd.PersistentFlags().DurationVar(&conf.MetricsPushPeriod, "metrics-push-period",
		conf.MetricsPushPeriod, "Push period")

	/** ======================== Repository Flags ========================== **/
	cmd.PersistentFlags().StringVar((*string)(&conf.Repo.Backend), "backend",
		string(conf.Repo.Backend), "storage backend: files or sqlite")
	cmd.PersistentFlags().IntVar(&conf.Repo.CacheSize, "cache-size",
		conf.Repo.CacheSize, "number of resolved documents to cache")
	cmd.PersistentFlags().BoolVar(&conf.Repo.LatencyMetering, "latency-metering",
		conf.Repo.LatencyMetering, "record sqlite query durations")

	/** ======================== Logging Flags ========================== **/
	cmd.PersistentFlags().StringVar(&conf.LOGGING.Encoder, "log-encoder",
		conf.LOGGING.Encoder, "console or json")
	cmd.PersistentFlags().StringVar(&conf.LOGGING.AppLoggerLevel, "log-level",
		conf.LOGGING.AppLoggerLevel, "log level")
}

// AddSimFlags binds the flags of the sim command to conf.
func AddSimFlags(flags *pflag.FlagSet, conf *config.Config) {
	flags.DurationVar(&conf.Sim.Jitter, "jitter",
		conf.Sim.Jitter, "upper bound of the random delay before merging a received record")
	flags.BoolVar(&conf.Sim.Autogossip, "autogossip",
		conf.Sim.Autogossip, "start with background gossip on")
	flags.DurationVar(&conf.Sim.AutogossipInterval, "autogossip-interval",
		conf.Sim.AutogossipInterval, "how often agents consider gossiping")
	flags.Float64Var(&conf.Sim.AutogossipProbability, "autogossip-probability",
		conf.Sim.AutogossipProbability, "chance to gossip on each interval")
	flags.StringVar(&conf.Sim.SessionDir, "session-dir",
		conf.Sim.SessionDir, "keep agent repositories on disk under this directory")
	flags.Uint64Var(&conf.Sim.Seed, "seed", conf.Sim.Seed, "random seed, 0 picks one")
	flags.StringVar(&conf.Sim.Connections, "connections",
		conf.Sim.Connections, "space separated reachability, e.g. A.1+-+A.2")
}

// Configure loads the config file and applies the flags given on the
// command line on top of it.
func Configure(c *cobra.Command, conf *config.Config) error {
	var reapply []func() error
	c.Flags().Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			vals := sv.GetSlice()
			reapply = append(reapply, func() error { return sv.Replace(vals) })
			return
		}
		val := f.Value.String()
		reapply = append(reapply, func() error { return f.Value.Set(val) })
	})
	if err := config.Load(conf, conf.ConfigFile); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	for _, apply := range reapply {
		if err := apply(); err != nil {
			return fmt.Errorf("parsing flags: %w", err)
		}
	}
	return nil
}

// Logger builds the root logger and the per module level filter.
func Logger(conf *config.Config) (*zap.Logger, *log.Levels, error) {
	app, err := zapcore.ParseLevel(conf.LOGGING.AppLoggerLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}
	enc, err := log.NewEncoder(conf.LOGGING.Encoder)
	if err != nil {
		return nil, nil, err
	}
	root := log.NewWithLevel("peerdid", zap.NewAtomicLevelAt(zapcore.DebugLevel), enc)
	levels := log.NewLevels(root, app, conf.LOGGING.Levels())
	return root.WithOptions(zap.IncreaseLevel(app)), levels, nil
}

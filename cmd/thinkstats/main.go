package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/config"
	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/logging"
	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/monitoring"
	"github.com/VanDung-dev/ThinkStats-Engine/thinkstats-engine/nsfg"
)

// Version information
const (
	Version = "0.1.0"
	Name    = "ThinkStats-Engine"
)

// app carries the state shared by subcommands of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *monitoring.Metrics
	stdout     io.Writer
	stderr     io.Writer
}

// femRespOptions returns loader options from config plus extra.
func (a *app) femRespOptions(extra ...nsfg.Option) []nsfg.Option {
	opts := a.cfg.FemRespOptions()
	opts = append(opts, nsfg.WithLogger(a.logger), nsfg.WithMetrics(a.metrics))
	return append(opts, extra...)
}

func newApp(stdout, stderr io.Writer) *app {
	registry := prometheus.NewRegistry()
	return &app{
		logger:   zap.NewNop(),
		registry: registry,
		metrics:  monitoring.NewMetrics("thinkstats", registry),
		stdout:   stdout,
		stderr:   stderr,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "thinkstats",
		Short: "Load NSFG fixed-width survey files and check them against a snapshot",
		Long: `thinkstats reads the NSFG 2002 female respondent file using its Stata
dictionary, reports value distributions and checks the pregnum counts
against the published snapshot.

Settings come from flags, THINKSTATS_* environment variables and an
optional thinkstats.yaml in . or ./configs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}

			logger, err := logging.New(a.stderr, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: thinkstats.yaml in . or ./configs)")
	flags.String("dct", nsfg.DefaultDctFile, "Stata dictionary file")
	flags.String("dat", nsfg.DefaultDatFile, "gzip-compressed fixed-width data file")
	flags.Int("nrows", 0, "read at most this many rows (0 reads all)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file after the run")

	root.AddCommand(
		newValidateCmd(a),
		newFreqCmd(a),
		newSchemaCmd(a),
		newExportCmd(a),
		newVersionCmd(a),
	)
	return root
}

// writeMetrics dumps the run's metrics when a textfile path is configured.
// It runs after failed commands too.
func (a *app) writeMetrics() error {
	if a.cfg == nil || a.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := monitoring.WriteTextfile(a.cfg.MetricsTextfile, a.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	a.logger.Debug("metrics written", zap.String("path", a.cfg.MetricsTextfile))
	return nil
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.Execute()
	if merr := a.writeMetrics(); merr != nil && err == nil {
		err = merr
	}
	defer func() { _ = a.logger.Sync() }()

	if err != nil {
		// Errors raised before the logger exists go straight to stderr.
		if a.cfg == nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		} else {
			a.logger.Error("command failed", zap.Error(err))
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

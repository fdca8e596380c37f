// Command lazydemo runs the resilient loader against the deployment simulator.
//
//	lazydemo routes
//	lazydemo run test --deploy-on-navigate=false --deploy-after 200ms
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	backend    string
	session    string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:           "lazydemo",
		Short:         "Resilient lazy loading against a simulated deployment",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (text, json)")
	root.PersistentFlags().StringVar(&flags.backend, "store", "", "failure store backend (memory, redis, postgres, sqlite)")
	root.PersistentFlags().StringVar(&flags.session, "session", "", "session id scoping the failure store")

	root.AddCommand(newRoutesCmd(), newRunCmd(&flags))
	return root
}

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the registered routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, id := range newImports(nil).IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		deployAfter  time.Duration
		metricsOut   string
		retries      int
		retryDelay   time.Duration
		maxRetries   int
		navDeploy    bool
		syncOnReload bool
		minLatency   time.Duration
		maxLatency   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <route>",
		Short: "Navigate to a route, reloading as the loaders request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			applyRootFlags(&cfg, flags)
			f := cmd.Flags()
			if f.Changed("import-retries") {
				cfg.Loader.ImportRetries = retries
			}
			if f.Changed("retry-delay") {
				cfg.Loader.RetryDelay = retryDelay
			}
			if f.Changed("max-retries") {
				cfg.Loader.MaxRetries = maxRetries
			}
			if f.Changed("deploy-on-navigate") {
				cfg.Simulator.DeployOnNavigate = navDeploy
			}
			if f.Changed("sync-on-reload") {
				cfg.Simulator.SyncOnReload = syncOnReload
			}
			if f.Changed("min-latency") {
				cfg.Simulator.MinLatency = minLatency
			}
			if f.Changed("max-latency") {
				cfg.Simulator.MaxLatency = maxLatency
			}

			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("close failure store", "err", err)
				}
			}()

			result, runErr := a.run(ctx, args[0], deployAfter)
			printSummary(cmd.OutOrStdout(), a.server.Status(), result)
			if metricsOut != "" {
				if err := prometheus.WriteToTextfile(metricsOut, a.registry); err != nil {
					logger.Warn("write metrics", "path", metricsOut, "err", err)
				}
			}
			return runErr
		},
	}
	f := cmd.Flags()
	f.DurationVar(&deployAfter, "deploy-after", 0, "deploy once during the first generation after this delay")
	f.StringVar(&metricsOut, "metrics-out", "", "write Prometheus metrics in text format to this file")
	f.IntVar(&retries, "import-retries", 0, "in-place retries per load")
	f.DurationVar(&retryDelay, "retry-delay", 0, "pause between in-place retries")
	f.IntVar(&maxRetries, "max-retries", 0, "reload budget per import")
	f.BoolVar(&navDeploy, "deploy-on-navigate", true, "deploy when navigating to the test route")
	f.BoolVar(&syncOnReload, "sync-on-reload", true, "adopt the deployed version after a reload")
	f.DurationVar(&minLatency, "min-latency", 0, "minimum simulated fetch latency")
	f.DurationVar(&maxLatency, "max-latency", 0, "maximum simulated fetch latency")
	return cmd
}

func applyRootFlags(cfg *Config, flags *rootFlags) {
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if flags.backend != "" {
		cfg.Store.Backend = flags.backend
	}
	if flags.session != "" {
		cfg.Store.Session = flags.session
	}
}

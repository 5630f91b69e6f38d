package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fintech-community/peerbench/engine/config"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	version   = "dev"

	cfg *config.Config
	log *logrus.Logger

	rootCmd = &cobra.Command{
		Use:   "engine",
		Short: "Community peer benchmarking engine",
		Long: `engine clusters a transaction ledger into peer groups and compares clients,
or ad hoc financial profiles, against the members of their group.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json); overrides the config file")

	rootCmd.AddCommand(prepareCmd())
	rootCmd.AddCommand(clusterCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(communityCmd())
	rootCmd.AddCommand(snapshotsCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		if log != nil {
			log.Info("Received interrupt signal, shutting down")
		}
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	bootstrap := logrus.New()
	bootstrap.SetOutput(os.Stderr)
	bootstrap.SetLevel(logrus.WarnLevel)

	loaded, err := config.Load(cfgFile, bootstrap)
	if err != nil {
		return err
	}

	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}
	if logFormat != "" {
		loaded.Logging.Format = logFormat
	}

	logger, err := config.NewLogger(loaded.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	cfg = loaded
	log = logger
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and runtime environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, map[string]interface{}{
				"version":     version,
				"environment": metricsEnvironment(),
			})
		},
	}
}

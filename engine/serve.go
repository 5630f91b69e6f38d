package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fintech-community/peerbench/engine/analysis"
	"github.com/fintech-community/peerbench/engine/api"
	"github.com/fintech-community/peerbench/engine/metrics"
)

func serveCmd() *cobra.Command {
	var (
		tablePath  string
		snapshotID string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve peer comparisons over HTTP",
		Long: `Loads one snapshot of the clustered feature table (the latest unless pinned) and
serves comparisons against it until interrupted. The table is never reloaded while
running; restart to pick up a new snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			t, err := loadTable(ctx, tablePath, snapshotID)
			if err != nil {
				return err
			}

			m := metrics.New()
			sizes, personas := clusterSizes(t)
			m.SetSnapshot(t.Len(), sizes, personas)

			serverCfg := cfg.Server
			if addr != "" {
				serverCfg.Addr = addr
			}

			srv, err := api.NewServer(&serverCfg, analysis.NewService(t, log), m, log)
			if err != nil {
				return err
			}
			if err := srv.Start(ctx); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"addr":        serverCfg.Addr,
				"snapshot_id": t.SnapshotID(),
				"rows":        t.Len(),
			}).Info("Serving comparisons")

			<-ctx.Done()
			return srv.Stop()
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "serve a clustered feature CSV instead of a stored snapshot")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot id to serve (default: configured, then latest)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; overrides the config file")
	return cmd
}

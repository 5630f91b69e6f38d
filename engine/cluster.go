package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fintech-community/peerbench/engine/clustering"
	"github.com/fintech-community/peerbench/engine/metrics"
	"github.com/fintech-community/peerbench/engine/storage"
	"github.com/fintech-community/peerbench/engine/types"
)

func prepareCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "prepare <ledger.csv>",
		Short: "Aggregate a transaction ledger into per-client feature rows",
		Long: `Reads the raw per-transaction ledger, groups it by client and writes one feature
row per client. Clients with non-positive yearly income are excluded and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := aggregateLedger(args[0])
			if err != nil {
				return err
			}

			if err := writeRows(cmd, output, result.Rows); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"clients":  len(result.Rows),
				"rejected": len(result.Rejected),
				"output":   output,
			}).Info("Prepared feature rows")
			for _, r := range result.Rejected {
				fmt.Fprintf(cmd.ErrOrStderr(), "rejected %s: %v\n", r.ClientID, r.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "feature CSV to write (default: stdout)")
	return cmd
}

func clusterCmd() *cobra.Command {
	var (
		ledgerPath   string
		featuresPath string
		output       string
		seed         int64
		noSave       bool
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster clients into peer groups and save a new snapshot",
		Long: `Runs the offline clustering pipeline over a raw ledger (--ledger) or over prepared
feature rows (--features): standardisation, seeded k-means, persona labelling, income
brackets and within-group percentiles. The result is saved to the configured store as a
new immutable snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var rows []types.ClientFeatureRow
			switch {
			case ledgerPath != "" && featuresPath != "":
				return fmt.Errorf("--ledger and --features are mutually exclusive")
			case ledgerPath != "":
				result, err := aggregateLedger(ledgerPath)
				if err != nil {
					return err
				}
				rows = result.Rows
			case featuresPath != "":
				var err error
				if rows, err = readFeatureFile(featuresPath); err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of --ledger or --features is required")
			}

			clusterCfg := cfg.Clustering
			if cmd.Flags().Changed("seed") {
				clusterCfg.Seed = seed
			}
			if err := clusterCfg.Validate(); err != nil {
				return err
			}

			m := metrics.New()
			clusterer := clustering.NewClusterer(&clusterCfg, log)

			var bar *progressbar.ProgressBar
			if !quiet {
				bar = newIterationBar(cmd.ErrOrStderr(), clusterCfg.MaxIterations*clusterCfg.Restarts)
			}
			clusterer.OnIteration = func(_ int, inertia float64) {
				m.ObserveIteration(inertia)
				if bar != nil {
					if err := bar.Add(1); err != nil {
						log.WithError(err).Debug("Failed to update progress bar")
					}
				}
			}

			start := time.Now()
			snapshot, err := clusterer.Run(ctx, rows)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}
			m.ObserveClustering(time.Since(start), snapshot.Inertia)

			if output != "" {
				if err := writeRows(cmd, output, snapshot.Rows); err != nil {
					return err
				}
			}

			if !noSave {
				store, err := openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()

				if err := store.SaveSnapshot(ctx, snapshot); err != nil {
					return fmt.Errorf("failed to save snapshot: %w", err)
				}
				log.WithFields(logrus.Fields{
					"snapshot_id": snapshot.ID,
					"driver":      cfg.Storage.Driver,
				}).Info("Saved snapshot")
			}

			return printJSON(cmd, snapshot.Info())
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "raw transaction ledger CSV")
	cmd.Flags().StringVar(&featuresPath, "features", "", "prepared feature CSV (output of prepare)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the clustered table to this CSV file")
	cmd.Flags().Int64Var(&seed, "seed", clustering.DefaultSeed, "k-means seed; overrides the config file")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the snapshot to the store")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")
	return cmd
}

// newIterationBar reports k-means rounds. Runs usually converge well before total, so the
// bar is finished explicitly once clustering returns.
func newIterationBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Clustering...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// writeRows writes feature rows to path, or to stdout when path is empty or "-"
func writeRows(cmd *cobra.Command, path string, rows []types.ClientFeatureRow) error {
	if path == "" || path == "-" {
		return storage.WriteRowsCSV(cmd.OutOrStdout(), rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := storage.WriteRowsCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fintech-community/peerbench/engine/analysis"
	"github.com/fintech-community/peerbench/engine/schema"
)

func compareCmd() *cobra.Command {
	var (
		tablePath  string
		snapshotID string
		fields     = make(map[string]*float64, len(schema.ProfileFields))
	)

	cmd := &cobra.Command{
		Use:   "compare [client-id]",
		Short: "Compare a client, or an ad hoc profile, with its peer cluster",
		Long: `With a client id, compares that client with the other members of its cluster.
Without one, builds a profile from the flags (absent fields take population medians),
matches it to the nearest client and compares it with that client's cluster.`,
		Example: `  engine compare 1042
  engine compare --monthly_income 4200 --monthly_expense 2900 --credit_score 690`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := loadTable(ctx, tablePath, snapshotID)
			if err != nil {
				return err
			}
			service := analysis.NewService(t, log)

			if len(args) == 1 {
				for _, name := range schema.ProfileFields {
					if cmd.Flags().Changed(name) {
						return fmt.Errorf("--%s cannot be combined with a client id", name)
					}
				}
				result, err := service.LookupByID(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			}

			values := make(map[string]float64)
			for _, name := range schema.ProfileFields {
				if cmd.Flags().Changed(name) {
					values[name] = *fields[name]
				}
			}

			validator, err := schema.NewProfileValidator()
			if err != nil {
				return err
			}
			profile, err := validator.DecodeValues(values)
			if err != nil {
				return err
			}

			result, err := service.LookupByProfile(ctx, profile)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	for _, name := range schema.ProfileFields {
		fields[name] = cmd.Flags().Float64(name, 0, fmt.Sprintf("profile %s", name))
	}
	cmd.Flags().StringVar(&tablePath, "table", "", "clustered feature CSV to compare against instead of a stored snapshot")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot id (default: configured, then latest)")
	return cmd
}

func communityCmd() *cobra.Command {
	var (
		tablePath  string
		snapshotID string
		clusters   bool
	)

	cmd := &cobra.Command{
		Use:   "community",
		Short: "Print the community summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			t, err := loadTable(ctx, tablePath, snapshotID)
			if err != nil {
				return err
			}
			service := analysis.NewService(t, log)

			if clusters {
				profiles, err := service.ClusterProfiles(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, profiles)
			}

			summary, err := service.CommunitySummary(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, summary)
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "clustered feature CSV instead of a stored snapshot")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot id (default: configured, then latest)")
	cmd.Flags().BoolVar(&clusters, "clusters", false, "print per-cluster profiles instead of the summary")
	return cmd
}

func snapshotsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.ListSnapshots(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, infos)
			}

			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tROWS\tCLUSTERS\tSEED\tITERATIONS\tINERTIA")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%.4f\n",
					info.ID, info.CreatedAt.Format(time.RFC3339), info.RowCount,
					info.Clusters, info.Seed, info.Iterations, info.Inertia)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/registry"
	"github.com/sells-group/portfolio-advisor/internal/store"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Manage client insight snapshots",
	Long:  "Commands for importing, syncing, listing and viewing client insight snapshots.",
}

// -- insights import --

var insightsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store insight snapshots from a fixture file",
	Long:  "Each client in the fixture replaces that client's stored snapshot. Other clients are left alone.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importInsights(ctx, st, path)
		if err != nil {
			return err
		}
		zap.L().Info("insights imported", zap.Int("clients", n), zap.String("file", path))
		return nil
	},
}

func importInsights(ctx context.Context, st store.Store, path string) (int, error) {
	sets, err := registry.LoadInsightsFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "insights import")
	}
	for _, set := range sets {
		if err := st.ReplaceInsightSet(ctx, set); err != nil {
			return 0, eris.Wrapf(err, "insights import: client %q", set.ClientName)
		}
	}
	return len(sets), nil
}

// -- insights sync-salesforce --

var insightsSyncSalesforceCmd = &cobra.Command{
	Use:   "sync-salesforce",
	Short: "Replace one client's snapshot with its Salesforce signals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		account, _ := cmd.Flags().GetString("account")

		sf, err := initSalesforce()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		set, err := registry.LoadInsightsFromSalesforce(ctx, sf, account, cfg.Salesforce.SignalObject, retryPolicy("salesforce"))
		if err != nil {
			return eris.Wrap(err, "insights sync-salesforce")
		}
		if err := st.ReplaceInsightSet(ctx, set); err != nil {
			return eris.Wrap(err, "insights sync-salesforce")
		}

		zap.L().Info("insights synced from salesforce",
			zap.String("client", set.ClientName),
			zap.Int("signals", len(set.Signals)),
			zap.Int("sentiment", set.Sentiment),
		)
		return nil
	},
}

// -- insights list --

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients with stored snapshots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sets, err := st.ListInsightSets(ctx)
		if err != nil {
			return eris.Wrap(err, "insights list")
		}
		if len(sets) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No clients found.")
			return nil
		}

		formatInsightSets(cmd.OutOrStdout(), sets)
		return nil
	},
}

// -- insights show --

var insightsShowCmd = &cobra.Command{
	Use:   "show <client>",
	Short: "Show a client's full snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		set, err := st.GetInsightSet(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "insights show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	},
}

func formatInsightSets(out io.Writer, sets []model.ClientInsightSet) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tSENTIMENT\tSIGNALS\tCAPTURED")
	for _, s := range sets {
		captured := "-"
		if s.CapturedAt != nil {
			captured = s.CapturedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			truncate(s.ClientName, 40),
			s.Sentiment,
			len(s.Signals),
			captured,
		)
	}
	w.Flush() //nolint:errcheck
}

func init() {
	insightsImportCmd.Flags().String("file", "", "insights fixture (json, yaml or xlsx)")
	_ = insightsImportCmd.MarkFlagRequired("file")

	insightsSyncSalesforceCmd.Flags().String("account", "", "Salesforce Account name")
	_ = insightsSyncSalesforceCmd.MarkFlagRequired("account")

	insightsCmd.AddCommand(insightsImportCmd)
	insightsCmd.AddCommand(insightsSyncSalesforceCmd)
	insightsCmd.AddCommand(insightsListCmd)
	insightsCmd.AddCommand(insightsShowCmd)
	rootCmd.AddCommand(insightsCmd)
}

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/registry"
	"github.com/sells-group/portfolio-advisor/internal/store"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the offering catalog",
	Long:  "Commands for importing, syncing and listing the stored offering catalog.",
}

// -- catalog import --

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the stored catalog from a fixture file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		path, _ := cmd.Flags().GetString("file")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := importCatalog(ctx, st, path)
		if err != nil {
			return err
		}
		zap.L().Info("catalog imported", zap.Int("offerings", n), zap.String("file", path))
		return nil
	},
}

// importCatalog loads a fixture and replaces the stored catalog with it.
// Invalid offerings are dropped with a warning; the rest are stored.
// Offerings without features or benefits are kept but flagged.
func importCatalog(ctx context.Context, st store.Store, path string) (int, error) {
	offerings, err := registry.LoadCatalogFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "catalog import")
	}
	valid := validOfferings(offerings)
	if err := st.ReplaceCatalog(ctx, valid); err != nil {
		return 0, eris.Wrap(err, "catalog import")
	}
	return len(valid), nil
}

func validOfferings(offerings []model.Offering) []model.Offering {
	out := make([]model.Offering, 0, len(offerings))
	for _, o := range offerings {
		if err := o.Validate(); err != nil {
			zap.L().Warn("skipping invalid offering", zap.String("name", o.Name), zap.Error(err))
			continue
		}
		if !o.Matchable() {
			zap.L().Warn("offering can never produce benefit evidence",
				zap.String("id", o.ID),
				zap.Int("key_features", len(o.KeyFeatures)),
				zap.Int("benefits", len(o.Benefits)),
			)
		}
		out = append(out, o)
	}
	return out
}

// -- catalog sync-notion --

var catalogSyncNotionCmd = &cobra.Command{
	Use:   "sync-notion",
	Short: "Replace the stored catalog with active offerings from Notion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		nc, err := initNotion()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		offerings, err := registry.LoadCatalogFromNotion(ctx, nc, cfg.Notion.CatalogDB, retryPolicy("notion"))
		if err != nil {
			return eris.Wrap(err, "catalog sync-notion")
		}
		if err := st.ReplaceCatalog(ctx, offerings); err != nil {
			return eris.Wrap(err, "catalog sync-notion")
		}

		zap.L().Info("catalog synced from notion",
			zap.Int("offerings", len(offerings)),
			zap.String("database", cfg.Notion.CatalogDB),
		)
		return nil
	},
}

// -- catalog list --

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored offerings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		offerings, err := st.ListOfferings(ctx)
		if err != nil {
			return eris.Wrap(err, "catalog list")
		}
		if len(offerings) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No offerings found.")
			return nil
		}

		formatOfferings(cmd.OutOrStdout(), offerings)
		return nil
	},
}

func formatOfferings(out io.Writer, offerings []model.Offering) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRACTICE\tFEATURES\tBENEFITS")
	for _, o := range offerings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			o.ID,
			truncate(o.Name, 40),
			o.Practice,
			len(o.KeyFeatures),
			len(o.Benefits),
		)
	}
	w.Flush() //nolint:errcheck
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	catalogImportCmd.Flags().String("file", "", "catalog fixture (json, yaml or xlsx)")
	_ = catalogImportCmd.MarkFlagRequired("file")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogSyncNotionCmd)
	catalogCmd.AddCommand(catalogListCmd)
	rootCmd.AddCommand(catalogCmd)
}

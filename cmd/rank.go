package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/export"
	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/ranking"
	"github.com/sells-group/portfolio-advisor/internal/registry"
	"github.com/sells-group/portfolio-advisor/internal/store"
	"github.com/sells-group/portfolio-advisor/internal/watch"
)

// rankOptions are the inputs of one `advisor rank` invocation.
type rankOptions struct {
	CatalogPath  string
	InsightsPath string
	Client       string
	Signal       string
	Top          bool
	Format       export.Format
	Output       string
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank catalog offerings for one client",
	Long: `Scores every offering in the catalog against a client's signals and prints
the ranked recommendations. The catalog and insights come from fixture files
when --catalog/--insights are given, otherwise from the configured store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		opts := rankOptions{Format: f}
		opts.CatalogPath, _ = cmd.Flags().GetString("catalog")
		opts.InsightsPath, _ = cmd.Flags().GetString("insights")
		opts.Client, _ = cmd.Flags().GetString("client")
		opts.Signal, _ = cmd.Flags().GetString("signal")
		opts.Top, _ = cmd.Flags().GetBool("top")
		opts.Output, _ = cmd.Flags().GetString("output")
		workers, _ := cmd.Flags().GetInt("workers")
		watchFiles, _ := cmd.Flags().GetBool("watch")

		if err := cfg.Validate(); err != nil {
			return err
		}
		if opts.Format == export.FormatXLSX && opts.Output == "" {
			return eris.New("--output is required for xlsx format")
		}

		var st store.Store
		if opts.CatalogPath == "" || opts.InsightsPath == "" {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		ranker := newRanker(workers)
		out := cmd.OutOrStdout()

		if !watchFiles {
			return runRank(ctx, st, ranker, opts, out)
		}

		var paths []string
		for _, p := range []string{opts.CatalogPath, opts.InsightsPath} {
			if p != "" {
				paths = append(paths, p)
			}
		}
		w, err := watch.New(watch.DefaultDebounce, paths...)
		if err != nil {
			return eris.Wrap(err, "--watch needs --catalog or --insights")
		}
		if err := runRank(ctx, st, ranker, opts, out); err != nil {
			zap.L().Error("rank failed", zap.Error(err))
		}
		zap.L().Info("watching fixtures for changes", zap.Strings("paths", paths))
		return w.Run(ctx, func(ctx context.Context) error {
			return runRank(ctx, st, ranker, opts, out)
		})
	},
}

// runRank performs one ranking pass and renders it to out, or to
// opts.Output when set. st may be nil when both fixtures are files.
func runRank(ctx context.Context, st store.Store, ranker *ranking.Ranker, opts rankOptions, out io.Writer) error {
	catalog, insights, err := loadRankInputs(ctx, st, opts)
	if err != nil {
		return err
	}

	res := ranker.Rank(catalog, insights)
	res.Matches = ranking.FilterBySignal(res.Matches, opts.Signal)
	if opts.Top {
		if best := ranking.TopRecommendation(res.Matches); best != nil {
			res.Matches = []model.RankedMatch{*best}
		}
	}

	zap.L().Info("ranked catalog",
		zap.String("client", insights.ClientName),
		zap.Int("matches", len(res.Matches)),
		zap.Int("skipped", len(res.Skipped)),
	)

	report := export.NewReport(insights.ClientName, opts.Signal, res)
	if opts.Output != "" {
		if err := export.WriteFile(opts.Output, opts.Format, report); err != nil {
			return err
		}
		zap.L().Info("wrote recommendations", zap.String("path", opts.Output))
		return nil
	}
	return export.Write(out, opts.Format, report)
}

func loadRankInputs(ctx context.Context, st store.Store, opts rankOptions) ([]model.Offering, model.ClientInsightSet, error) {
	var (
		catalog []model.Offering
		err     error
	)
	if opts.CatalogPath != "" {
		catalog, err = registry.LoadCatalogFile(opts.CatalogPath)
	} else {
		catalog, err = st.ListOfferings(ctx)
	}
	if err != nil {
		return nil, model.ClientInsightSet{}, eris.Wrap(err, "load catalog")
	}

	if opts.InsightsPath == "" {
		if opts.Client == "" {
			return nil, model.ClientInsightSet{}, eris.New("--client is required when insights come from the store")
		}
		set, err := st.GetInsightSet(ctx, opts.Client)
		if err != nil {
			return nil, model.ClientInsightSet{}, eris.Wrapf(err, "load insights for %q", opts.Client)
		}
		return catalog, set, nil
	}

	sets, err := registry.LoadInsightsFile(opts.InsightsPath)
	if err != nil {
		return nil, model.ClientInsightSet{}, eris.Wrap(err, "load insights")
	}
	set, err := pickClient(sets, opts.Client)
	return catalog, set, err
}

// pickClient selects the named client from a fixture. The name may be
// omitted when the fixture holds exactly one client.
func pickClient(sets []model.ClientInsightSet, name string) (model.ClientInsightSet, error) {
	if name == "" {
		if len(sets) == 1 {
			return sets[0], nil
		}
		return model.ClientInsightSet{}, eris.Errorf("--client is required: fixture holds %d clients", len(sets))
	}
	for _, s := range sets {
		if s.ClientName == name {
			return s, nil
		}
	}
	return model.ClientInsightSet{}, eris.Errorf("client %q not found in fixture", name)
}

func init() {
	rankCmd.Flags().String("catalog", "", "catalog fixture (json, yaml or xlsx); default reads the store")
	rankCmd.Flags().String("insights", "", "insights fixture (json, yaml or xlsx); default reads the store")
	rankCmd.Flags().String("client", "", "client name")
	rankCmd.Flags().String("signal", "", "only show offerings with evidence for this signal")
	rankCmd.Flags().Bool("top", false, "only show the top recommendation")
	rankCmd.Flags().String("format", "table", "output format: table, csv, json or xlsx")
	rankCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	rankCmd.Flags().Bool("watch", false, "re-rank whenever a fixture file changes")
	rankCmd.Flags().Int("workers", 0, "parallel offering matches (default from config)")
	rootCmd.AddCommand(rankCmd)
}

package registry

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/resilience"
	"github.com/sells-group/portfolio-advisor/pkg/salesforce"
)

// LoadInsightsFromSalesforce builds the insight set for one Account from its
// signal records, highest priority first. Records that cannot form a valid
// signal are skipped with a warning. An unknown account is an error.
func LoadInsightsFromSalesforce(ctx context.Context, c salesforce.Client, accountName, object string, policy resilience.Policy) (model.ClientInsightSet, error) {
	if accountName == "" {
		return model.ClientInsightSet{}, eris.New("registry: salesforce account name is required")
	}

	acct, err := resilience.DoVal(ctx, policy.WithName("salesforce.account"), func(ctx context.Context) (*salesforce.Account, error) {
		return salesforce.FindAccountByName(ctx, c, accountName)
	})
	if err != nil {
		return model.ClientInsightSet{}, eris.Wrap(err, "registry: load salesforce insights")
	}
	if acct == nil {
		return model.ClientInsightSet{}, eris.Errorf("registry: salesforce account %q not found", accountName)
	}

	records, err := resilience.DoVal(ctx, policy.WithName("salesforce.signals"), func(ctx context.Context) ([]salesforce.SignalRecord, error) {
		return salesforce.ListSignals(ctx, c, object, acct.ID)
	})
	if err != nil {
		return model.ClientInsightSet{}, eris.Wrap(err, "registry: load salesforce insights")
	}

	signals := SignalsFromRecords(records)
	set, err := model.NewClientInsightSet(acct.Name, clampPercent(acct.SentimentScore), signals...)
	if err != nil {
		return model.ClientInsightSet{}, eris.Wrap(err, "registry: load salesforce insights")
	}

	zap.L().Info("registry: loaded salesforce insights",
		zap.String("account", acct.Name),
		zap.Int("records", len(records)),
		zap.Int("signals", len(signals)),
	)
	return set, nil
}

// SignalsFromRecords converts signal records in order, dropping invalid
// records and repeated names.
func SignalsFromRecords(records []salesforce.SignalRecord) []model.Signal {
	signals := make([]model.Signal, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		sig, err := model.NewSignal(r.Name, int(math.Round(r.Confidence)), model.SignalKind(r.Kind))
		if err != nil {
			zap.L().Warn("registry: skipping salesforce signal",
				zap.String("record_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		if seen[sig.Name] {
			zap.L().Warn("registry: skipping duplicate salesforce signal",
				zap.String("record_id", r.ID),
				zap.String("signal", sig.Name),
			)
			continue
		}
		seen[sig.Name] = true
		signals = append(signals, sig)
	}
	return signals
}

// clampPercent bounds v before converting; NaN maps to the minimum.
func clampPercent(v float64) int {
	if math.IsNaN(v) {
		return model.MinConfidence
	}
	v = max(float64(model.MinConfidence), min(float64(model.MaxConfidence), v))
	return int(math.Round(v))
}

// Package ranking applies the matching engine across a catalog and produces
// the client-facing ordered recommendation list.
package ranking

import (
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/portfolio-advisor/internal/matcher"
	"github.com/sells-group/portfolio-advisor/internal/model"
)

// Observer receives a summary of every ranking pass.
type Observer interface {
	ObserveRanking(duration time.Duration, ranked, skipped int)
}

// SkippedOffering records an offering excluded from a ranking pass.
type SkippedOffering struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of a ranking pass.
type Result struct {
	Matches []model.RankedMatch `json:"matches"`
	Skipped []SkippedOffering   `json:"skipped"`
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithEngine overrides the matching engine.
func WithEngine(e *matcher.Engine) Option {
	return func(r *Ranker) {
		if e != nil {
			r.engine = e
		}
	}
}

// WithWorkers caps how many offerings are matched concurrently.
func WithWorkers(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(r *Ranker) {
		r.observer = o
	}
}

// Ranker scores every offering in a catalog against one insight set.
type Ranker struct {
	engine   *matcher.Engine
	workers  int
	observer Observer
}

// New creates a Ranker with the default engine and one worker per CPU.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		engine:  matcher.New(nil),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankCatalog ranks catalog by overall score, highest first. Offerings that
// fail validation are logged and left out.
func (r *Ranker) RankCatalog(catalog []model.Offering, insights model.ClientInsightSet) []model.RankedMatch {
	return r.Rank(catalog, insights).Matches
}

// Rank is RankCatalog plus the list of excluded offerings.
func (r *Ranker) Rank(catalog []model.Offering, insights model.ClientInsightSet) Result {
	start := time.Now()

	type slot struct {
		match model.RankedMatch
		err   error
	}
	slots := make([]slot, len(catalog))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range catalog {
		g.Go(func() error {
			m, err := r.engine.Match(catalog[i], insights)
			slots[i] = slot{match: m, err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Matches: make([]model.RankedMatch, 0, len(catalog)),
		Skipped: []SkippedOffering{},
	}
	for i, s := range slots {
		if s.err != nil {
			zap.L().Warn("ranking: skipping offering",
				zap.String("offering_id", catalog[i].ID),
				zap.String("offering_name", catalog[i].Name),
				zap.Error(s.err),
			)
			res.Skipped = append(res.Skipped, SkippedOffering{
				ID:     catalog[i].ID,
				Name:   catalog[i].Name,
				Reason: s.err.Error(),
			})
			continue
		}
		res.Matches = append(res.Matches, s.match)
	}

	SortByScore(res.Matches)

	elapsed := time.Since(start)
	zap.L().Debug("ranking: pass complete",
		zap.String("client", insights.ClientName),
		zap.Int("offerings", len(catalog)),
		zap.Int("ranked", len(res.Matches)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Duration("elapsed", elapsed),
	)
	if r.observer != nil {
		r.observer.ObserveRanking(elapsed, len(res.Matches), len(res.Skipped))
	}
	return res
}

// SortByScore orders matches by OverallScore descending. The sort is stable,
// so equal scores keep catalog order.
func SortByScore(matches []model.RankedMatch) {
	slices.SortStableFunc(matches, func(a, b model.RankedMatch) int {
		return b.OverallScore - a.OverallScore
	})
}

// FilterBySignal keeps the matches whose evidence names signalName, in order.
// An empty signalName means no filter and returns ranked unchanged.
func FilterBySignal(ranked []model.RankedMatch, signalName string) []model.RankedMatch {
	if signalName == "" {
		return ranked
	}
	out := make([]model.RankedMatch, 0, len(ranked))
	for _, m := range ranked {
		if m.HasEvidenceFor(signalName) {
			out = append(out, m)
		}
	}
	return out
}

// TopRecommendation returns the first match, or nil for an empty list.
func TopRecommendation(ranked []model.RankedMatch) *model.RankedMatch {
	if len(ranked) == 0 {
		return nil
	}
	top := ranked[0]
	return &top
}

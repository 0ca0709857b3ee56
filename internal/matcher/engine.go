// Package matcher scores a single offering against a client's insight set and
// explains the score with per-signal evidence.
package matcher

import (
	"math"
	"slices"

	"github.com/sells-group/portfolio-advisor/internal/model"
	"github.com/sells-group/portfolio-advisor/internal/textmatch"
)

// Engine is a stateless scorer. The zero value is not usable; use New.
type Engine struct {
	tok textmatch.Tokenizer
}

// New creates an Engine. A nil tokenizer selects the default WordTokenizer.
func New(tok textmatch.Tokenizer) *Engine {
	if tok == nil {
		tok = textmatch.NewWordTokenizer()
	}
	return &Engine{tok: tok}
}

var defaultEngine = New(nil)

// Match scores offering against insights with the default tokenizer.
func Match(offering model.Offering, insights model.ClientInsightSet) (model.RankedMatch, error) {
	return defaultEngine.Match(offering, insights)
}

// scoredSignal carries the intermediate result for one signal.
type scoredSignal struct {
	position     int
	contribution float64
	evidence     model.MatchEvidence
}

// Match computes the RankedMatch for one (offering, insights) pair. It fails
// only with a *model.ValidationError, and never mutates its inputs.
func (e *Engine) Match(offering model.Offering, insights model.ClientInsightSet) (model.RankedMatch, error) {
	if err := offering.Validate(); err != nil {
		return model.RankedMatch{}, err
	}
	for _, s := range insights.Signals {
		if err := s.ValidateConfidence(); err != nil {
			return model.RankedMatch{}, err
		}
	}

	result := model.RankedMatch{
		Offering:      offering.Clone(),
		MatchEvidence: []model.MatchEvidence{},
	}
	if len(insights.Signals) == 0 {
		return result, nil
	}

	corpus := e.offeringTokens(offering)
	benefitTokens := make([][]string, len(offering.Benefits))
	for i, b := range offering.Benefits {
		benefitTokens[i] = e.tok.Tokens(b)
	}

	var total float64
	var scored []scoredSignal
	for pos, s := range insights.Signals {
		terms := textmatch.Terms(e.tok, s.Name)
		fraction := relevanceFraction(terms, corpus)
		if fraction == 0 {
			continue
		}
		contribution := fraction * float64(s.Confidence) / 100
		total += contribution
		scored = append(scored, scoredSignal{
			position:     pos,
			contribution: contribution,
			evidence: model.MatchEvidence{
				ChallengeName:   s.Name,
				ConfidenceScore: clampScore(math.Round(contribution * 100)),
				MatchedBenefits: matchBenefits(terms, offering.Benefits, benefitTokens),
			},
		})
	}

	slices.SortStableFunc(scored, func(a, b scoredSignal) int {
		if a.evidence.ConfidenceScore != b.evidence.ConfidenceScore {
			return b.evidence.ConfidenceScore - a.evidence.ConfidenceScore
		}
		return a.position - b.position
	})
	for _, s := range scored {
		result.MatchEvidence = append(result.MatchEvidence, s.evidence)
	}

	result.OverallScore = clampScore(math.Round(100 * total / float64(max(1, len(insights.Signals)))))
	return result, nil
}

// offeringTokens tokenizes every descriptive field of the offering.
func (e *Engine) offeringTokens(o model.Offering) []string {
	var tokens []string
	for _, group := range [][]string{o.KeyFeatures, o.Benefits, o.Tags, {o.Description}} {
		for _, text := range group {
			tokens = append(tokens, e.tok.Tokens(text)...)
		}
	}
	return tokens
}

// relevanceFraction is the share of terms present in tokens. A signal with
// no salient terms is irrelevant.
func relevanceFraction(terms, tokens []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	return float64(textmatch.CountShared(terms, tokens)) / float64(len(terms))
}

// matchBenefits returns the benefits sharing at least one term, most shared
// first, ties in catalog order.
func matchBenefits(terms []string, benefits []string, benefitTokens [][]string) []string {
	type hit struct {
		index  int
		shared int
	}
	var hits []hit
	for i := range benefits {
		if n := textmatch.CountShared(terms, benefitTokens[i]); n > 0 {
			hits = append(hits, hit{index: i, shared: n})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		if a.shared != b.shared {
			return b.shared - a.shared
		}
		return a.index - b.index
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = benefits[h.index]
	}
	return out
}

func clampScore(v float64) int {
	return int(math.Max(0, math.Min(100, v)))
}

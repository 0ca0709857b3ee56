package model

import "encoding/json"

// MatchEvidence is one signal's contribution to a match.
type MatchEvidence struct {
	ChallengeName   string   `json:"challengeName"`
	ConfidenceScore int      `json:"confidenceScore"`
	MatchedBenefits []string `json:"matchedBenefits"`
}

// RankedMatch is the scored association between one Offering and one
// client's signal set. It is built fresh per matching pass.
type RankedMatch struct {
	Offering
	OverallScore  int             `json:"overallScore"`
	MatchEvidence []MatchEvidence `json:"matchEvidence"`
}

// HasEvidenceFor reports whether any evidence entry names the signal.
func (m RankedMatch) HasEvidenceFor(signalName string) bool {
	for _, ev := range m.MatchEvidence {
		if ev.ChallengeName == signalName {
			return true
		}
	}
	return false
}

// MarshalJSON flattens the embedded offering. Every key is always present:
// list fields are arrays, never null, and empty strings stay "".
func (m RankedMatch) MarshalJSON() ([]byte, error) {
	type flat struct {
		ID            string          `json:"id"`
		Name          string          `json:"name"`
		Description   string          `json:"description"`
		KeyFeatures   []string        `json:"keyFeatures"`
		Benefits      []string        `json:"benefits"`
		Practice      string          `json:"practice"`
		Tags          []string        `json:"tags"`
		OverallScore  int             `json:"overallScore"`
		MatchEvidence []MatchEvidence `json:"matchEvidence"`
	}
	evidence := make([]MatchEvidence, len(m.MatchEvidence))
	for i, ev := range m.MatchEvidence {
		ev.MatchedBenefits = nonNil(ev.MatchedBenefits)
		evidence[i] = ev
	}
	return json.Marshal(flat{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		KeyFeatures:   nonNil(m.KeyFeatures),
		Benefits:      nonNil(m.Benefits),
		Practice:      m.Practice,
		Tags:          nonNil(m.Tags),
		OverallScore:  m.OverallScore,
		MatchEvidence: evidence,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

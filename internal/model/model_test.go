package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferingValidate(t *testing.T) {
	tests := []struct {
		name    string
		o       Offering
		wantErr string
	}{
		{"valid", Offering{ID: "s1", Name: "Cloud Migration"}, ""},
		{"missing id", Offering{Name: "Cloud Migration"}, "id is required"},
		{"blank id", Offering{ID: "  ", Name: "Cloud Migration"}, "id is required"},
		{"missing name", Offering{ID: "s1"}, "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOfferingMatchable(t *testing.T) {
	assert.True(t, Offering{KeyFeatures: []string{"a"}, Benefits: []string{"b"}}.Matchable())
	assert.False(t, Offering{KeyFeatures: []string{"a"}}.Matchable())
	assert.False(t, Offering{Benefits: []string{"b"}}.Matchable())
}

func TestOfferingClone_IsDeep(t *testing.T) {
	o := Offering{ID: "s1", Name: "n", KeyFeatures: []string{"f"}, Benefits: []string{"b"}, Tags: []string{"t"}}
	c := o.Clone()
	c.KeyFeatures[0] = "changed"
	c.Benefits[0] = "changed"
	c.Tags[0] = "changed"
	assert.Equal(t, "f", o.KeyFeatures[0])
	assert.Equal(t, "b", o.Benefits[0])
	assert.Equal(t, "t", o.Tags[0])
}

func TestCloneOfferings(t *testing.T) {
	assert.Nil(t, CloneOfferings(nil))
	src := []Offering{{ID: "a", Benefits: []string{"x"}}}
	dst := CloneOfferings(src)
	dst[0].Benefits[0] = "y"
	assert.Equal(t, "x", src[0].Benefits[0])
}

func TestFindOffering(t *testing.T) {
	catalog := []Offering{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	o, ok := FindOffering(catalog, "b")
	require.True(t, ok)
	assert.Equal(t, "B", o.Name)
	_, ok = FindOffering(catalog, "c")
	assert.False(t, ok)
}

func TestParseSignalKind(t *testing.T) {
	k, err := ParseSignalKind("")
	require.NoError(t, err)
	assert.Equal(t, SignalChallenge, k)

	k, err = ParseSignalKind(" Budget ")
	require.NoError(t, err)
	assert.Equal(t, SignalBudget, k)

	_, err = ParseSignalKind("rumour")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestNewSignal(t *testing.T) {
	s, err := NewSignal("  Data Migration Complexity ", 76, "")
	require.NoError(t, err)
	assert.Equal(t, "Data Migration Complexity", s.Name)
	assert.Equal(t, SignalChallenge, s.Kind)

	_, err = NewSignal("", 50, SignalTopic)
	assert.ErrorContains(t, err, "name is required")

	for _, c := range []int{-1, 101} {
		_, err = NewSignal("x", c, SignalTopic)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "confidence")
	}

	_, err = NewSignal("x", 0, SignalTopic)
	assert.NoError(t, err)
	_, err = NewSignal("x", 100, SignalTopic)
	assert.NoError(t, err)
}

func TestNewClientInsightSet(t *testing.T) {
	a, _ := NewSignal("Legacy System Integration Challenges", 89, SignalChallenge)
	b, _ := NewSignal("Data Migration Complexity", 76, SignalChallenge)

	set, err := NewClientInsightSet("Acme", 72, a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"Legacy System Integration Challenges", "Data Migration Complexity"}, set.SignalNames())

	_, err = NewClientInsightSet("", 72, a)
	assert.ErrorContains(t, err, "clientName")

	_, err = NewClientInsightSet("Acme", 120, a)
	assert.ErrorContains(t, err, "sentiment")

	_, err = NewClientInsightSet("Acme", 50, a, a)
	assert.ErrorContains(t, err, "duplicate signal name")

	_, err = NewClientInsightSet("Acme", 50, Signal{Name: "x", Confidence: 400})
	assert.ErrorContains(t, err, "confidence")
}

func TestClientInsightSetClone(t *testing.T) {
	now := time.Now()
	set := ClientInsightSet{ClientName: "Acme", Signals: []Signal{{Name: "a", Confidence: 1}}, CapturedAt: &now}
	c := set.Clone()
	c.Signals[0].Name = "b"
	*c.CapturedAt = now.Add(time.Hour)
	assert.Equal(t, "a", set.Signals[0].Name)
	assert.Equal(t, now, *set.CapturedAt)
}

func TestValidationError_SurvivesWrapping(t *testing.T) {
	err := eris.Wrap(Offering{Name: "x"}.Validate(), "ranking: match")
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(eris.New("other")))
}

func TestRankedMatch_JSONContract(t *testing.T) {
	m := RankedMatch{
		Offering:     Offering{ID: "s1", Name: "Modernization", Benefits: []string{"lower costs"}},
		OverallScore: 22,
		MatchEvidence: []MatchEvidence{
			{ChallengeName: "Legacy System Integration Challenges", ConfidenceScore: 22},
		},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "s1", raw["id"])
	assert.Equal(t, float64(22), raw["overallScore"])
	assert.Equal(t, []any{}, raw["keyFeatures"])
	assert.Equal(t, []any{}, raw["tags"])
	ev := raw["matchEvidence"].([]any)[0].(map[string]any)
	assert.Equal(t, "Legacy System Integration Challenges", ev["challengeName"])
	assert.Equal(t, []any{}, ev["matchedBenefits"])

	var back RankedMatch
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "s1", back.ID)
	assert.Equal(t, 22, back.OverallScore)
	assert.True(t, back.HasEvidenceFor("Legacy System Integration Challenges"))
	assert.False(t, back.HasEvidenceFor("Data Migration Complexity"))
}

func TestRankedMatch_EmptyEvidenceIsArray(t *testing.T) {
	data, err := json.Marshal(RankedMatch{Offering: Offering{ID: "s1", Name: "n"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"matchEvidence":[]`)
}

func TestRankedMatch_EmptyStringsAreEmitted(t *testing.T) {
	data, err := json.Marshal(RankedMatch{Offering: Offering{ID: "s1", Name: "n"}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "description")
	require.Contains(t, raw, "practice")
	assert.Equal(t, "", raw["description"])
	assert.Equal(t, "", raw["practice"])
}

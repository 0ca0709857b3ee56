package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// SignalKind categorizes a detected client fact.
type SignalKind string

// Signal kinds.
const (
	SignalChallenge   SignalKind = "challenge"
	SignalTopic       SignalKind = "topic"
	SignalBudget      SignalKind = "budget"
	SignalTimeline    SignalKind = "timeline"
	SignalCompetitive SignalKind = "competitive"
	SignalInitiative  SignalKind = "initiative"
)

var signalKinds = []SignalKind{
	SignalChallenge, SignalTopic, SignalBudget,
	SignalTimeline, SignalCompetitive, SignalInitiative,
}

// ParseSignalKind maps a raw string to a SignalKind. The empty string maps
// to SignalChallenge.
func ParseSignalKind(s string) (SignalKind, error) {
	k := SignalKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return SignalChallenge, nil
	}
	if slices.Contains(signalKinds, k) {
		return k, nil
	}
	return "", invalid("signal", "", "kind", fmt.Sprintf("has unknown value %q", s))
}

// Confidence and sentiment bounds.
const (
	MinConfidence = 0
	MaxConfidence = 100
)

// Signal is a single detected client fact with a detection strength.
type Signal struct {
	Name       string     `json:"name" yaml:"name"`
	Confidence int        `json:"confidence" yaml:"confidence"`
	Kind       SignalKind `json:"kind,omitempty" yaml:"kind"`
}

// NewSignal builds a validated Signal. An empty kind defaults to challenge.
func NewSignal(name string, confidence int, kind SignalKind) (Signal, error) {
	k, err := ParseSignalKind(string(kind))
	if err != nil {
		return Signal{}, err
	}
	s := Signal{Name: strings.TrimSpace(name), Confidence: confidence, Kind: k}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

// Validate enforces a non-empty name and a confidence within [0,100].
func (s Signal) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("signal", "", "name", "is required")
	}
	if err := s.ValidateConfidence(); err != nil {
		return err
	}
	if _, err := ParseSignalKind(string(s.Kind)); err != nil {
		return err
	}
	return nil
}

// ValidateConfidence checks only the confidence range.
func (s Signal) ValidateConfidence() error {
	if s.Confidence < MinConfidence || s.Confidence > MaxConfidence {
		return invalid("signal", s.Name, "confidence",
			fmt.Sprintf("must be in [%d,%d], got %d", MinConfidence, MaxConfidence, s.Confidence))
	}
	return nil
}

// ClientInsightSet aggregates the signals for one client at one point in
// time. Sets are replaced wholesale, never mutated in place.
type ClientInsightSet struct {
	ClientName string     `json:"clientName" yaml:"clientName"`
	Signals    []Signal   `json:"signals" yaml:"signals"`
	Sentiment  int        `json:"sentiment" yaml:"sentiment"`
	CapturedAt *time.Time `json:"capturedAt,omitempty" yaml:"capturedAt"`
}

// NewClientInsightSet builds a validated insight snapshot.
func NewClientInsightSet(clientName string, sentiment int, signals ...Signal) (ClientInsightSet, error) {
	set := ClientInsightSet{
		ClientName: strings.TrimSpace(clientName),
		Sentiment:  sentiment,
		Signals:    slices.Clone(signals),
	}
	if err := set.Validate(); err != nil {
		return ClientInsightSet{}, err
	}
	return set, nil
}

// Validate checks the client name, sentiment range, every signal and
// signal-name uniqueness.
func (c ClientInsightSet) Validate() error {
	if strings.TrimSpace(c.ClientName) == "" {
		return invalid("insight_set", "", "clientName", "is required")
	}
	if c.Sentiment < MinConfidence || c.Sentiment > MaxConfidence {
		return invalid("insight_set", c.ClientName, "sentiment",
			fmt.Sprintf("must be in [%d,%d], got %d", MinConfidence, MaxConfidence, c.Sentiment))
	}
	seen := make(map[string]bool, len(c.Signals))
	for _, s := range c.Signals {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return invalid("insight_set", c.ClientName, "signals", fmt.Sprintf("duplicate signal name %q", s.Name))
		}
		seen[s.Name] = true
	}
	return nil
}

// SignalNames returns signal names in priority order.
func (c ClientInsightSet) SignalNames() []string {
	names := make([]string, len(c.Signals))
	for i, s := range c.Signals {
		names[i] = s.Name
	}
	return names
}

// Clone returns a deep copy.
func (c ClientInsightSet) Clone() ClientInsightSet {
	c.Signals = slices.Clone(c.Signals)
	if c.CapturedAt != nil {
		t := *c.CapturedAt
		c.CapturedAt = &t
	}
	return c
}

package model

import (
	"slices"
	"strings"
)

// Offering is a catalog entry describing a sellable solution.
type Offering struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	KeyFeatures []string `json:"keyFeatures" yaml:"keyFeatures"`
	Benefits    []string `json:"benefits" yaml:"benefits"`
	Practice    string   `json:"practice,omitempty" yaml:"practice"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// Validate checks the fields the matching engine requires.
func (o Offering) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return invalid("offering", o.Name, "id", "is required")
	}
	if strings.TrimSpace(o.Name) == "" {
		return invalid("offering", o.ID, "name", "is required")
	}
	return nil
}

// Matchable reports whether the offering can produce benefit evidence.
// Offerings without features or benefits are still scored.
func (o Offering) Matchable() bool {
	return len(o.KeyFeatures) > 0 && len(o.Benefits) > 0
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (o Offering) Clone() Offering {
	o.KeyFeatures = slices.Clone(o.KeyFeatures)
	o.Benefits = slices.Clone(o.Benefits)
	o.Tags = slices.Clone(o.Tags)
	return o
}

// CloneOfferings deep-copies a catalog.
func CloneOfferings(catalog []Offering) []Offering {
	if catalog == nil {
		return nil
	}
	out := make([]Offering, len(catalog))
	for i := range catalog {
		out[i] = catalog[i].Clone()
	}
	return out
}

// FindOffering returns the offering with the given id.
func FindOffering(catalog []Offering, id string) (Offering, bool) {
	for _, o := range catalog {
		if o.ID == id {
			return o, true
		}
	}
	return Offering{}, false
}

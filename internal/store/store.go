package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-advisor/internal/model"
)

// ErrNotFound is returned when an offering or insight set does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CatalogRepository is read access to the offering catalog. Offerings are
// returned in catalog order.
type CatalogRepository interface {
	ListOfferings(ctx context.Context) ([]model.Offering, error)
	GetOffering(ctx context.Context, id string) (model.Offering, error)
}

// InsightRepository is read access to client insight snapshots, keyed by
// client name.
type InsightRepository interface {
	ListInsightSets(ctx context.Context) ([]model.ClientInsightSet, error)
	GetInsightSet(ctx context.Context, clientName string) (model.ClientInsightSet, error)
}

// Store persists the catalog and insight snapshots. Writes replace data
// wholesale; nothing is updated in place.
type Store interface {
	CatalogRepository
	InsightRepository

	// ReplaceCatalog swaps the entire catalog for offerings, keeping their order.
	ReplaceCatalog(ctx context.Context, offerings []model.Offering) error
	// ReplaceInsightSet stores a new snapshot for set.ClientName, discarding
	// any previous one. A nil CapturedAt is stamped with the current time.
	ReplaceInsightSet(ctx context.Context, set model.ClientInsightSet) error

	Migrate(ctx context.Context) error
	Close() error
}

// validateCatalog rejects invalid offerings and duplicate ids before any write.
func validateCatalog(offerings []model.Offering) error {
	seen := make(map[string]struct{}, len(offerings))
	for _, o := range offerings {
		if err := o.Validate(); err != nil {
			return err
		}
		if _, dup := seen[o.ID]; dup {
			return eris.Errorf("store: duplicate offering id %q", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

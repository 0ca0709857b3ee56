package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-advisor/internal/model"
)

// MemoryStore implements Store in process memory. Every read returns a deep
// copy so callers can never mutate a stored snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	catalog  []model.Offering
	insights map[string]model.ClientInsightSet
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{insights: make(map[string]model.ClientInsightSet)}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) ListOfferings(context.Context) ([]model.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := model.CloneOfferings(m.catalog)
	if out == nil {
		out = []model.Offering{}
	}
	return out, nil
}

func (m *MemoryStore) GetOffering(_ context.Context, id string) (model.Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := model.FindOffering(m.catalog, id)
	if !ok {
		return model.Offering{}, eris.Wrapf(ErrNotFound, "memory: offering %s", id)
	}
	return o.Clone(), nil
}

func (m *MemoryStore) ReplaceCatalog(_ context.Context, offerings []model.Offering) error {
	if err := validateCatalog(offerings); err != nil {
		return eris.Wrap(err, "memory: replace catalog")
	}
	catalog := model.CloneOfferings(offerings)
	m.mu.Lock()
	m.catalog = catalog
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListInsightSets(context.Context) ([]model.ClientInsightSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ClientInsightSet, 0, len(m.insights))
	for _, set := range m.insights {
		out = append(out, set.Clone())
	}
	slices.SortFunc(out, func(a, b model.ClientInsightSet) int {
		return strings.Compare(a.ClientName, b.ClientName)
	})
	return out, nil
}

func (m *MemoryStore) GetInsightSet(_ context.Context, clientName string) (model.ClientInsightSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.insights[clientName]
	if !ok {
		return model.ClientInsightSet{}, eris.Wrapf(ErrNotFound, "memory: insight set %s", clientName)
	}
	return set.Clone(), nil
}

func (m *MemoryStore) ReplaceInsightSet(_ context.Context, set model.ClientInsightSet) error {
	snapshot, err := prepareInsightSet(set)
	if err != nil {
		return eris.Wrap(err, "memory: replace insight set")
	}
	m.mu.Lock()
	m.insights[snapshot.ClientName] = snapshot
	m.mu.Unlock()
	return nil
}

// prepareInsightSet validates set and returns a normalized deep copy with
// default signal kinds and a capture time filled in.
func prepareInsightSet(set model.ClientInsightSet) (model.ClientInsightSet, error) {
	snapshot := set.Clone()
	snapshot.ClientName = strings.TrimSpace(snapshot.ClientName)
	for i := range snapshot.Signals {
		if snapshot.Signals[i].Kind == "" {
			snapshot.Signals[i].Kind = model.SignalChallenge
		}
	}
	if err := snapshot.Validate(); err != nil {
		return model.ClientInsightSet{}, err
	}
	if snapshot.Signals == nil {
		snapshot.Signals = []model.Signal{}
	}
	if snapshot.CapturedAt == nil {
		now := time.Now().UTC()
		snapshot.CapturedAt = &now
	}
	return snapshot, nil
}

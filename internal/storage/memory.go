package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jkaninda/actiondex/internal/domain"
)

// MemoryStore implements Store with in-memory maps. Used when persistence
// is disabled and as the fixture store in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	ads         map[string]domain.Advertisement
	discoveries []domain.DiscoveryRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ads: make(map[string]domain.Advertisement)}
}

func (s *MemoryStore) SaveAdvertisement(_ context.Context, ad *domain.Advertisement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ads[ad.Name] = *ad
	return nil
}

func (s *MemoryStore) DeleteAdvertisement(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ads[name]; !ok {
		return fmt.Errorf("advertisement %q: %w", name, ErrNotFound)
	}
	delete(s.ads, name)
	return nil
}

func (s *MemoryStore) DeleteAgentAdvertisements(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, ad := range s.ads {
		if ad.AgentID == agentID {
			delete(s.ads, name)
		}
	}
	return nil
}

func (s *MemoryStore) ListAdvertisements(_ context.Context) ([]domain.Advertisement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Advertisement, 0, len(s.ads))
	for _, ad := range s.ads {
		out = append(out, ad)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) SaveDiscovery(_ context.Context, rec *domain.DiscoveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discoveries = append(s.discoveries, *rec)
	return nil
}

func (s *MemoryStore) ListDiscoveries(_ context.Context, limit int) ([]domain.DiscoveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DiscoveryRecord, len(s.discoveries))
	copy(out, s.discoveries)
	// Newest first, matching the database backends.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Driver() string { return DriverMemory }

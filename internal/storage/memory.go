package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scholarship-tracker/finder/pkg/scholarship"
)

// MemoryStore is an in-memory Store used in tests and dry runs. It mirrors
// the Postgres backend's upsert-by-URL semantics.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byURL  map[string]*scholarship.Scholarship
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byURL:  make(map[string]*scholarship.Scholarship),
	}
}

// Upsert inserts the record or replaces the one sharing its URL.
func (ms *MemoryStore) Upsert(_ context.Context, s *scholarship.Scholarship) (*scholarship.Scholarship, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored := *s
	if stored.Checksum == "" {
		stored.Checksum = stored.Fingerprint()
	}
	now := time.Now().UTC()
	if existing, ok := ms.byURL[s.URL]; ok {
		stored.ID = existing.ID
		stored.DiscoveredAt = existing.DiscoveredAt
	} else {
		stored.ID = ms.nextID
		ms.nextID++
		if stored.DiscoveredAt.IsZero() {
			stored.DiscoveredAt = now
		}
	}
	stored.LastVerifiedAt = now
	stored.UpdatedAt = now

	ms.byURL[s.URL] = &stored
	out := stored
	return &out, nil
}

// FindByChecksum returns the record with the fingerprint, or nil. Records
// marked invalid are never duplicate candidates.
func (ms *MemoryStore) FindByChecksum(_ context.Context, checksum string) (*scholarship.Scholarship, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, s := range ms.byURL {
		if s.Checksum == checksum && s.Status != scholarship.StatusInvalid {
			out := *s
			return &out, nil
		}
	}
	return nil, nil
}

// FindByURL returns the non-invalid record stored under the URL, or nil.
func (ms *MemoryStore) FindByURL(_ context.Context, url string) (*scholarship.Scholarship, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if s, ok := ms.byURL[url]; ok && s.Status != scholarship.StatusInvalid {
		out := *s
		return &out, nil
	}
	return nil, nil
}

// FindSimilar returns recent records with a resembling organization.
func (ms *MemoryStore) FindSimilar(_ context.Context, organization string, since time.Time, limit int) ([]*scholarship.Scholarship, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	needle := strings.ToLower(organization)
	var results []*scholarship.Scholarship
	for _, s := range ms.byURL {
		if s.DiscoveredAt.Before(since) || s.Status == scholarship.StatusInvalid {
			continue
		}
		org := strings.ToLower(s.Organization)
		if needle != "" && !strings.Contains(org, needle) && !strings.Contains(needle, org) {
			continue
		}
		out := *s
		results = append(results, &out)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].DiscoveredAt.After(results[j].DiscoveredAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Recent returns the most recently updated records.
func (ms *MemoryStore) Recent(_ context.Context, limit int) ([]*scholarship.Scholarship, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	results := make([]*scholarship.Scholarship, 0, len(ms.byURL))
	for _, s := range ms.byURL {
		out := *s
		results = append(results, &out)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of stored records.
func (ms *MemoryStore) Count(_ context.Context) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return int64(len(ms.byURL)), nil
}

// Health always reports healthy.
func (ms *MemoryStore) Health(_ context.Context) error { return nil }

// Close is a no-op.
func (ms *MemoryStore) Close() {}

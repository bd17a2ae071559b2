package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var ErrNotFound = errors.New("catalog record not found")

// PersistenceError reports a failed catalog write for one identity.
type PersistenceError struct {
	Identity models.Identity
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %q: %v", e.Identity.String(), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store persists records keyed by case-normalized identity. Upsert inserts a
// missing identity or updates category, attributes, images, sources and
// last-updated of an existing one, leaving identity fields untouched.
type Store interface {
	Find(ctx context.Context, id models.Identity) (*models.ProductRecord, error)
	Upsert(ctx context.Context, rec *models.ProductRecord) error
	List(ctx context.Context, category string, limit, offset int) ([]*models.ProductRecord, error)
	Count(ctx context.Context) (int, error)
}

// MemoryStore is a Store for tests and runs without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.ProductRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.ProductRecord),
		now:     time.Now,
	}
}

func (s *MemoryStore) Find(ctx context.Context, id models.Identity) (*models.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id.Key()]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Upsert(ctx context.Context, rec *models.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Identity: rec.Identity, Err: err}
	}
	if problems := rec.Validate(); len(problems) > 0 {
		return &PersistenceError{Identity: rec.Identity, Err: fmt.Errorf("invalid record: %v", problems)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Identity.Key()
	next := rec.Clone()
	if existing, ok := s.records[key]; ok {
		next.Identity = existing.Identity
		next.LastUpdated = existing.LastUpdated
		next.Touch(s.now())
	} else {
		next.LastUpdated = s.now()
	}
	s.records[key] = next
	rec.LastUpdated = next.LastUpdated
	return nil
}

func (s *MemoryStore) List(ctx context.Context, category string, limit, offset int) ([]*models.ProductRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k, r := range s.records {
		if category == "" || r.Category == category {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if offset > len(keys) {
		offset = len(keys)
	}
	keys = keys[offset:]
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}

	out := make([]*models.ProductRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.records[k].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Restore loads records as-is, keeping their LastUpdated. Later records win on
// identity collisions.
func (s *MemoryStore) Restore(records []*models.ProductRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec == nil {
			continue
		}
		s.records[rec.Identity.Key()] = rec.Clone()
	}
}

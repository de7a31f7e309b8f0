// Package testhelpers provides in-memory stores and fakes shared by the
// autotagger tests.
package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/taxonomy"
)

// TermStore is an in-memory term and association store. Term creation is
// serialized per (taxonomy, name).
type TermStore struct {
	mu       sync.RWMutex
	keyLocks map[string]*sync.Mutex
	terms    map[string]domain.Term
	nextID   int64
	// assoc[contentID][taxonomy] = term ids
	assoc map[string]map[string][]int64
	// failures injects errors per taxonomy.
	failures map[string]error

	createCalls int
}

// NewTermStore creates an empty store.
func NewTermStore() *TermStore {
	return &TermStore{
		keyLocks: make(map[string]*sync.Mutex),
		terms:    make(map[string]domain.Term),
		assoc:    make(map[string]map[string][]int64),
		failures: make(map[string]error),
	}
}

func termKey(taxonomyName, name string) string {
	return taxonomyName + "\x00" + name
}

func (s *TermStore) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[key] = l
	}
	return l
}

// FailTaxonomy makes every call touching taxonomyName return err.
func (s *TermStore) FailTaxonomy(taxonomyName string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[taxonomyName] = err
}

func (s *TermStore) failure(taxonomyName string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failures[taxonomyName]
}

// FindOrCreate returns the term (taxonomyName, name), creating it if needed.
func (s *TermStore) FindOrCreate(_ context.Context, taxonomyName, name string, meta domain.TermMeta) (domain.Term, error) {
	if err := s.failure(taxonomyName); err != nil {
		return domain.Term{}, err
	}

	key := termKey(taxonomyName, name)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	term, ok := s.terms[key]
	if !ok {
		s.nextID++
		s.createCalls++
		term = domain.Term{ID: s.nextID, Taxonomy: taxonomyName, Name: name, Key: taxonomy.Slug(name)}
	}
	if meta.Canonical != "" {
		term.Canonical = meta.Canonical
	}
	if meta.ResourceURI != "" {
		term.ResourceURI = meta.ResourceURI
	}
	s.terms[key] = term
	return term, nil
}

// SetTermAssociations replaces the associations of contentID within taxonomyName.
func (s *TermStore) SetTermAssociations(_ context.Context, contentID, taxonomyName string, termIDs []int64) error {
	if err := s.failure(taxonomyName); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byTaxonomy, ok := s.assoc[contentID]
	if !ok {
		byTaxonomy = make(map[string][]int64)
		s.assoc[contentID] = byTaxonomy
	}
	ids := make([]int64, len(termIDs))
	copy(ids, termIDs)
	byTaxonomy[taxonomyName] = ids
	return nil
}

// GetTermAssociations lists the terms linked to contentID within taxonomyName, sorted by name.
func (s *TermStore) GetTermAssociations(_ context.Context, contentID, taxonomyName string) ([]domain.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[int64]domain.Term, len(s.terms))
	for _, t := range s.terms {
		byID[t.ID] = t
	}

	out := make([]domain.Term, 0)
	for _, id := range s.assoc[contentID][taxonomyName] {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AssociatedNames is GetTermAssociations reduced to names.
func (s *TermStore) AssociatedNames(contentID, taxonomyName string) []string {
	terms, _ := s.GetTermAssociations(context.Background(), contentID, taxonomyName)
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		names = append(names, t.Name)
	}
	return names
}

// TermCount returns the number of distinct terms in taxonomyName.
func (s *TermStore) TermCount(taxonomyName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.terms {
		if t.Taxonomy == taxonomyName {
			n++
		}
	}
	return n
}

// Term returns a stored term.
func (s *TermStore) Term(taxonomyName, name string) (domain.Term, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.terms[termKey(taxonomyName, name)]
	return t, ok
}

// ContentStore is an in-memory content repository.
type ContentStore struct {
	mu    sync.RWMutex
	items map[string]domain.ContentItem
}

// NewContentStore creates a store holding items.
func NewContentStore(items ...domain.ContentItem) *ContentStore {
	s := &ContentStore{items: make(map[string]domain.ContentItem, len(items))}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

// Put adds or replaces an item.
func (s *ContentStore) Put(item domain.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// GetContent returns the item or ErrContentNotFound.
func (s *ContentStore) GetContent(_ context.Context, id string) (*domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
	}
	return &item, nil
}

// ListIDs returns ids sorted, optionally filtered by status.
func (s *ContentStore) ListIDs(_ context.Context, status domain.ContentStatus, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.items))
	for id, item := range s.items {
		if status == "" || item.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

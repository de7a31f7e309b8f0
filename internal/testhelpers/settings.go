package testhelpers

import (
	"context"
	"sync"

	"github.com/jonesrussell/north-cloud/autotagger/internal/database"
	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

// SettingsStore is an in-memory settings.Store.
type SettingsStore struct {
	mu        sync.RWMutex
	features  map[domain.FeatureName]domain.FeatureConfig
	tagFilter *database.TagFilterRecord
	options   map[string]string
	// Err, when set, is returned by every call.
	Err error
}

// NewSettingsStore creates a store holding cfgs.
func NewSettingsStore(cfgs ...domain.FeatureConfig) *SettingsStore {
	s := &SettingsStore{
		features: make(map[domain.FeatureName]domain.FeatureConfig),
		options:  make(map[string]string),
	}
	for _, cfg := range cfgs {
		s.features[cfg.Feature] = cfg
	}
	return s
}

// GetFeature returns the stored config or nil.
func (s *SettingsStore) GetFeature(_ context.Context, f domain.FeatureName) (*domain.FeatureConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	cfg, ok := s.features[f]
	if !ok {
		return nil, nil //nolint:nilnil // absent is not an error
	}
	return &cfg, nil
}

// ListFeatures returns the stored configs in feature order.
func (s *SettingsStore) ListFeatures(_ context.Context) ([]domain.FeatureConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]domain.FeatureConfig, 0, len(s.features))
	for _, f := range domain.AllFeatures {
		if cfg, ok := s.features[f]; ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// UpsertFeature stores cfg.
func (s *SettingsStore) UpsertFeature(_ context.Context, cfg domain.FeatureConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.features[cfg.Feature] = cfg
	return nil
}

// GetTagFilter returns the stored tag filter or nil.
func (s *SettingsStore) GetTagFilter(_ context.Context) (*database.TagFilterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.tagFilter == nil {
		return nil, nil //nolint:nilnil // absent is not an error
	}
	rec := *s.tagFilter
	return &rec, nil
}

// UpsertTagFilter stores rec.
func (s *SettingsStore) UpsertTagFilter(_ context.Context, rec database.TagFilterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.tagFilter = &rec
	return nil
}

// GetOption returns a stored option.
func (s *SettingsStore) GetOption(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return "", false, s.Err
	}
	v, ok := s.options[key]
	return v, ok, nil
}

// SetOption stores an option.
func (s *SettingsStore) SetOption(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.options[key] = value
	return nil
}

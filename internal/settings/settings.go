// Package settings exposes per-feature configuration, the tag filter policy
// and persisted options, falling back to defaults when nothing is stored.
package settings

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/autotagger/internal/database"
	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
	"github.com/jonesrussell/north-cloud/autotagger/internal/tagfilter"
	"github.com/jonesrussell/north-cloud/autotagger/internal/taxonomy"
)

// Store is the persistence the service reads and writes.
// *database.SettingsRepository implements it.
type Store interface {
	GetFeature(ctx context.Context, f domain.FeatureName) (*domain.FeatureConfig, error)
	ListFeatures(ctx context.Context) ([]domain.FeatureConfig, error)
	UpsertFeature(ctx context.Context, cfg domain.FeatureConfig) error
	GetTagFilter(ctx context.Context) (*database.TagFilterRecord, error)
	UpsertTagFilter(ctx context.Context, rec database.TagFilterRecord) error
	GetOption(ctx context.Context, key string) (string, bool, error)
	SetOption(ctx context.Context, key, value string) error
}

// Service reads and writes settings.
type Service struct {
	store    Store
	registry *taxonomy.Registry
	log      logger.Logger
}

// New creates a settings service.
func New(store Store, registry *taxonomy.Registry, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, registry: registry, log: log}
}

// Defaults returns the config used when nothing is stored for f.
func (s *Service) Defaults(f domain.FeatureName) domain.FeatureConfig {
	return domain.FeatureConfig{
		Feature:   f,
		Enabled:   false,
		Threshold: domain.DefaultThreshold,
		Taxonomy:  s.registry.DefaultName(f),
	}
}

// Get returns the config for f.
func (s *Service) Get(ctx context.Context, f domain.FeatureName) (domain.FeatureConfig, error) {
	if !f.Valid() {
		return domain.FeatureConfig{}, fmt.Errorf("%w: unknown feature %q", domain.ErrInvalidSettings, f)
	}

	stored, err := s.store.GetFeature(ctx, f)
	if err != nil {
		return domain.FeatureConfig{}, fmt.Errorf("get %s settings: %w", f, err)
	}
	if stored == nil {
		return s.Defaults(f), nil
	}
	return s.fill(*stored), nil
}

// Set validates and stores cfg. An empty taxonomy takes the registry default.
func (s *Service) Set(ctx context.Context, cfg domain.FeatureConfig) (domain.FeatureConfig, error) {
	cfg = s.fill(cfg)
	if err := cfg.Validate(); err != nil {
		return domain.FeatureConfig{}, err
	}
	if err := s.store.UpsertFeature(ctx, cfg); err != nil {
		return domain.FeatureConfig{}, fmt.Errorf("set %s settings: %w", cfg.Feature, err)
	}

	s.log.Info("Feature settings updated",
		logger.Feature(string(cfg.Feature)),
		logger.Bool("enabled", cfg.Enabled),
		logger.Float64("threshold", cfg.Threshold),
		logger.String("taxonomy", cfg.Taxonomy),
	)
	return cfg, nil
}

// All returns the config of every feature, stored or default, in feature order.
func (s *Service) All(ctx context.Context) ([]domain.FeatureConfig, error) {
	stored, err := s.store.ListFeatures(ctx)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}

	byFeature := make(map[domain.FeatureName]domain.FeatureConfig, len(stored))
	for _, cfg := range stored {
		byFeature[cfg.Feature] = cfg
	}

	out := make([]domain.FeatureConfig, 0, len(domain.AllFeatures))
	for _, f := range domain.AllFeatures {
		if cfg, ok := byFeature[f]; ok {
			out = append(out, s.fill(cfg))
			continue
		}
		out = append(out, s.Defaults(f))
	}
	return out, nil
}

// EnabledConfigs returns the enabled feature configs keyed by feature.
func (s *Service) EnabledConfigs(ctx context.Context) (map[domain.FeatureName]domain.FeatureConfig, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.FeatureName]domain.FeatureConfig)
	for _, cfg := range all {
		if cfg.Enabled {
			out[cfg.Feature] = cfg
		}
	}
	return out, nil
}

// TagFilter returns the stored policy, or a ModeNone policy.
func (s *Service) TagFilter(ctx context.Context) (tagfilter.Policy, error) {
	rec, err := s.store.GetTagFilter(ctx)
	if err != nil {
		return tagfilter.Policy{}, fmt.Errorf("get tag filter: %w", err)
	}
	if rec == nil {
		return tagfilter.NewPolicy(tagfilter.ModeNone, nil), nil
	}

	mode, err := tagfilter.ParseMode(rec.Mode)
	if err != nil {
		return tagfilter.Policy{}, fmt.Errorf("%w: %w", domain.ErrInvalidSettings, err)
	}
	return tagfilter.NewPolicy(mode, rec.Labels), nil
}

// SetTagFilter stores a policy built from mode and labels.
func (s *Service) SetTagFilter(ctx context.Context, mode string, labels []string) (tagfilter.Policy, error) {
	m, err := tagfilter.ParseMode(mode)
	if err != nil {
		return tagfilter.Policy{}, fmt.Errorf("%w: %w", domain.ErrInvalidSettings, err)
	}

	policy := tagfilter.NewPolicy(m, labels)
	if err = s.store.UpsertTagFilter(ctx, database.TagFilterRecord{
		Mode:   string(policy.Mode),
		Labels: policy.Labels(),
	}); err != nil {
		return tagfilter.Policy{}, fmt.Errorf("set tag filter: %w", err)
	}

	s.log.Info("Tag filter updated",
		logger.String("mode", string(policy.Mode)),
		logger.Int("labels", len(policy.Labels())),
	)
	return policy, nil
}

// Option returns a persisted option.
func (s *Service) Option(ctx context.Context, key string) (string, bool, error) {
	return s.store.GetOption(ctx, key)
}

// SetOption persists an option.
func (s *Service) SetOption(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: option key is required", domain.ErrInvalidSettings)
	}
	return s.store.SetOption(ctx, key, value)
}

func (s *Service) fill(cfg domain.FeatureConfig) domain.FeatureConfig {
	if cfg.Taxonomy == "" {
		cfg.Taxonomy = s.registry.DefaultName(cfg.Feature)
	}
	return cfg
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

// TagFilterRecord is the stored tag filter row.
type TagFilterRecord struct {
	Mode   string
	Labels []string
}

// SettingsRepository persists feature settings, the tag filter and options.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

type featureRow struct {
	Feature   string  `db:"feature"`
	Enabled   bool    `db:"enabled"`
	Threshold float64 `db:"threshold"`
	Taxonomy  string  `db:"taxonomy"`
	Options   []byte  `db:"options"`
}

func (row featureRow) toConfig() (domain.FeatureConfig, error) {
	cfg := domain.FeatureConfig{
		Feature:   domain.FeatureName(row.Feature),
		Enabled:   row.Enabled,
		Threshold: row.Threshold,
		Taxonomy:  row.Taxonomy,
	}
	if len(row.Options) > 0 {
		if err := json.Unmarshal(row.Options, &cfg.Options); err != nil {
			return domain.FeatureConfig{}, fmt.Errorf("decode options for %s: %w", row.Feature, err)
		}
	}
	return cfg, nil
}

// GetFeature returns the stored config for f, or nil when none is stored.
func (r *SettingsRepository) GetFeature(ctx context.Context, f domain.FeatureName) (*domain.FeatureConfig, error) {
	var row featureRow
	query := `
		SELECT feature, enabled, threshold, taxonomy, options
		FROM feature_settings
		WHERE feature = $1
	`

	if err := r.db.GetContext(ctx, &row, query, string(f)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // absent row is not an error
		}
		return nil, fmt.Errorf("failed to get feature settings: %w", err)
	}

	cfg, err := row.toConfig()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListFeatures returns every stored feature config.
func (r *SettingsRepository) ListFeatures(ctx context.Context) ([]domain.FeatureConfig, error) {
	var rows []featureRow
	query := `
		SELECT feature, enabled, threshold, taxonomy, options
		FROM feature_settings
		ORDER BY feature
	`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list feature settings: %w", err)
	}

	out := make([]domain.FeatureConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := row.toConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// UpsertFeature stores cfg.
func (r *SettingsRepository) UpsertFeature(ctx context.Context, cfg domain.FeatureConfig) error {
	options, err := json.Marshal(cfg.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	query := `
		INSERT INTO feature_settings (feature, enabled, threshold, taxonomy, options)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (feature) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			threshold = EXCLUDED.threshold,
			taxonomy = EXCLUDED.taxonomy,
			options = EXCLUDED.options,
			updated_at = NOW()
	`

	if _, err = r.db.ExecContext(ctx, query,
		string(cfg.Feature), cfg.Enabled, cfg.Threshold, cfg.Taxonomy, options,
	); err != nil {
		return fmt.Errorf("failed to upsert feature settings: %w", err)
	}
	return nil
}

// GetTagFilter returns the stored tag filter, or nil when none is stored.
func (r *SettingsRepository) GetTagFilter(ctx context.Context) (*TagFilterRecord, error) {
	var rec TagFilterRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT mode, labels FROM tag_filter_settings WHERE id = 1`,
	).Scan(&rec.Mode, pq.Array(&rec.Labels))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // absent row is not an error
		}
		return nil, fmt.Errorf("failed to get tag filter: %w", err)
	}
	return &rec, nil
}

// UpsertTagFilter stores the tag filter.
func (r *SettingsRepository) UpsertTagFilter(ctx context.Context, rec TagFilterRecord) error {
	labels := rec.Labels
	if labels == nil {
		labels = []string{}
	}
	query := `
		INSERT INTO tag_filter_settings (id, mode, labels)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			labels = EXCLUDED.labels,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, rec.Mode, pq.Array(labels)); err != nil {
		return fmt.Errorf("failed to upsert tag filter: %w", err)
	}
	return nil
}

// GetOption returns the value stored under key.
func (r *SettingsRepository) GetOption(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM settings_options WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get option %q: %w", key, err)
	}
	return value, true, nil
}

// SetOption stores value under key.
func (r *SettingsRepository) SetOption(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings_options (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set option %q: %w", key, err)
	}
	return nil
}

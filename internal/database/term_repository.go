package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/taxonomy"
)

// TermRepository stores terms and their associations with content items.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository creates a new term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// FindOrCreate returns the term (taxonomy, name), creating it if needed.
// The unique constraint on (taxonomy, name) makes concurrent callers
// converge on one row; non-empty metadata from the latest call wins.
func (r *TermRepository) FindOrCreate(
	ctx context.Context, taxonomyName, name string, meta domain.TermMeta,
) (domain.Term, error) {
	query := `
		INSERT INTO terms (taxonomy, name, term_key, canonical, resource_uri)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (taxonomy, name) DO UPDATE SET
			canonical = CASE WHEN EXCLUDED.canonical <> '' THEN EXCLUDED.canonical ELSE terms.canonical END,
			resource_uri = CASE WHEN EXCLUDED.resource_uri <> '' THEN EXCLUDED.resource_uri ELSE terms.resource_uri END,
			updated_at = NOW()
		RETURNING id, taxonomy, name, term_key, canonical, resource_uri
	`

	var term domain.Term
	err := r.db.QueryRowxContext(
		ctx,
		query,
		taxonomyName,
		name,
		taxonomy.Slug(name),
		meta.Canonical,
		meta.ResourceURI,
	).StructScan(&term)
	if err != nil {
		return domain.Term{}, fmt.Errorf("failed to upsert term %s/%q: %w", taxonomyName, name, err)
	}

	return term, nil
}

// SetTermAssociations replaces every association of contentID within
// taxonomyName with termIDs. Associations in other taxonomies are untouched.
func (r *TermRepository) SetTermAssociations(
	ctx context.Context, contentID, taxonomyName string, termIDs []int64,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM content_terms WHERE content_id = $1 AND taxonomy = $2`,
		contentID, taxonomyName,
	); err != nil {
		return fmt.Errorf("failed to clear associations: %w", err)
	}

	if len(termIDs) > 0 {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO content_terms (content_id, taxonomy, term_id)
			SELECT $1, $2, UNNEST($3::bigint[])
			ON CONFLICT (content_id, term_id) DO NOTHING
		`, contentID, taxonomyName, pq.Array(termIDs)); err != nil {
			return fmt.Errorf("failed to insert associations: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit associations: %w", err)
	}

	return nil
}

// GetTermAssociations lists the terms linked to contentID within taxonomyName.
func (r *TermRepository) GetTermAssociations(
	ctx context.Context, contentID, taxonomyName string,
) ([]domain.Term, error) {
	query := `
		SELECT t.id, t.taxonomy, t.name, t.term_key, t.canonical, t.resource_uri
		FROM content_terms ct
		JOIN terms t ON t.id = ct.term_id
		WHERE ct.content_id = $1 AND ct.taxonomy = $2
		ORDER BY t.name
	`

	terms := make([]domain.Term, 0)
	if err := r.db.SelectContext(ctx, &terms, query, contentID, taxonomyName); err != nil {
		return nil, fmt.Errorf("failed to list associations: %w", err)
	}

	return terms, nil
}

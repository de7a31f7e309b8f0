package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

// ContentRepository reads content items.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// GetContent loads one content item. A missing row yields ErrContentNotFound.
func (r *ContentRepository) GetContent(ctx context.Context, id string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	query := `
		SELECT id, content_type, title, body, status
		FROM content_items
		WHERE id = $1
	`

	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	item.Status = domain.ParseContentStatus(string(item.Status))

	return &item, nil
}

// ListIDs returns content ids, optionally filtered by status. limit <= 0
// means no limit.
func (r *ContentRepository) ListIDs(ctx context.Context, status domain.ContentStatus, limit int) ([]string, error) {
	query := `SELECT id FROM content_items`
	var args []any

	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list content ids: %w", err)
	}

	return ids, nil
}

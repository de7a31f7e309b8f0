package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/autotagger/internal/config"
	"github.com/jonesrussell/north-cloud/autotagger/internal/database"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

// DatabaseComponents holds the connection pool and repositories.
type DatabaseComponents struct {
	DB       *sqlx.DB
	Terms    *database.TermRepository
	Content  *database.ContentRepository
	Settings *database.SettingsRepository
}

// SetupDatabase connects to PostgreSQL and creates the repositories.
func SetupDatabase(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*DatabaseComponents, error) {
	log.Info("Connecting to PostgreSQL database",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Database),
	)

	db, err := database.NewPostgresConnection(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DatabaseComponents{
		DB:       db,
		Terms:    database.NewTermRepository(db),
		Content:  database.NewContentRepository(db),
		Settings: database.NewSettingsRepository(db),
	}, nil
}

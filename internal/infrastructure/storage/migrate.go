package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS formations_cache (
  id            TEXT PRIMARY KEY,
  titre         TEXT,
  lieu          TEXT,
  organisateur  TEXT,
  debut         DATE,
  places        TEXT,
  places_status TEXT,
  places_color  TEXT,
  url           TEXT,
  active        BOOLEAN NOT NULL DEFAULT TRUE,
  scraped_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_formations_cache_active_debut ON formations_cache (active, debut)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS formations_cache (
  id            VARCHAR(64) NOT NULL PRIMARY KEY,
  titre         TEXT,
  lieu          TEXT,
  organisateur  TEXT,
  debut         DATE,
  places        VARCHAR(255),
  places_status VARCHAR(255),
  places_color  VARCHAR(16),
  url           TEXT,
  active        BOOLEAN NOT NULL DEFAULT TRUE,
  scraped_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  INDEX idx_formations_cache_active_debut (active, debut)
) DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS formations_cache (
  id            TEXT PRIMARY KEY,
  titre         TEXT,
  lieu          TEXT,
  organisateur  TEXT,
  debut         TEXT,
  places        TEXT,
  places_status TEXT,
  places_color  TEXT,
  url           TEXT,
  active        BOOLEAN NOT NULL DEFAULT 1,
  scraped_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_formations_cache_active_debut ON formations_cache (active, debut)`,
}

// Migrate creates the formations cache table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var statements []string
	switch dialect.Name {
	case Postgres.Name:
		statements = postgresSchema
	case MySQL.Name:
		statements = mysqlSchema
	case SQLite.Name:
		statements = sqliteSchema
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDialect, dialect.Name)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", dialect.Name, err)
		}
	}
	return nil
}

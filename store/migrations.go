package store

import (
	"context"
	"fmt"
)

func GetBootstrapSQLMigrations() []string {
	return []string{
		`CREATE TABLE MigrationHead (
			migration_id INT NOT NULL DEFAULT -1
		)`,
		`INSERT INTO MigrationHead (migration_id) VALUES (-1)`,
	}
}

// GetSQLMigrations is append-only; the index of a statement is its migration
// id.
func GetSQLMigrations() []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE TABLE projects (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			builder_name TEXT NOT NULL DEFAULT '',
			record       JSONB NOT NULL,
			head_office  geometry(Point, 4326),
			scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX projects_builder_name_idx ON projects (builder_name)`,
		`CREATE INDEX projects_head_office_idx ON projects USING GIST (head_office)`,
	}
}

// RunMigrations applies every migration newer than the recorded head,
// bootstrapping the head table on a fresh database.
func (s *Store) RunMigrations(ctx context.Context) error {
	var migrationID int
	row := s.db.QueryRow(ctx, "SELECT migration_id FROM MigrationHead")
	if err := row.Scan(&migrationID); err != nil {
		s.logger.Info("MigrationHead doesn't exist, bootstrapping the db with the MigrationHead table")
		for _, m := range GetBootstrapSQLMigrations() {
			if _, err := s.db.Exec(ctx, m); err != nil {
				return fmt.Errorf("failed to bootstrap db: %w", err)
			}
		}
		migrationID = -1
	}
	for i, m := range GetSQLMigrations() {
		if i <= migrationID {
			continue
		}
		s.logger.Info("applying migration", "migration_id", i)
		if _, err := s.db.Exec(ctx, m); err != nil {
			return fmt.Errorf("failed at migration %d: %w", i, err)
		}
		if _, err := s.db.Exec(ctx, "UPDATE MigrationHead SET migration_id = $1", i); err != nil {
			return fmt.Errorf("failed to update migration head for migration %d: %w", i, err)
		}
	}
	return nil
}

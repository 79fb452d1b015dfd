package store

import "fmt"

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS presets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			sustain_ms INTEGER NOT NULL DEFAULT 2000,
			mirrored_hands INTEGER NOT NULL DEFAULT 0,
			velocity_shaping INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per bound slot; notes is a JSON array.
		`CREATE TABLE IF NOT EXISTS preset_chords (
			preset_id TEXT NOT NULL REFERENCES presets(id) ON DELETE CASCADE,
			slot TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL,
			PRIMARY KEY (preset_id, slot)
		)`,

		`CREATE TABLE IF NOT EXISTS preset_instruments (
			preset_id TEXT NOT NULL REFERENCES presets(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			program INTEGER NOT NULL CHECK(program BETWEEN 0 AND 127),
			name TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (preset_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	return nil
}

package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per pipeline invocation
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input_path TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			requested TEXT NOT NULL,
			source_width INTEGER NOT NULL,
			source_height INTEGER NOT NULL,
			input_filename TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Successfully produced maps, in request order
		`CREATE TABLE IF NOT EXISTS map_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			kind TEXT NOT NULL,
			filename TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			generated_at DATETIME NOT NULL,
			model_used TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_map_records_run_id ON map_records(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}

package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/controlmaps/internal/maps"
)

// RecordRepository provides queries over map records.
type RecordRepository struct {
	db *sql.DB
}

// Records returns the record repository for this store.
func (s *Store) Records() *RecordRepository {
	return &RecordRepository{db: s.db}
}

// ListByRun returns the records of a run in request order.
func (r *RecordRepository) ListByRun(runID string) ([]maps.Record, error) {
	rows, err := r.db.Query(
		`SELECT kind, filename, width, height, generated_at, model_used
		 FROM map_records WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []maps.Record{}
	for rows.Next() {
		var rec maps.Record
		var kind string
		var generatedAt time.Time

		if err := rows.Scan(&kind, &rec.Filename, &rec.Width, &rec.Height, &generatedAt, &rec.ModelUsed); err != nil {
			return nil, err
		}

		rec.Kind = maps.Kind(kind)
		rec.GeneratedAt = generatedAt.UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// CountByKind returns how many maps of each kind were produced across all runs.
func (r *RecordRepository) CountByKind() (map[maps.Kind]int, error) {
	rows, err := r.db.Query(`SELECT kind, COUNT(*) FROM map_records GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[maps.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[maps.Kind(kind)] = n
	}

	return counts, rows.Err()
}

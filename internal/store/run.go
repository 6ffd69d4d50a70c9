package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/controlmaps/internal/maps"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Run is one recorded pipeline invocation.
type Run struct {
	ID            string        `json:"id"`
	InputPath     string        `json:"inputPath"`
	OutputDir     string        `json:"outputDir"`
	Requested     string        `json:"requested"`
	SourceWidth   int           `json:"sourceWidth"`
	SourceHeight  int           `json:"sourceHeight"`
	InputFilename string        `json:"inputFilename"`
	CreatedAt     time.Time     `json:"createdAt"`
	Records       []maps.Record `json:"maps"`
}

// NewRun builds a Run from a finished result.
func NewRun(result maps.ResultSet, inputPath, outputDir string, requested []maps.Kind) *Run {
	return &Run{
		ID:            result.RunID,
		InputPath:     inputPath,
		OutputDir:     outputDir,
		Requested:     maps.FormatKinds(requested),
		SourceWidth:   result.SourceWidth,
		SourceHeight:  result.SourceHeight,
		InputFilename: result.InputFilename,
		Records:       result.Maps,
	}
}

// ResultSet converts the run back into the pipeline result.
func (r *Run) ResultSet() maps.ResultSet {
	records := r.Records
	if records == nil {
		records = []maps.Record{}
	}
	return maps.ResultSet{
		RunID:         r.ID,
		Maps:          records,
		SourceWidth:   r.SourceWidth,
		SourceHeight:  r.SourceHeight,
		InputFilename: r.InputFilename,
	}
}

// RunRepository provides CRUD operations for runs.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Create inserts a run and its records in one transaction.
func (r *RunRepository) Create(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, input_path, output_dir, requested, source_width, source_height, input_filename, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.OutputDir, run.Requested, run.SourceWidth, run.SourceHeight, run.InputFilename, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, rec := range run.Records {
		_, err := tx.Exec(
			`INSERT INTO map_records (run_id, position, kind, filename, width, height, generated_at, model_used)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, string(rec.Kind), rec.Filename, rec.Width, rec.Height, rec.GeneratedAt, rec.ModelUsed,
		)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a run and its records by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run := &Run{}

	err := r.db.QueryRow(
		`SELECT id, input_path, output_dir, requested, source_width, source_height, input_filename, created_at
		 FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.InputPath, &run.OutputDir, &run.Requested, &run.SourceWidth, &run.SourceHeight, &run.InputFilename, &run.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	records, err := (&RecordRepository{db: r.db}).ListByRun(id)
	if err != nil {
		return nil, err
	}
	run.Records = records

	return run, nil
}

// List retrieves the most recent runs, newest first, without their records.
// A non-positive limit returns every run.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, input_path, output_dir, requested, source_width, source_height, input_filename, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(&run.ID, &run.InputPath, &run.OutputDir, &run.Requested, &run.SourceWidth, &run.SourceHeight, &run.InputFilename, &run.CreatedAt)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Delete removes a run and, through the cascade, its records.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

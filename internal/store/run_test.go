package store

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ayusman/controlmaps/internal/maps"
)

func sampleRun(id string, createdAt time.Time) *Run {
	generated := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	result := maps.ResultSet{
		RunID: id,
		Maps: []maps.Record{
			{Kind: maps.KindDepth, Filename: "depth.png", Width: 1024, Height: 512, GeneratedAt: generated, ModelUsed: "simple-laplacian"},
			{Kind: maps.KindNormals, Filename: "normals.png", Width: 1024, Height: 512, GeneratedAt: generated, ModelUsed: "sobel-from-depth"},
			{Kind: maps.KindEdges, Filename: "edges.png", Width: 1024, Height: 512, GeneratedAt: generated, ModelUsed: "canny-auto"},
		},
		SourceWidth:   1024,
		SourceHeight:  512,
		InputFilename: "input.png",
	}

	run := NewRun(result, "/photos/in.jpg", "/runs/"+id, []maps.Kind{maps.KindDepth, maps.KindNormals, maps.KindEdges})
	run.CreatedAt = createdAt
	return run
}

func TestRunRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	run := sampleRun("run-1", time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC))
	if err := repo.Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	got, err := repo.GetByID("run-1")
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if got.InputPath != run.InputPath || got.OutputDir != run.OutputDir {
		t.Errorf("paths mismatch: got %q/%q", got.InputPath, got.OutputDir)
	}
	if got.Requested != "depth,normals,edges" {
		t.Errorf("Requested = %q", got.Requested)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}

	result := got.ResultSet()
	if result.RunID != "run-1" || result.SourceWidth != 1024 || result.SourceHeight != 512 || result.InputFilename != "input.png" {
		t.Errorf("unexpected result set %+v", result)
	}
	if !reflect.DeepEqual(result.Kinds(), []maps.Kind{maps.KindDepth, maps.KindNormals, maps.KindEdges}) {
		t.Errorf("kinds = %v", result.Kinds())
	}
	for i, rec := range result.Maps {
		want := run.Records[i]
		if rec.Filename != want.Filename || rec.ModelUsed != want.ModelUsed || rec.Width != want.Width || rec.Height != want.Height {
			t.Errorf("record %d = %+v, want %+v", i, rec, want)
		}
		if !rec.GeneratedAt.Equal(want.GeneratedAt) {
			t.Errorf("record %d GeneratedAt = %v, want %v", i, rec.GeneratedAt, want.GeneratedAt)
		}
	}
}

func TestRunRepository_CreateSetsCreatedAt(t *testing.T) {
	s := newTestStore(t)

	run := sampleRun("run-1", time.Time{})
	if err := s.Runs().Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}
}

func TestRunRepository_CreateRequiresID(t *testing.T) {
	s := newTestStore(t)

	if err := s.Runs().Create(sampleRun("", time.Now())); err == nil {
		t.Error("expected an error for a run without an id")
	}
}

func TestRunRepository_CreateDuplicateIsAtomic(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	if err := repo.Create(sampleRun("run-1", time.Now())); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := repo.Create(sampleRun("run-1", time.Now())); err == nil {
		t.Fatal("expected an error for a duplicate id")
	}

	records, err := s.Records().ListByRun("run-1")
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, the failed insert should not add any", len(records))
	}
}

func TestRunRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Runs().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"oldest", "middle", "newest"} {
		if err := repo.Create(sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("failed to create run %s: %v", id, err)
		}
	}

	runs, err := repo.List(0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"newest", "middle", "oldest"}) {
		t.Errorf("ids = %v, want newest first", ids)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d runs", len(limited))
	}
}

func TestRunRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()

	if err := repo.Create(sampleRun("run-1", time.Now())); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	if err := repo.Delete("run-1"); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}
	if _, err := repo.GetByID("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	records, err := s.Records().ListByRun("run-1")
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records should cascade, %d left", len(records))
	}

	if err := repo.Delete("run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestRecordRepository_CountByKind(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"a", "b"} {
		if err := s.Runs().Create(sampleRun(id, time.Now())); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}

	counts, err := s.Records().CountByKind()
	if err != nil {
		t.Fatalf("CountByKind() error = %v", err)
	}
	want := map[maps.Kind]int{maps.KindDepth: 2, maps.KindNormals: 2, maps.KindEdges: 2}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func TestRun_EmptyResultSet(t *testing.T) {
	run := &Run{ID: "x"}
	if rs := run.ResultSet(); rs.Maps == nil {
		t.Error("Maps should never be nil")
	}
}

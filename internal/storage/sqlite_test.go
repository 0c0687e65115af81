package storage

import (
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("applied migrations = %v, want 2", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_runs_user_created", "idx_runs_mood"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("002_runs_indexes.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("version = %d, want 2", v)
	}
	if _, err := parseMigrationVersion("runs.sql"); err == nil {
		t.Error("expected error for filename without version prefix")
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	want := Run{
		ID:             "run-001",
		UserID:         "u1",
		CreatedAt:      now,
		MotivationType: "security",
		Mood:           "frustrated",
		EnergyLevel:    "medium",
		StressLevel:    "high",
		StrategyCount:  2,
		MessageCount:   3,
		Effectiveness:  88,
		Techniques:     `["reframing","chunking"]`,
	}
	if err := s.SaveRun(want); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun("run-001")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.UserID != want.UserID || got.MotivationType != want.MotivationType || got.Mood != want.Mood {
		t.Errorf("round-trip mismatch: got %+v", got)
	}
	if got.StrategyCount != 2 || got.MessageCount != 3 || got.Effectiveness != 88 {
		t.Errorf("counts mismatch: got %+v", got)
	}
	if got.Techniques != want.Techniques {
		t.Errorf("Techniques = %q, want %q", got.Techniques, want.Techniques)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestSaveRun_DefaultTechniques(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveRun(Run{ID: "r", UserID: "u1", CreatedAt: time.Now(), MotivationType: "growth", Mood: "neutral", EnergyLevel: "low", StressLevel: "low"}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := s.GetRun("r")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Techniques != "[]" {
		t.Errorf("Techniques = %q, want []", got.Techniques)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRun("does-not-exist")
	if err != ErrNotFound {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirstAndPaginated(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := Run{
			ID:             fmt.Sprintf("run-%d", i),
			UserID:         "u1",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			MotivationType: "achievement",
			Mood:           "neutral",
			EnergyLevel:    "medium",
			StressLevel:    "medium",
		}
		if err := s.SaveRun(r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	if err := s.SaveRun(Run{ID: "other", UserID: "u2", CreatedAt: base, MotivationType: "growth", Mood: "neutral", EnergyLevel: "low", StressLevel: "low"}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	page, err := s.ListRuns("u1", 2, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(page) != 2 || page[0].ID != "run-4" || page[1].ID != "run-3" {
		t.Errorf("first page = %v, want run-4, run-3", ids(page))
	}

	page, err = s.ListRuns("u1", 10, 3)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(page) != 2 || page[0].ID != "run-1" || page[1].ID != "run-0" {
		t.Errorf("offset page = %v, want run-1, run-0", ids(page))
	}

	n, err := s.CountRuns("u1")
	if err != nil {
		t.Fatalf("CountRuns: %v", err)
	}
	if n != 5 {
		t.Errorf("CountRuns = %d, want 5", n)
	}
}

func TestDeleteRuns(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.SaveRun(Run{ID: fmt.Sprintf("r%d", i), UserID: "u1", CreatedAt: time.Now(), MotivationType: "growth", Mood: "neutral", EnergyLevel: "low", StressLevel: "low"}); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	deleted, err := s.DeleteRuns("u1")
	if err != nil {
		t.Fatalf("DeleteRuns: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	n, _ := s.CountRuns("u1")
	if n != 0 {
		t.Errorf("CountRuns after delete = %d, want 0", n)
	}
}

func ids(runs []Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}

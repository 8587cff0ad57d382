package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"labelpress/internal/db"
)

func setupDB(t *testing.T) {
	t.Helper()
	if err := db.Init(db.Config{Path: filepath.Join(t.TempDir(), "test.db")}); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
}

func insertJob(t *testing.T, ref, status string, completedAt time.Time) int64 {
	t.Helper()
	result, err := db.GetDB().Exec(`
		INSERT INTO print_jobs (ref, payload, symbology, copies, status, completed_at)
		VALUES (?, 'p', 'qr', 1, ?, ?)
	`, ref, status, completedAt)
	if err != nil {
		t.Fatalf("insert job: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func TestSweepRemovesOldTerminalJobs(t *testing.T) {
	setupDB(t)

	old := time.Now().AddDate(0, 0, -60)
	recent := time.Now().AddDate(0, 0, -1)
	insertJob(t, "old-sent", "sent", old)
	insertJob(t, "old-failed", "failed", old)
	insertJob(t, "recent-sent", "sent", recent)
	keep := insertJob(t, "old-pending", "pending", old)

	s := NewSweeper(Config{Days: 30}, zerolog.Nop())
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	jobs, err := db.Jobs.ListJobs(context.Background(), db.JobFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("remaining jobs = %d, want 2", len(jobs))
	}
	if _, err := db.Jobs.GetJobByID(context.Background(), keep); err != nil {
		t.Fatalf("pending job was removed: %v", err)
	}
}

func TestSweepRemovesStaleExports(t *testing.T) {
	setupDB(t)
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.tspl")
	fresh := filepath.Join(dir, "fresh.tspl")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{stale, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	old := time.Now().AddDate(0, 0, -60)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(other, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	s := NewSweeper(Config{Days: 30, ExportDir: dir}, zerolog.Nop())
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale export not removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh export removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatal("unrelated file removed")
	}
}

func TestSweepHandlesMissingExportDir(t *testing.T) {
	setupDB(t)
	s := NewSweeper(Config{Days: 30, ExportDir: filepath.Join(t.TempDir(), "missing")}, zerolog.Nop())
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRunStore_SaveAndGet(t *testing.T) {
	store := NewMemoryRunStore()
	if err := store.Open(); err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	report := createTestReport("local", time.Now())

	if err := store.SaveRun(ctx, report); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	retrieved, err := store.GetRun(ctx, report.ID)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if retrieved.ID != report.ID {
		t.Errorf("Retrieved run ID does not match: got %s, want %s", retrieved.ID, report.ID)
	}
}

func TestMemoryRunStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryRunStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	oldest := createTestReport("local", base)
	newest := createTestReport("local", base.Add(time.Hour))

	if err := store.SaveRun(ctx, oldest); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := store.SaveRun(ctx, newest); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	reports, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Listed run count does not match: got %d, want 2", len(reports))
	}
	if reports[0].ID != newest.ID {
		t.Errorf("First listed run does not match: got %s, want %s", reports[0].ID, newest.ID)
	}

	limited, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to list runs with limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != newest.ID {
		t.Errorf("Limited list does not match: got %d entries, want the newest run only", len(limited))
	}
}

func TestMemoryRunStore_Delete(t *testing.T) {
	store := NewMemoryRunStore()
	ctx := context.Background()
	report := createTestReport("local", time.Now())

	if err := store.SaveRun(ctx, report); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if err := store.DeleteRun(ctx, report.ID); err != nil {
		t.Fatalf("Failed to delete run: %v", err)
	}
	if _, err := store.GetRun(ctx, report.ID); !IsNotFound(err) {
		t.Errorf("Expected not-found error after delete, got: %v", err)
	}
}

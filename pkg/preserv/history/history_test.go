package history

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("creates log with valid directory", func(t *testing.T) {
		t.Parallel()

		l, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New() error = %v, want nil", err)
		}
		if l == nil {
			t.Fatal("New() returned nil")
		}
	})

	t.Run("returns error for empty directory", func(t *testing.T) {
		t.Parallel()

		_, err := New("")
		if err == nil {
			t.Fatal("New() error = nil, want error for empty directory")
		}
	})
}

func TestLog_Append(t *testing.T) {
	t.Parallel()

	t.Run("records generate run", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		rec, err := l.Append(OpGenerate, "/mnt/archive", Counts{Discovered: 12, Processed: 11, Errors: 1}, 0)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		if rec.Operation != OpGenerate {
			t.Errorf("Operation = %v, want %v", rec.Operation, OpGenerate)
		}
		if rec.Root != "/mnt/archive" {
			t.Errorf("Root = %v, want /mnt/archive", rec.Root)
		}
		if rec.Counts.Processed != 11 {
			t.Errorf("Processed = %v, want 11", rec.Counts.Processed)
		}
		if !strings.HasPrefix(rec.ID, "generate-") {
			t.Errorf("ID = %v, want prefix 'generate-'", rec.ID)
		}
	})

	t.Run("records verify run with adoption count", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		rec, err := l.Append(OpVerify, "/mnt/archive", Counts{OK: 10, New: 2}, 2)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		if !strings.HasPrefix(rec.ID, "verify-") {
			t.Errorf("ID = %v, want prefix 'verify-'", rec.ID)
		}
		if rec.Adopted != 2 {
			t.Errorf("Adopted = %v, want 2", rec.Adopted)
		}
	})

	t.Run("persists record to file", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		rec, err := l.Append(OpVerify, "/a", Counts{OK: 1}, 0)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		retrieved, err := l.Get(rec.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if retrieved.ID != rec.ID {
			t.Errorf("retrieved ID = %v, want %v", retrieved.ID, rec.ID)
		}
	})
}

func TestLog_List(t *testing.T) {
	t.Parallel()

	t.Run("returns records newest first", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		for i := 0; i < 3; i++ {
			if _, err := l.Append(OpVerify, "/a", Counts{OK: i}, 0); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			time.Sleep(5 * time.Millisecond)
		}

		records, err := l.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("len(records) = %v, want 3", len(records))
		}

		for i := 0; i < len(records)-1; i++ {
			if records[i].Timestamp.Before(records[i+1].Timestamp) {
				t.Errorf("records not sorted newest first")
			}
		}
	})

	t.Run("respects limit parameter", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		for i := 0; i < 5; i++ {
			if _, err := l.Append(OpGenerate, "/a", Counts{}, 0); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}

		records, err := l.List(2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 2 {
			t.Errorf("len(records) = %v, want 2", len(records))
		}
	})

	t.Run("returns empty slice for missing directory", func(t *testing.T) {
		t.Parallel()

		l, err := New(t.TempDir() + "/never-created")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		records, err := l.List(0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if records == nil || len(records) != 0 {
			t.Errorf("List() = %v, want empty slice", records)
		}
	})
}

func TestLog_Get(t *testing.T) {
	t.Parallel()

	t.Run("returns error for non-existent record", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		if _, err := l.Get("verify-does-not-exist"); err == nil {
			t.Fatal("Get() error = nil, want error")
		}
	})

	t.Run("returns error for empty ID", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		if _, err := l.Get(""); err == nil {
			t.Fatal("Get() error = nil, want error")
		}
	})
}

func TestLog_Cleanup(t *testing.T) {
	t.Parallel()

	t.Run("removes records older than retention", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		rec, err := l.Append(OpVerify, "/a", Counts{}, 0)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		// Rewrite the record with an old timestamp.
		rec.Timestamp = time.Now().AddDate(0, 0, -10)
		if err := l.writeRecord(rec); err != nil {
			t.Fatalf("writeRecord() error = %v", err)
		}

		if err := l.Cleanup(5); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}

		if _, err := l.Get(rec.ID); err == nil {
			t.Error("Get() should return error after cleanup")
		}
	})

	t.Run("keeps recent records", func(t *testing.T) {
		t.Parallel()
		l := setupTestLog(t)

		rec, err := l.Append(OpVerify, "/a", Counts{}, 0)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		if err := l.Cleanup(30); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}

		if _, err := l.Get(rec.ID); err != nil {
			t.Errorf("Get() error = %v, record should still exist", err)
		}
	})
}

func TestLog_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	l := setupTestLog(t)

	var wg sync.WaitGroup
	errCh := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := l.Append(OpVerify, "/a", Counts{OK: idx}, 0); err != nil {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent append error: %v", err)
	}

	records, err := l.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 10 {
		t.Errorf("len(records) = %v, want 10", len(records))
	}
}

// setupTestLog creates a history log with a temporary directory.
func setupTestLog(t *testing.T) *Log {
	t.Helper()

	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := l.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	return l
}

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "archive", "exports.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "exports.db")

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(filepath.Join(blocker, "exports.db"))
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "exports.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}

	// Test closing already closed store
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestPutAndGetExport(t *testing.T) {
	store := newTestStore(t)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := ExportRecord{
		SessionID: "abc",
		CreatedAt: now,
		FileName:  "historial_predicciones_20260501_120000.csv",
		Rows:      2,
		CSV:       []byte("Fecha,Humedad\n"),
	}

	key, err := store.PutExport(rec)
	if err != nil {
		t.Fatalf("Failed to store export: %v", err)
	}
	if key != ExportKey("abc", now) {
		t.Errorf("Unexpected key %q", key)
	}

	got, err := store.GetExport(key)
	if err != nil {
		t.Fatalf("Failed to get export: %v", err)
	}
	if got.Rows != 2 || string(got.CSV) != "Fecha,Humedad\n" || got.FileName != rec.FileName {
		t.Errorf("Unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("Expected created_at %v, got %v", now, got.CreatedAt)
	}
}

func TestPutExport_RequiresSession(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.PutExport(ExportRecord{CreatedAt: time.Now()}); err == nil {
		t.Error("Expected error for missing session id")
	}
}

func TestGetExport_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetExport("missing_1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListExports(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	records := []ExportRecord{
		{SessionID: "s1", CreatedAt: now, Rows: 1, CSV: []byte("x")},
		{SessionID: "s1", CreatedAt: now.Add(time.Second), Rows: 2},
		{SessionID: "s2", CreatedAt: now.Add(2 * time.Second), Rows: 3},
		{SessionID: "s1", CreatedAt: now.Add(10 * time.Second), Rows: 4}, // Outside range
	}
	for _, rec := range records {
		if _, err := store.PutExport(rec); err != nil {
			t.Fatalf("Failed to store export: %v", err)
		}
	}

	list, err := store.ListExports("s1", now.Add(-time.Second), now.Add(5*time.Second))
	if err != nil {
		t.Fatalf("Failed to list exports: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("Expected 2 exports, got %d", len(list))
	}
	if list[0].Rows != 1 || list[1].Rows != 2 {
		t.Errorf("Exports out of order: %+v", list)
	}
	if list[0].CSV != nil {
		t.Error("List should omit CSV payloads")
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Failed to count exports: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected 4 archived exports, got %d", n)
	}
}

func TestListExports_EmptyResult(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	list, err := store.ListExports("nobody", now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("Failed to list exports: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected empty result, got %d exports", len(list))
	}
}

func TestStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "exports.db")

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	key, err := store.PutExport(ExportRecord{SessionID: "s1", CreatedAt: time.Now(), Rows: 5})
	if err != nil {
		t.Fatalf("Failed to store export: %v", err)
	}
	store.Close()

	reopened, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetExport(key)
	if err != nil {
		t.Fatalf("Export lost after reopen: %v", err)
	}
	if got.Rows != 5 {
		t.Errorf("Expected 5 rows, got %d", got.Rows)
	}
}

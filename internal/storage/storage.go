// Package storage archives user-triggered history exports in a BoltDB file.
//
// Only exports the user explicitly asks for are written here; the live
// prediction logs stay in memory and die with their session. Each archived
// export is keyed by "sessionID_unixnano" so a session's exports can be
// range-scanned in time order.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	exportsBucket = "exports" // Bucket name for archived export snapshots
)

// ErrNotFound is returned by GetExport for an unknown key.
var ErrNotFound = errors.New("export not found")

// ExportRecord is one archived export snapshot.
type ExportRecord struct {
	Key       string    `json:"key"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	FileName  string    `json:"file_name"`
	Rows      int       `json:"rows"`
	CSV       []byte    `json:"csv,omitempty"`
}

// Store provides persistent storage for export snapshots using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the archive at dbPath and makes sure the exports
// bucket exists.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(exportsBucket)); err != nil {
			return fmt.Errorf("create exports bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// ExportKey builds the archive key for an export taken by sessionID at ts.
func ExportKey(sessionID string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", sessionID, ts.UnixNano())
}

// PutExport stores rec under ExportKey(rec.SessionID, rec.CreatedAt) and
// returns the key.
func (s *Store) PutExport(rec ExportRecord) (string, error) {
	if rec.SessionID == "" {
		return "", errors.New("export record without session id")
	}
	rec.Key = ExportKey(rec.SessionID, rec.CreatedAt)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(exportsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal export: %w", err)
		}
		return b.Put([]byte(rec.Key), data)
	})
	if err != nil {
		return "", err
	}
	return rec.Key, nil
}

// GetExport returns the export stored under key.
func (s *Store) GetExport(key string) (ExportRecord, error) {
	var rec ExportRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(exportsBucket)).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// ListExports returns the exports of sessionID taken within [start, end], in
// time order. The CSV payloads are omitted.
func (s *Store) ListExports(sessionID string, start, end time.Time) ([]ExportRecord, error) {
	var records []ExportRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(exportsBucket)).Cursor()

		prefix := []byte(sessionID + "_")
		startKey := []byte(ExportKey(sessionID, start))
		endKey := []byte(ExportKey(sessionID, end))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var rec ExportRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			rec.CSV = nil
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Count returns the number of archived exports across all sessions.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(exportsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// Package store keeps a ledger of per-source delivery outcomes so repeated
// invocations can tell which sources were already delivered.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Delivery statuses recorded in the ledger.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Entry is the latest recorded outcome of one source.
type Entry struct {
	JobID     string
	Source    string
	Status    string
	Records   int
	Delivered int
	Error     string
	UpdatedAt time.Time
}

// Completed reports whether the source was fully delivered.
func (e Entry) Completed() bool { return e.Status == StatusCompleted }

// Store interface defines methods for recording and querying delivery outcomes
type Store interface {
	// Save records the outcome of a source, replacing any earlier one
	Save(e Entry) error

	// Load retrieves the latest outcome recorded for a source
	Load(source string) (Entry, bool, error)

	// List returns the outcomes recorded by one job, ordered by source
	List(jobID string) ([]Entry, error)

	// Close closes the store and releases any resources
	Close() error
}

type sqliteStore struct {
	db *sql.DB
}

var migrateMu sync.Mutex

// NewSQLiteStore creates a new SQLite-based store with migrations
func NewSQLiteStore(dbPath string) (Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := ensureDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// pipelines finish concurrently; serialize writers on one connection
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	InitMigrations()
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *sqliteStore) Save(e Entry) error {
	if e.Source == "" {
		return errors.New("entry source must not be empty")
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO deliveries (source, job_id, status, records, delivered, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET
		 job_id = excluded.job_id,
		 status = excluded.status,
		 records = excluded.records,
		 delivered = excluded.delivered,
		 error = excluded.error,
		 updated_at = excluded.updated_at`,
		e.Source, e.JobID, e.Status, e.Records, e.Delivered, e.Error, e.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save delivery: %w", err)
	}
	return nil
}

func (s *sqliteStore) Load(source string) (Entry, bool, error) {
	row := s.db.QueryRow(
		`SELECT source, job_id, status, records, delivered, error, updated_at
		 FROM deliveries WHERE source = ?`, source)

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to load delivery: %w", err)
	}
	return e, true, nil
}

func (s *sqliteStore) List(jobID string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT source, job_id, status, records, delivered, error, updated_at
		 FROM deliveries WHERE job_id = ? ORDER BY source`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e  Entry
		ts int64
	)
	if err := sc.Scan(&e.Source, &e.JobID, &e.Status, &e.Records, &e.Delivered, &e.Error, &ts); err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = time.Unix(0, ts)
	return e, nil
}

// ensureDir makes sure a directory exists
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

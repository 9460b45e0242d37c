package datalog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

const (
	defaultBatchSize = 10000

	createEntriesSQL = `CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL,
	kind TEXT NOT NULL,
	unit TEXT,
	timestamp_us INTEGER NOT NULL,
	str TEXT,
	num REAL
);`
	insertEntrySQL = `INSERT INTO entries (key, kind, unit, timestamp_us, str, num) VALUES (?, ?, ?, ?, ?, ?)`
)

// SQLiteWriter buffers entries in memory and writes them in batches. Pending
// entries are flushed when the batch fills, on Close, and at process exit
// through atexit.
type SQLiteWriter struct {
	*sql.DB

	mu        sync.Mutex
	path      string
	batchSize int
	pending   []Entry
	closed    bool
	logger    *slog.Logger
}

// NewSQLiteWriter creates <name>.sqlite3. An empty name generates a unique
// one. An existing file is an error.
func NewSQLiteWriter(name string, logger *slog.Logger) (*SQLiteWriter, error) {
	if name == "" {
		name = "sysid_log_" + xid.New().String()
	}
	if logger == nil {
		logger = slog.Default()
	}
	path := name + ".sqlite3"

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("datalog: file %s already exists", path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("datalog: open %s: %w", path, err)
	}
	if _, err := db.Exec(createEntriesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("datalog: create table: %w", err)
	}

	w := &SQLiteWriter{
		DB:        db,
		path:      path,
		batchSize: defaultBatchSize,
		pending:   make([]Entry, 0, defaultBatchSize),
		logger:    logger,
	}
	logger.Info("recording to database", "path", path)

	atexit.Register(func() {
		if err := w.Close(); err != nil {
			w.logger.Error("flush at exit failed", "path", w.path, "err", err)
		}
	})

	return w, nil
}

func (w *SQLiteWriter) Path() string { return w.path }

// SetBatchSize sets how many entries are buffered before an automatic flush.
func (w *SQLiteWriter) SetBatchSize(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 1 {
		n = 1
	}
	w.batchSize = n
}

func (w *SQLiteWriter) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	w.pending = append(w.pending, e)
	if len(w.pending) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes all pending entries in one transaction.
func (w *SQLiteWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *SQLiteWriter) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return fmt.Errorf("datalog: begin: %w", err)
	}
	stmt, err := tx.Prepare(insertEntrySQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("datalog: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.pending {
		if _, err := stmt.Exec(e.Key, string(e.Kind), e.Unit, e.Timestamp.Microseconds(), e.Str, e.Num); err != nil {
			tx.Rollback()
			return fmt.Errorf("datalog: insert %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datalog: commit: %w", err)
	}

	w.pending = w.pending[:0]
	return nil
}

// Close flushes pending entries and closes the database. Closing twice is a
// no-op.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.flushLocked()
	if err := w.DB.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}

// SQLiteReader reads entries written by SQLiteWriter.
type SQLiteReader struct {
	*sql.DB
	path string
}

// OpenSQLite opens an existing log database at path.
func OpenSQLite(path string) (*SQLiteReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("datalog: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("datalog: open %s: %w", path, err)
	}
	return &SQLiteReader{DB: db, path: path}, nil
}

// Keys returns the distinct entry keys in first-seen order.
func (r *SQLiteReader) Keys() ([]string, error) {
	rows, err := r.Query(`SELECT key FROM entries GROUP BY key ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("datalog: query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Entries returns entries for key in insertion order. An empty key returns
// every entry.
func (r *SQLiteReader) Entries(key string) ([]Entry, error) {
	query := `SELECT key, kind, unit, timestamp_us, str, num FROM entries`
	args := []any{}
	if key != "" {
		query += ` WHERE key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY id`

	rows, err := r.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("datalog: query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
			us   int64
			unit sql.NullString
			str  sql.NullString
			num  sql.NullFloat64
		)
		if err := rows.Scan(&e.Key, &kind, &unit, &us, &str, &num); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Unit = unit.String
		e.Timestamp = time.Duration(us) * time.Microsecond
		e.Str = str.String
		e.Num = num.Float64
		out = append(out, e)
	}
	return out, rows.Err()
}

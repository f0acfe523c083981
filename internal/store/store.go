// Package store persists Travis's memories, chat transcript, journal and
// key-value state in SQLite. Semantic search uses the sqlite-vec extension
// when available, with a client-side cosine scan as the fallback path.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"travis/internal/logging"
)

// Store wraps the SQLite database holding all persistent state:
// memories (vector recall), messages (chat transcript), journal entries
// (journal/reflection/summary) and the key-value table (persistent facts,
// soulstate, intentions, evolution timestamp).
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	dims      int  // embedding dimensionality
	vectorExt bool // sqlite-vec available
}

// Open initializes the SQLite database at the given path.
// dims is the embedding dimensionality used for vector search.
func Open(path string, dims int) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// NORMAL is safe with WAL and considerably faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path, dims: dims}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.detectVecExtension()
	if s.vectorExt {
		logging.Store("sqlite-vec extension detected; database-side similarity enabled")
	} else {
		logging.Get(logging.CategoryStore).Warn("sqlite-vec extension not available; similarity search will use the client-side scan")
	}

	logging.Store("Store initialization complete")
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	memoriesTable := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding TEXT,
		message_type TEXT NOT NULL DEFAULT 'chat',
		tags TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(message_type);
	`

	messagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		emotion TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages(owner_id);
	`

	journalTable := `
	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		content TEXT NOT NULL,
		entry_type TEXT NOT NULL DEFAULT 'journal',
		tags TEXT,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_journal_owner ON journal_entries(owner_id);
	CREATE INDEX IF NOT EXISTS idx_journal_type ON journal_entries(entry_type);
	`

	kvTable := `
	CREATE TABLE IF NOT EXISTS keyvalue (
		owner_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(owner_id, key)
	);
	`

	for _, table := range []string{memoriesTable, messagesTable, journalTable, kvTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// detectVecExtension probes for the sqlite-vec scalar functions.
func (s *Store) detectVecExtension() {
	if s.db == nil {
		return
	}
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err == nil {
		s.vectorExt = true
		logging.StoreDebug("sqlite-vec version: %s", version)
		return
	}
	s.vectorExt = false
}

// HasVectorExtension reports whether database-side similarity is available.
func (s *Store) HasVectorExtension() bool {
	return s.vectorExt
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store database connection")
	return s.db.Close()
}

// Stats returns row counts per table plus vector search availability.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"memories", "messages", "journal_entries", "keyvalue"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	if s.vectorExt {
		stats["vector_extension"] = 1
	} else {
		stats["vector_extension"] = 0
	}
	return stats, nil
}

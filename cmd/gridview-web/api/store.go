package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite persistence for recorded entity state history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new store with the given database path.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better performance
	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entity_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id TEXT NOT NULL,
		value_json TEXT NOT NULL,
		observed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entity_states_entity_id ON entity_states(entity_id);
	CREATE INDEX IF NOT EXISTS idx_entity_states_observed_at ON entity_states(observed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordState appends one observed state for an entity.
func (s *Store) RecordState(entityID string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO entity_states (entity_id, value_json) VALUES (?, ?)`,
		entityID, string(value),
	)
	if err != nil {
		return fmt.Errorf("failed to record state: %w", err)
	}
	return nil
}

// History returns the most recent recorded states for an entity,
// newest first.
func (s *Store) History(entityID string, limit int) ([]StateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT entity_id, value_json, observed_at
		 FROM entity_states
		 WHERE entity_id = ?
		 ORDER BY observed_at DESC, id DESC
		 LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []StateRecord
	for rows.Next() {
		var rec StateRecord
		var value string
		if err := rows.Scan(&rec.EntityID, &value, &rec.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		rec.Value = json.RawMessage(value)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Latest returns the most recent recorded state for an entity, or nil
// when nothing has been recorded.
func (s *Store) Latest(entityID string) (*StateRecord, error) {
	records, err := s.History(entityID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// RecordedEntities returns the distinct entity ids with history.
func (s *Store) RecordedEntities() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT entity_id FROM entity_states ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

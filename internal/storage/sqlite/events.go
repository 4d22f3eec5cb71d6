package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ryanwelchtech/iamd-threat-detection-platform/internal/audit"
	"github.com/ryanwelchtech/iamd-threat-detection-platform/pkg/logger"
)

// EventStorage is a SQLite-based storage for audit events
type EventStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewEventStorage creates a new SQLite-based audit event storage
func NewEventStorage(dbPath string, log *logger.Logger) (*EventStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool limits
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &EventStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *EventStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (s *EventStorage) GetDB() *sql.DB {
	return s.db
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			ts_utc TIMESTAMP NOT NULL,
			source_service TEXT,
			actor TEXT,
			action TEXT,
			details TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_events_ts ON audit_events(ts_utc)
	`)
	if err != nil {
		return fmt.Errorf("failed to create audit_events index: %w", err)
	}

	return nil
}

// Append stores a single audit event
func (s *EventStorage) Append(event *audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO audit_events (event_id, ts_utc, source_service, actor, action, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		event.EventID,
		event.TsUTC.Format(time.RFC3339Nano),
		event.SourceService,
		event.Actor,
		event.Action,
		string(details),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// GetRecent returns the most recent events, newest first
func (s *EventStorage) GetRecent(limit int) ([]*audit.Event, error) {
	rows, err := s.db.Query(`
		SELECT event_id, ts_utc, source_service, actor, action, details
		FROM audit_events
		ORDER BY ts_utc DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*audit.Event, 0, limit)
	for rows.Next() {
		var event audit.Event
		var tsRaw, detailsRaw string

		if err := rows.Scan(&event.EventID, &tsRaw, &event.SourceService, &event.Actor, &event.Action, &detailsRaw); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			s.logger.Warn("Skipping audit event with unparseable timestamp",
				logger.String("event_id", event.EventID),
				logger.String("ts_utc", tsRaw))
			continue
		}
		event.TsUTC = ts

		if detailsRaw != "" {
			if err := json.Unmarshal([]byte(detailsRaw), &event.Details); err != nil {
				s.logger.Warn("Failed to unmarshal audit event details",
					logger.String("event_id", event.EventID),
					logger.Error(err))
			}
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}

// Count returns the total number of stored events
func (s *EventStorage) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// Reset clears all stored events
func (s *EventStorage) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM audit_events`); err != nil {
		return fmt.Errorf("failed to clear audit events: %w", err)
	}
	return nil
}

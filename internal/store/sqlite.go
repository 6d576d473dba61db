// Package store provides storage backends for the lead intake engine.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/carebridge/leadflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; the containing
// directory is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

// CreateSession persists a new conversation session.
func (s *SQLiteStore) CreateSession(session models.ConversationSession) error {
	dataJSON, err := marshalCollectedData(session.CollectedData)
	if err != nil {
		slog.Error("SQLiteStore CreateSession marshal failed", "error", err, "sessionID", session.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, visitor_token, current_step_id, collected_data, status, started_at, last_activity_at, completed_at, lead_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.VisitorToken, session.CurrentStepID, dataJSON, session.Status,
		session.StartedAt, session.LastActivityAt, nullableTime(session.CompletedAt), nilIfEmpty(session.LeadID))
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to insert session %s: %w", session.ID, err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", session.ID, "token", session.VisitorToken)
	return nil
}

// GetSession retrieves a session by id, nil if missing.
func (s *SQLiteStore) GetSession(id string) (*models.ConversationSession, error) {
	row := s.db.QueryRow(`
		SELECT id, visitor_token, current_step_id, collected_data, status, started_at, last_activity_at, completed_at, lead_id
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// FindActiveSessionByToken retrieves the active session for a visitor token.
func (s *SQLiteStore) FindActiveSessionByToken(token string) (*models.ConversationSession, error) {
	row := s.db.QueryRow(`
		SELECT id, visitor_token, current_step_id, collected_data, status, started_at, last_activity_at, completed_at, lead_id
		FROM sessions WHERE visitor_token = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		token, models.SessionStatusActive)
	return scanSession(row)
}

// UpdateSession persists the session's mutable fields as one statement so no
// reader observes a partial transition.
func (s *SQLiteStore) UpdateSession(session models.ConversationSession) error {
	dataJSON, err := marshalCollectedData(session.CollectedData)
	if err != nil {
		slog.Error("SQLiteStore UpdateSession marshal failed", "error", err, "sessionID", session.ID)
		return err
	}
	res, err := s.db.Exec(`
		UPDATE sessions
		SET current_step_id = ?, collected_data = ?, status = ?, last_activity_at = ?, completed_at = ?, lead_id = ?
		WHERE id = ?`,
		session.CurrentStepID, dataJSON, session.Status, session.LastActivityAt,
		nullableTime(session.CompletedAt), nilIfEmpty(session.LeadID), session.ID)
	if err != nil {
		slog.Error("SQLiteStore UpdateSession failed", "error", err, "sessionID", session.ID)
		return fmt.Errorf("failed to update session %s: %w", session.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrSessionNotFound
	}
	slog.Debug("SQLiteStore UpdateSession succeeded", "sessionID", session.ID, "step", session.CurrentStepID, "status", session.Status)
	return nil
}

// AppendMessage adds one transcript entry.
func (s *SQLiteStore) AppendMessage(message models.ChatMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (id, session_id, role, content, step_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		message.ID, message.SessionID, message.Role, message.Content, nilIfEmpty(message.StepID), message.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AppendMessage failed", "error", err, "sessionID", message.SessionID)
		return fmt.Errorf("failed to insert message for session %s: %w", message.SessionID, err)
	}
	return nil
}

// ListMessages returns a session's transcript ordered by creation time, ties
// broken by insertion order (the autoincrement seq).
func (s *SQLiteStore) ListMessages(sessionID string) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, COALESCE(step_id, ''), created_at
		FROM messages WHERE session_id = ? ORDER BY created_at, seq`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListMessages query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.StepID, &m.CreatedAt); err != nil {
			slog.Error("SQLiteStore ListMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// CreateLead persists a CRM lead after validating required fields.
func (s *SQLiteStore) CreateLead(lead models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO leads (id, session_id, name, phone, email, source, status, priority, service_needed, insurance_carrier, member_id, best_time_to_call, notes, qualification_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, nilIfEmpty(lead.SessionID), lead.Name, nilIfEmpty(lead.Phone), nilIfEmpty(lead.Email),
		lead.Source, lead.Status, lead.Priority, nilIfEmpty(lead.ServiceNeeded), nilIfEmpty(lead.InsuranceCarrier),
		nilIfEmpty(lead.MemberID), nilIfEmpty(lead.BestTimeToCall), nilIfEmpty(lead.Notes),
		lead.QualificationScore, lead.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateLead failed", "error", err, "leadID", lead.ID)
		return fmt.Errorf("failed to insert lead %s: %w", lead.ID, err)
	}
	slog.Debug("SQLiteStore CreateLead succeeded", "leadID", lead.ID, "priority", lead.Priority)
	return nil
}

// GetLead retrieves a lead by id, nil if missing.
func (s *SQLiteStore) GetLead(id string) (*models.Lead, error) {
	row := s.db.QueryRow(`
		SELECT id, COALESCE(session_id, ''), name, COALESCE(phone, ''), COALESCE(email, ''), source, status, priority,
		       COALESCE(service_needed, ''), COALESCE(insurance_carrier, ''), COALESCE(member_id, ''),
		       COALESCE(best_time_to_call, ''), COALESCE(notes, ''), qualification_score, created_at
		FROM leads WHERE id = ?`, id)
	return scanLead(row)
}

// MarkAbandonedBefore flips idle active sessions to abandoned.
func (s *SQLiteStore) MarkAbandonedBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`
		UPDATE sessions SET status = ? WHERE status = ? AND last_activity_at < ?`,
		models.SessionStatusAbandoned, models.SessionStatusActive, cutoff)
	if err != nil {
		slog.Error("SQLiteStore MarkAbandonedBefore failed", "error", err)
		return 0, fmt.Errorf("failed to mark abandoned sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// marshalCollectedData renders collected data as a JSON column value.
func marshalCollectedData(data models.CollectedData) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal collected data: %w", err)
	}
	return string(raw), nil
}
